package routing

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("routing: fleet not configured")
	// ErrInfeasibleRequest is matched by every *InfeasibleRequestError.
	ErrInfeasibleRequest = errors.New("routing: no feasible truck")
	// ErrSolverTimeout is matched by every *SolverTimeoutError.
	ErrSolverTimeout = errors.New("routing: search budget exhausted")
)

// ConfigurationError rejects a solve attempted without depot or trucks.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Reason }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// InfeasibleRequestError reports that no truck can take an urgent request.
type InfeasibleRequestError struct {
	Demand  int
	MaxFree int
}

func (e *InfeasibleRequestError) Error() string {
	return fmt.Sprintf("infeasible request: demand %d exceeds largest available capacity %d", e.Demand, e.MaxFree)
}

func (e *InfeasibleRequestError) Is(target error) bool { return target == ErrInfeasibleRequest }

// SolverTimeoutError is returned together with the best solution found when
// the search budget elapses.
type SolverTimeoutError struct {
	Budget     time.Duration
	Unassigned []int64
}

func (e *SolverTimeoutError) Error() string {
	return fmt.Sprintf("solver timeout after %s: %d request(s) unassigned", e.Budget, len(e.Unassigned))
}

func (e *SolverTimeoutError) Is(target error) bool { return target == ErrSolverTimeout }
