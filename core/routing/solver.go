package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/fleetroute/core/logger"
)

// DefaultBudget bounds the wall-clock time of one batch solve.
const DefaultBudget = 5 * time.Second

// State is the lifecycle of one batch solve.
type State int

const (
	StateUnsolved State = iota
	StateConstructing
	StateImproving
	StateSolved
	StatePartiallyInfeasible
)

func (s State) String() string {
	switch s {
	case StateUnsolved:
		return "unsolved"
	case StateConstructing:
		return "constructing"
	case StateImproving:
		return "improving"
	case StateSolved:
		return "solved"
	case StatePartiallyInfeasible:
		return "partially_infeasible"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options tunes a Solver.
type Options struct {
	Budget      time.Duration
	LocalSearch bool
	Logger      logger.Logger
}

// Solver runs cheapest-insertion construction followed by an optional
// budgeted local search. It holds no per-solve state and is safe for
// concurrent use.
type Solver struct {
	budget      time.Duration
	localSearch bool
	log         logger.Logger
}

// NewSolver returns a solver. A zero budget selects DefaultBudget.
func NewSolver(opts Options) *Solver {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	return &Solver{budget: opts.Budget, localSearch: opts.LocalSearch, log: logger.OrNop(opts.Logger)}
}

// Budget returns the configured search budget.
func (s *Solver) Budget() time.Duration { return s.budget }

// Solution is the per-vehicle node sequence of a solved problem. Routes[v]
// starts and ends at DepotNode, or is empty when vehicle v serves nothing.
// Service[v][i] is the minute service begins at Routes[v][i].
type Solution struct {
	Routes     [][]int
	Service    [][]int64
	Unassigned []int
	State      State
	Distance   float64
}

// UnassignedRequests returns the request IDs left out of the solution.
func (p *Problem) UnassignedRequests(sol *Solution) []int64 {
	ids := make([]int64, 0, len(sol.Unassigned))
	for _, n := range sol.Unassigned {
		ids = append(ids, p.Nodes[n].RequestID)
	}
	return ids
}

// Solve computes routes for p. When the budget elapses it returns the best
// solution found so far together with a *SolverTimeoutError.
func (s *Solver) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if p == nil || len(p.Vehicles) == 0 {
		return nil, &ConfigurationError{Reason: "no vehicles in problem"}
	}
	budgetCtx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	state := StateUnsolved
	move := func(next State) {
		s.log.Debugf("solver: %s -> %s", state, next)
		state = next
	}

	sr := newSearch(budgetCtx, p)
	move(StateConstructing)
	sr.construct()
	if s.localSearch && !sr.interrupted {
		move(StateImproving)
		sr.improve()
	}
	sol := sr.solution()
	if len(sol.Unassigned) > 0 {
		move(StatePartiallyInfeasible)
	} else {
		move(StateSolved)
	}
	sol.State = state

	if sr.interrupted {
		if err := ctx.Err(); err != nil {
			return sol, fmt.Errorf("solve aborted: %w", err)
		}
		s.log.Warnf("solver: budget %s exhausted with %d unassigned", s.budget, len(sol.Unassigned))
		return sol, &SolverTimeoutError{Budget: s.budget, Unassigned: p.UnassignedRequests(sol)}
	}
	s.log.Infof("solver: %s, %d nodes, %.2f km, %d unassigned", state, len(p.Nodes)-1, sol.Distance, len(sol.Unassigned))
	return sol, nil
}
