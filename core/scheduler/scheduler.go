// Package scheduler re-runs batch planning on a fixed interval so that
// requests left unassigned by an earlier run get another chance once
// capacity frees up.
package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kilianp07/fleetroute/core/logger"
	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/planner"
	"github.com/kilianp07/fleetroute/core/routing"
)

// Planner is the part of the planner the scheduler drives.
type Planner interface {
	Pending(ctx context.Context) ([]model.DeliveryRequest, error)
	Trucks(ctx context.Context) ([]model.Truck, error)
	PlanBatch(ctx context.Context, reqs []model.DeliveryRequest) (*planner.PlanOutcome, error)
}

// Config defines the replanning cadence.
type Config struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// Interval returns the tick period, zero when replanning is disabled.
func (c Config) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Scheduler replans pending requests periodically.
type Scheduler struct {
	planner  Planner
	interval time.Duration
	log      logger.Logger

	// last is the state of the most recent successful replan. Only Tick
	// touches it, from a single goroutine.
	last string
}

// New returns a scheduler ticking every interval.
func New(p Planner, interval time.Duration, log logger.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	return &Scheduler{planner: p, interval: interval, log: logger.OrNop(log)}, nil
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.log.Warnf("replan: %v", err)
			}
		}
	}
}

// Tick replans once when requests are pending and the pending set or the
// truck capacities changed since the last replan. It reports whether a
// batch ran. A fleet that is not configured yet is not an error.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	pending, err := s.planner.Pending(ctx)
	if err != nil {
		return false, err
	}
	if len(pending) == 0 {
		return false, nil
	}
	trucks, err := s.planner.Trucks(ctx)
	if err != nil {
		return false, err
	}
	key := stateKey(pending, trucks)
	if key == s.last {
		s.log.Debugf("replan skipped: %d pending request(s), fleet unchanged", len(pending))
		return false, nil
	}
	out, err := s.planner.PlanBatch(ctx, nil)
	if errors.Is(err, routing.ErrConfiguration) {
		s.log.Debugf("replan skipped: %v", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.last = key
	s.log.Infof("replanned %d pending request(s): %d route(s), %d still unassigned", len(pending), len(out.Routes), len(out.Unassigned))
	return true, nil
}

// stateKey identifies what a replan depends on: the pending requests and the
// capacity of every truck. Positions are left out; batch routes start at the
// depot.
func stateKey(pending []model.DeliveryRequest, trucks []model.Truck) string {
	ids := make([]int64, 0, len(pending))
	for _, r := range pending {
		ids = append(ids, r.ID)
	}
	slices.Sort(ids)
	trucks = slices.Clone(trucks)
	slices.SortFunc(trucks, func(a, b model.Truck) int { return cmp.Compare(a.ID, b.ID) })

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "r%d,", id)
	}
	for _, t := range trucks {
		fmt.Fprintf(&b, "t%d:%d/%d,", t.ID, t.AvailableCapacity, t.Capacity)
	}
	return b.String()
}
