package planner

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/fleetroute/core/events"
	"github.com/kilianp07/fleetroute/core/metrics"
	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/planlog"
	"github.com/kilianp07/fleetroute/core/routing"
	"github.com/kilianp07/fleetroute/core/store"
)

// PlanOutcome is the result of a batch planning run.
type PlanOutcome struct {
	RunID string
	// Routes are the routes created by this run.
	Routes []model.Route
	// Unchanged lists trucks whose latest route already matched the plan.
	Unchanged  []int64
	Unassigned []int64
	TimedOut   bool
}

func requestsOf(routes []model.Route) (ids []int64, byTruck map[int64][]int64) {
	byTruck = make(map[int64][]int64, len(routes))
	for _, r := range routes {
		for _, st := range r.Stops {
			if st.Kind == model.StopRequest {
				ids = append(ids, st.RequestID)
				byTruck[r.TruckID] = append(byTruck[r.TruckID], st.RequestID)
			}
		}
	}
	return ids, byTruck
}

// PlanBatch stores reqs as pending and solves every pending request over
// the whole fleet. A timed-out search still commits its best routes and
// reports TimedOut with the unassigned requests. Observers are only notified
// when new routes were committed.
func (m *Manager) PlanBatch(ctx context.Context, reqs []model.DeliveryRequest) (*PlanOutcome, error) {
	for _, r := range reqs {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	out := &PlanOutcome{RunID: newRunID()}

	unlock := m.lock("plan")
	depot, trucks, err := m.fleet(ctx)
	if err != nil {
		unlock()
		return nil, err
	}
	if len(reqs) > 0 {
		if _, err := m.store.CreateRequests(ctx, reqs); err != nil {
			unlock()
			return nil, m.persistFailed("create requests", err)
		}
	}
	pending, err := m.store.PendingRequests(ctx)
	if err != nil {
		unlock()
		return nil, err
	}
	now := m.now()
	problem, err := routing.BuildProblem(m.provider, depot, trucks, pending, now)
	if err != nil {
		unlock()
		return nil, err
	}
	sol, err := m.solver.Solve(ctx, problem)
	var timeout *routing.SolverTimeoutError
	switch {
	case errors.As(err, &timeout):
		out.TimedOut = true
		solverTimeouts.Inc()
	case err != nil:
		unlock()
		return nil, err
	}
	out.Unassigned = problem.UnassignedRequests(sol)

	existing, err := m.store.Routes(ctx)
	if err != nil {
		unlock()
		return nil, err
	}
	planned := problem.Plan(sol)
	fresh, unchanged := routing.Materialize(planned, store.LatestByTruck(existing), now)
	out.Unchanged = unchanged

	load := map[int64]int{}
	for _, pr := range planned {
		if !contains(unchanged, pr.TruckID) {
			load[pr.TruckID] += pr.Load
		}
	}
	accepted, byTruck := requestsOf(fresh)
	if len(fresh) > 0 {
		out.Routes, err = m.store.CommitPlan(ctx, store.Plan{Routes: fresh, Accepted: accepted, Load: load})
		if err != nil {
			unlock()
			return nil, m.persistFailed("commit plan", err)
		}
	}
	unlock()

	elapsed := time.Since(start)
	m.log.Infof("plan %s: %d route(s), %d assigned, %d unassigned, timed out %t", out.RunID, len(out.Routes), len(accepted), len(out.Unassigned), out.TimedOut)
	m.recordPlan(metrics.PlanResult{
		RunID: out.RunID, Kind: metrics.PlanBatch, Trucks: len(trucks), Requests: len(pending),
		Assigned: len(accepted), Unassigned: len(out.Unassigned), Routes: len(out.Routes),
		DistanceKm: sol.Distance, TimedOut: out.TimedOut, Duration: elapsed, Time: now,
	})
	requestIDs := make([]int64, 0, len(pending))
	for _, r := range pending {
		requestIDs = append(requestIDs, r.ID)
	}
	m.appendLog(ctx, planlog.LogRecord{
		Timestamp: now, RunID: out.RunID, Kind: planlog.KindBatch, Requests: requestIDs,
		Assigned: byTruck, Unassigned: out.Unassigned, Unchanged: unchanged, TimedOut: out.TimedOut,
		DistanceKm: sol.Distance, DurationMs: float64(elapsed.Microseconds()) / 1000,
	})
	m.publish(events.PlanEvent{RunID: out.RunID, Routes: len(out.Routes), Assigned: accepted, Unassigned: out.Unassigned, TimedOut: out.TimedOut, Duration: elapsed})
	if len(out.Routes) > 0 {
		m.broadcast(ctx)
	}
	return out, nil
}

// InsertUrgent places one request on the nearest truck able to carry it.
// Nothing is stored when no truck qualifies.
func (m *Manager) InsertUrgent(ctx context.Context, req model.DeliveryRequest) (model.Route, error) {
	if err := req.Validate(); err != nil {
		return model.Route{}, err
	}
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	runID := newRunID()

	unlock := m.lock("insert")
	depot, trucks, err := m.fleet(ctx)
	if err != nil {
		unlock()
		return model.Route{}, err
	}
	now := m.now()
	planned, err := routing.InsertUrgent(m.provider, depot, trucks, req, now)
	if err != nil {
		unlock()
		if errors.Is(err, routing.ErrInfeasibleRequest) {
			urgentRejections.Inc()
		}
		return model.Route{}, err
	}
	created, err := m.store.CreateRequests(ctx, []model.DeliveryRequest{req})
	if err != nil {
		unlock()
		return model.Route{}, m.persistFailed("create request", err)
	}
	reqID := created[0].ID
	for i := range planned.Stops {
		if planned.Stops[i].Kind == model.StopRequest {
			planned.Stops[i].RequestID = reqID
		}
	}
	fresh, _ := routing.Materialize([]routing.PlannedRoute{*planned}, nil, now)
	committed, err := m.store.CommitPlan(ctx, store.Plan{
		Routes:   fresh,
		Accepted: []int64{reqID},
		Load:     map[int64]int{planned.TruckID: planned.Load},
	})
	if err != nil {
		unlock()
		return model.Route{}, m.persistFailed("commit urgent route", err)
	}
	unlock()
	route := committed[0]

	elapsed := time.Since(start)
	m.log.Infof("urgent %s: request %d on truck %d", runID, reqID, route.TruckID)
	m.recordPlan(metrics.PlanResult{
		RunID: runID, Kind: metrics.PlanUrgent, Trucks: len(trucks), Requests: 1, Assigned: 1,
		Routes: 1, DistanceKm: m.provider.Distance(req.Location, depot.Location), Duration: elapsed, Time: now,
	})
	m.appendLog(ctx, planlog.LogRecord{
		Timestamp: now, RunID: runID, Kind: planlog.KindUrgent, Requests: []int64{reqID},
		Assigned: map[int64][]int64{route.TruckID: {reqID}}, DurationMs: float64(elapsed.Microseconds()) / 1000,
	})
	m.publish(events.InsertEvent{RunID: runID, RequestID: reqID, TruckID: route.TruckID, RouteID: route.ID})
	m.broadcast(ctx)
	return route, nil
}

// CompleteStop marks a stop done. Completing it again reports already and
// changes and broadcasts nothing.
func (m *Manager) CompleteStop(ctx context.Context, stopID int64) (model.Stop, bool, error) {
	ctx = context.WithoutCancel(ctx)
	unlock := m.lock("complete")
	st, already, err := m.store.CompleteStop(ctx, stopID)
	unlock()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
			return model.Stop{}, false, err
		}
		return model.Stop{}, false, m.persistFailed("complete stop", err)
	}
	m.publish(events.CompletionEvent{StopID: stopID, RequestID: st.RequestID, Already: already})
	if already {
		m.log.Debugf("stop %d already completed", stopID)
		return st, true, nil
	}
	m.broadcast(ctx)
	return st, false, nil
}

// DeleteRoute removes a route whose request stops are all completed.
func (m *Manager) DeleteRoute(ctx context.Context, routeID int64) error {
	ctx = context.WithoutCancel(ctx)
	unlock := m.lock("delete_route")
	err := m.store.DeleteRoute(ctx, routeID)
	unlock()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
			return err
		}
		return m.persistFailed("delete route", err)
	}
	m.publish(events.RouteDeletedEvent{RouteID: routeID})
	m.broadcast(ctx)
	return nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
