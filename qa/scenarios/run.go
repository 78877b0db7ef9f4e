package scenarios

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/planner"
	"github.com/kilianp07/fleetroute/core/routing"
	"github.com/kilianp07/fleetroute/core/store"
)

type countingObserver struct {
	mu    sync.Mutex
	sends int
}

func (o *countingObserver) ID() string { return "scenario" }

func (o *countingObserver) Send(context.Context, []model.RouteView) error {
	o.mu.Lock()
	o.sends++
	o.mu.Unlock()
	return nil
}

func (o *countingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sends
}

// errorKind maps a planner error to the short names used in scenario files.
func errorKind(err error) string {
	var verr *model.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, routing.ErrConfiguration):
		return "configuration"
	case errors.Is(err, routing.ErrInfeasibleRequest):
		return "infeasible"
	case errors.As(err, &verr):
		return "validation"
	default:
		return err.Error()
	}
}

type result struct {
	trucks  []model.Truck
	urgent  model.Route
	already bool
}

func execute(ctx context.Context, m *planner.Manager, sc *Scenario) (result, error) {
	var res result
	if sc.Depot != nil {
		if _, err := m.SetDepot(ctx, model.Depot{Location: sc.Depot.ToModel()}); err != nil {
			return res, err
		}
	}
	for _, td := range sc.Trucks {
		tr, err := m.RegisterTruck(ctx, td.ToModel())
		if err != nil {
			return res, err
		}
		res.trucks = append(res.trucks, tr)
	}
	var target model.Route
	if len(sc.Batch) > 0 {
		reqs := make([]model.DeliveryRequest, len(sc.Batch))
		for i, r := range sc.Batch {
			reqs[i] = r.ToModel()
		}
		out, err := m.PlanBatch(ctx, reqs)
		if err != nil {
			return res, err
		}
		if len(out.Routes) > 0 {
			target = out.Routes[0]
		}
	}
	if sc.Urgent != nil {
		route, err := m.InsertUrgent(ctx, sc.Urgent.ToModel())
		if err != nil {
			return res, err
		}
		res.urgent = route
		target = route
	}
	if sc.CompleteTwice {
		var stopID int64
		for _, st := range target.Stops {
			if st.Kind == model.StopRequest {
				stopID = st.ID
				break
			}
		}
		if _, _, err := m.CompleteStop(ctx, stopID); err != nil {
			return res, err
		}
		_, already, err := m.CompleteStop(ctx, stopID)
		if err != nil {
			return res, err
		}
		res.already = already
	}
	return res, nil
}

// RunScenario replays sc against a planner backed by an in-memory store and
// checks the resulting fleet state.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	st := store.NewMemoryStore()
	m, err := planner.NewManager(planner.Options{
		Store:  st,
		Solver: routing.NewSolver(routing.Options{Budget: time.Minute, LocalSearch: true}),
		Clock:  func() time.Time { return Epoch },
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer m.Close()
	obs := &countingObserver{}
	m.Observers().Add(obs)

	ctx := context.Background()
	res, err := execute(ctx, m, sc)
	if got := errorKind(err); got != sc.Expected.Error {
		t.Fatalf("scenario %s expected error %q, got %q", sc.Name, sc.Expected.Error, got)
	}

	routes, err := m.Routes(ctx)
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	assigned := 0
	for _, r := range routes {
		for _, s := range r.Stops {
			if s.Kind == model.StopRequest {
				assigned++
			}
		}
	}
	pending, err := st.PendingRequests(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	trucks, err := m.Trucks(ctx)
	if err != nil {
		t.Fatalf("trucks: %v", err)
	}
	used := 0
	for _, tr := range trucks {
		if tr.AvailableCapacity < 0 {
			t.Errorf("truck %d over capacity", tr.ID)
		}
		used += tr.Capacity - tr.AvailableCapacity
	}

	exp := sc.Expected
	if len(routes) != exp.Routes {
		t.Errorf("scenario %s expected %d routes, got %d", sc.Name, exp.Routes, len(routes))
	}
	if assigned != exp.Assigned {
		t.Errorf("scenario %s expected %d assigned, got %d", sc.Name, exp.Assigned, assigned)
	}
	if len(pending) != exp.Unassigned {
		t.Errorf("scenario %s expected %d unassigned, got %d", sc.Name, exp.Unassigned, len(pending))
	}
	if used != exp.UsedCapacity {
		t.Errorf("scenario %s expected %d used capacity, got %d", sc.Name, exp.UsedCapacity, used)
	}
	if n := obs.count(); n != exp.Broadcasts {
		t.Errorf("scenario %s expected %d broadcasts, got %d", sc.Name, exp.Broadcasts, n)
	}
	if exp.UrgentTruck > 0 {
		want := res.trucks[exp.UrgentTruck-1].ID
		if res.urgent.TruckID != want {
			t.Errorf("scenario %s expected urgent on truck %d, got %d", sc.Name, want, res.urgent.TruckID)
		}
	}
	if res.already != exp.AlreadyOnRetry {
		t.Errorf("scenario %s expected already=%v on retry, got %v", sc.Name, exp.AlreadyOnRetry, res.already)
	}
}
