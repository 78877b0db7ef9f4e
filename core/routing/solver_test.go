package routing

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/core/geo"
	"github.com/kilianp07/fleetroute/core/model"
)

var (
	provider = geo.NewProvider(50)
	start    = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
)

func wide(id int64, lat, lon float64, demand int) model.DeliveryRequest {
	return model.DeliveryRequest{
		ID:       id,
		Location: model.Coordinates{Lat: lat, Lon: lon},
		Demand:   demand,
		Window:   model.TimeWindow{Start: start, End: start.Add(24 * time.Hour)},
	}
}

func newSolver() *Solver {
	return NewSolver(Options{Budget: time.Minute, LocalSearch: true})
}

func TestBuildProblem(t *testing.T) {
	depot := &model.Depot{ID: 1}
	trucks := []model.Truck{{ID: 1, Capacity: 10, AvailableCapacity: 7}}
	p, err := BuildProblem(provider, depot, trucks, []model.DeliveryRequest{wide(5, 0, 1, 3)}, start)
	require.NoError(t, err)
	require.Len(t, p.Nodes, 2)
	assert.Zero(t, p.Nodes[DepotNode].Demand)
	assert.Equal(t, int64(0), p.Nodes[DepotNode].Window.Start)
	assert.Equal(t, Minute(start.Add(24*time.Hour)), p.Nodes[1].Window.End)
	assert.Equal(t, 7, p.Vehicles[0].Capacity)
	assert.Equal(t, p.Matrix.Km(0, 1), provider.Distance(model.Coordinates{}, model.Coordinates{Lon: 1}))
}

func TestBuildProblemRequiresFleet(t *testing.T) {
	_, err := BuildProblem(provider, nil, []model.Truck{{ID: 1, Capacity: 1}}, nil, start)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = BuildProblem(provider, &model.Depot{}, nil, []model.DeliveryRequest{wide(1, 0, 1, 1)}, start)
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "trucks")
}

func TestSolveRespectsCapacity(t *testing.T) {
	trucks := []model.Truck{{ID: 1, Capacity: 10, AvailableCapacity: 10}, {ID: 2, Capacity: 10, AvailableCapacity: 10}}
	reqs := []model.DeliveryRequest{wide(1, 0, 1, 4), wide(2, 0, 2, 5), wide(3, 0, 3, 6)}
	p, err := BuildProblem(provider, &model.Depot{}, trucks, reqs, start)
	require.NoError(t, err)

	sol, err := newSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, StateSolved, sol.State)
	assert.Empty(t, sol.Unassigned)
	assert.Equal(t, [][]int{{0, 1, 2, 0}, {0, 3, 0}}, sol.Routes)

	plan := p.Plan(sol)
	require.Len(t, plan, 2)
	assert.Equal(t, 9, plan[0].Load)
	assert.Equal(t, 6, plan[1].Load)
	assert.Equal(t, []int64{1, 2}, plan[0].RequestIDs())
}

func TestSolveExcludesClosedWindow(t *testing.T) {
	trucks := []model.Truck{{ID: 1, Capacity: 10, AvailableCapacity: 10}}
	late := wide(2, 0, 1, 1)
	// reachable only after roughly two hours
	late.Window = model.TimeWindow{Start: start.Add(-time.Hour), End: start.Add(30 * time.Minute)}
	p, err := BuildProblem(provider, &model.Depot{}, trucks, []model.DeliveryRequest{wide(1, 0, 0.1, 1), late}, start)
	require.NoError(t, err)

	sol, err := newSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, StatePartiallyInfeasible, sol.State)
	assert.Equal(t, []int64{2}, p.UnassignedRequests(sol))
	assert.Equal(t, [][]int{{0, 1, 0}}, sol.Routes)
}

func TestSolveWaitsForWindowStart(t *testing.T) {
	trucks := []model.Truck{{ID: 1, Capacity: 10, AvailableCapacity: 10}}
	req := wide(1, 0, 0.1, 1)
	req.Window.Start = start.Add(3 * time.Hour)
	p, err := BuildProblem(provider, &model.Depot{}, trucks, []model.DeliveryRequest{req}, start)
	require.NoError(t, err)

	sol, err := newSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	plan := p.Plan(sol)
	require.Len(t, plan, 1)
	assert.Equal(t, start, plan[0].Stops[0].ETA)
	assert.Equal(t, start.Add(3*time.Hour), plan[0].Stops[1].ETA)
	assert.True(t, plan[0].Stops[2].ETA.After(plan[0].Stops[1].ETA))
}

func randomInstance(seed int64) (*model.Depot, []model.Truck, []model.DeliveryRequest) {
	rng := rand.New(rand.NewSource(seed))
	depot := &model.Depot{ID: 1, Location: model.Coordinates{Lat: 28.7041, Lon: 77.1025}}
	trucks := []model.Truck{
		{ID: 1, Capacity: 40, AvailableCapacity: 40},
		{ID: 2, Capacity: 30, AvailableCapacity: 25},
		{ID: 3, Capacity: 40, AvailableCapacity: 40},
		{ID: 4, Capacity: 20, AvailableCapacity: 20},
	}
	var reqs []model.DeliveryRequest
	for i := 1; i <= 35; i++ {
		ws := start.Add(time.Duration(rng.Intn(300)) * time.Minute)
		reqs = append(reqs, model.DeliveryRequest{
			ID:       int64(100 + i),
			Location: model.Coordinates{Lat: 28.7041 + rng.Float64()*0.6 - 0.3, Lon: 77.1025 + rng.Float64()*0.6 - 0.3},
			Demand:   1 + rng.Intn(9),
			Window:   model.TimeWindow{Start: ws, End: ws.Add(time.Duration(60+rng.Intn(540)) * time.Minute)},
		})
	}
	return depot, trucks, reqs
}

func TestSolveInvariants(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		depot, trucks, reqs := randomInstance(seed)
		p, err := BuildProblem(provider, depot, trucks, reqs, start)
		require.NoError(t, err)
		sol, err := newSolver().Solve(context.Background(), p)
		require.NoError(t, err)

		demand := map[int64]int{}
		for _, r := range reqs {
			demand[r.ID] = r.Demand
		}
		seen := map[int64]int{}
		for _, id := range p.UnassignedRequests(sol) {
			seen[id]++
		}
		capacity := map[int64]int{}
		for _, tr := range trucks {
			capacity[tr.ID] = tr.AvailableCapacity
		}
		for _, pr := range p.Plan(sol) {
			load := 0
			first, last := pr.Stops[0], pr.Stops[len(pr.Stops)-1]
			assert.Equal(t, model.StopDepot, first.Kind)
			assert.Equal(t, model.StopDepot, last.Kind)
			assert.Equal(t, depot.Location, first.Location)
			assert.Equal(t, depot.Location, last.Location)
			for i, st := range pr.Stops {
				if i > 0 {
					assert.False(t, st.ETA.Before(pr.Stops[i-1].ETA), "seed %d truck %d stop %d", seed, pr.TruckID, i)
				}
				if st.Kind == model.StopRequest {
					load += demand[st.RequestID]
					seen[st.RequestID]++
				}
			}
			assert.LessOrEqual(t, load, capacity[pr.TruckID])
			assert.Equal(t, load, pr.Load)
		}
		for _, r := range reqs {
			assert.Equal(t, 1, seen[r.ID], "request %d", r.ID)
		}
	}
}

func TestSolveServesWithinWindows(t *testing.T) {
	depot, trucks, reqs := randomInstance(7)
	p, err := BuildProblem(provider, depot, trucks, reqs, start)
	require.NoError(t, err)
	sol, err := newSolver().Solve(context.Background(), p)
	require.NoError(t, err)

	windows := map[int64]model.TimeWindow{}
	for _, r := range reqs {
		windows[r.ID] = r.Window
	}
	for _, pr := range p.Plan(sol) {
		for _, st := range pr.Stops {
			if st.Kind != model.StopRequest {
				continue
			}
			w := windows[st.RequestID]
			assert.False(t, st.ETA.After(time.Unix(Minute(w.End)*60, 0)), "request %d", st.RequestID)
		}
	}
}

func TestSolveDeterministic(t *testing.T) {
	depot, trucks, reqs := randomInstance(42)
	var first *Solution
	for i := 0; i < 3; i++ {
		p, err := BuildProblem(provider, depot, trucks, reqs, start)
		require.NoError(t, err)
		sol, err := newSolver().Solve(context.Background(), p)
		require.NoError(t, err)
		if first == nil {
			first = sol
			continue
		}
		assert.Equal(t, first.Routes, sol.Routes)
		assert.Equal(t, first.Unassigned, sol.Unassigned)
	}
}

func TestLocalSearchNeverWorsens(t *testing.T) {
	depot, trucks, reqs := randomInstance(3)
	p, err := BuildProblem(provider, depot, trucks, reqs, start)
	require.NoError(t, err)

	base, err := NewSolver(Options{Budget: time.Minute}).Solve(context.Background(), p)
	require.NoError(t, err)
	improved, err := newSolver().Solve(context.Background(), p)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(improved.Unassigned), len(base.Unassigned))
	if len(improved.Unassigned) == len(base.Unassigned) {
		assert.LessOrEqual(t, improved.Distance, base.Distance+1e-6)
	}
}

func TestSolveTimeoutReturnsBestSoFar(t *testing.T) {
	depot, trucks, reqs := randomInstance(9)
	p, err := BuildProblem(provider, depot, trucks, reqs, start)
	require.NoError(t, err)

	sol, err := NewSolver(Options{Budget: time.Nanosecond, LocalSearch: true}).Solve(context.Background(), p)
	var terr *SolverTimeoutError
	require.True(t, errors.As(err, &terr))
	require.NotNil(t, sol)
	assert.ErrorIs(t, err, ErrSolverTimeout)
	assert.Len(t, terr.Unassigned, len(sol.Unassigned))
	assert.Equal(t, time.Nanosecond, terr.Budget)
}

func TestSolveRejectsEmptyProblem(t *testing.T) {
	_, err := newSolver().Solve(context.Background(), &Problem{})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, DefaultBudget, NewSolver(Options{}).Budget())
}

func TestMinuteRounding(t *testing.T) {
	exact := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, Minute(exact), MinuteCeil(exact))
	assert.Equal(t, Minute(exact)+1, MinuteCeil(exact.Add(30*time.Second)))
	assert.Equal(t, Minute(exact)+1, MinuteCeil(exact.Add(time.Millisecond)))
	assert.Equal(t, Minute(exact), Minute(exact.Add(59*time.Second)))
}

func TestSolveNeverArrivesBeforeWindowStart(t *testing.T) {
	trucks := []model.Truck{{ID: 1, Capacity: 10, AvailableCapacity: 10}}
	req := wide(1, 0, 0.1, 1)
	req.Window.Start = start.Add(3*time.Hour + 30*time.Second)
	p, err := BuildProblem(provider, &model.Depot{}, trucks, []model.DeliveryRequest{req}, start)
	require.NoError(t, err)

	sol, err := newSolver().Solve(context.Background(), p)
	require.NoError(t, err)
	plan := p.Plan(sol)
	require.Len(t, plan, 1)
	eta := plan[0].Stops[1].ETA
	assert.False(t, eta.Before(req.Window.Start))
	assert.Equal(t, start.Add(3*time.Hour+time.Minute), eta)
}
