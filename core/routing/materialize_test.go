package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/core/model"
)

func TestMaterialize(t *testing.T) {
	trucks := []model.Truck{{ID: 1, Capacity: 10, AvailableCapacity: 10}, {ID: 2, Capacity: 10, AvailableCapacity: 10}}
	reqs := []model.DeliveryRequest{wide(1, 0, 1, 4), wide(2, 0, 2, 5), wide(3, 0, 3, 6)}
	p, err := BuildProblem(provider, &model.Depot{}, trucks, reqs, start)
	require.NoError(t, err)
	sol, err := newSolver().Solve(context.Background(), p)
	require.NoError(t, err)

	created := start.Add(time.Second)
	routes, unchanged := Materialize(p.Plan(sol), nil, created)
	assert.Empty(t, unchanged)
	require.Len(t, routes, 2)
	for _, r := range routes {
		assert.Equal(t, created, r.CreatedAt)
		for i, st := range r.Stops {
			assert.Equal(t, i, st.Sequence)
			assert.False(t, st.Completed)
			assert.NotNil(t, st.ETA)
		}
		assert.Equal(t, model.StopDepot, r.Stops[0].Kind)
	}
	assert.Equal(t, model.StopRequest, routes[0].Stops[1].Kind)
	assert.Equal(t, int64(1), routes[0].Stops[1].RequestID)
}

func TestMaterializeIsIdempotent(t *testing.T) {
	planned := []PlannedRoute{
		{TruckID: 1, Stops: []PlannedStop{{Kind: model.StopDepot}, {Kind: model.StopRequest, RequestID: 4, ETA: start}, {Kind: model.StopDepot}}},
		{TruckID: 2, Stops: []PlannedStop{{Kind: model.StopRequest, RequestID: 5}, {Kind: model.StopDepot}}},
	}
	first, _ := Materialize(planned, nil, start)
	require.Len(t, first, 2)

	latest := map[int64]model.Route{1: first[0]}
	again, unchanged := Materialize(planned, latest, start.Add(time.Minute))
	assert.Equal(t, []int64{1}, unchanged)
	require.Len(t, again, 1)
	assert.Equal(t, int64(2), again[0].TruckID)
	assert.Nil(t, again[0].Stops[0].ETA, "zero ETA is unscheduled")
}
