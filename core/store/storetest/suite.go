// Package storetest holds the behaviour every store.Store must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/store"
)

// Factory opens a fresh, empty store.
type Factory func(t *testing.T) store.Store

var base = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func request(lat, lon float64, demand int) model.DeliveryRequest {
	return model.DeliveryRequest{
		Location: model.Coordinates{Lat: lat, Lon: lon},
		Demand:   demand,
		Window:   model.TimeWindow{Start: base, End: base.Add(8 * time.Hour)},
	}
}

func seed(t *testing.T, s store.Store) (model.Depot, model.Truck, []model.DeliveryRequest) {
	t.Helper()
	ctx := context.Background()
	d, err := s.SaveDepot(ctx, model.Depot{Location: model.Coordinates{Lat: 28.7041, Lon: 77.1025}})
	require.NoError(t, err)
	tr, err := s.SaveTruck(ctx, model.Truck{Capacity: 10, AvailableCapacity: 10})
	require.NoError(t, err)
	reqs, err := s.CreateRequests(ctx, []model.DeliveryRequest{request(28.71, 77.11, 4), request(28.72, 77.12, 3)})
	require.NoError(t, err)
	return d, tr, reqs
}

func planFor(d model.Depot, tr model.Truck, reqs []model.DeliveryRequest) store.Plan {
	eta := base.Add(10 * time.Minute)
	r := model.Route{TruckID: tr.ID, CreatedAt: base, Stops: []model.Stop{{Kind: model.StopDepot, Location: d.Location, ETA: &base}}}
	load := 0
	var accepted []int64
	for _, q := range reqs {
		r.Stops = append(r.Stops, model.Stop{Kind: model.StopRequest, Location: q.Location, RequestID: q.ID, ETA: &eta})
		load += q.Demand
		accepted = append(accepted, q.ID)
	}
	r.Stops = append(r.Stops, model.Stop{Kind: model.StopDepot, Location: d.Location})
	return store.Plan{Routes: []model.Route{r}, Accepted: accepted, Load: map[int64]int{tr.ID: load}}
}

// Run exercises the shared store contract.
func Run(t *testing.T, open Factory) {
	t.Run("fleet", func(t *testing.T) { testFleet(t, open(t)) })
	t.Run("commit", func(t *testing.T) { testCommit(t, open(t)) })
	t.Run("commit is atomic", func(t *testing.T) { testCommitAtomic(t, open(t)) })
	t.Run("complete stop", func(t *testing.T) { testCompleteStop(t, open(t)) })
	t.Run("delete route", func(t *testing.T) { testDeleteRoute(t, open(t)) })
}

func testFleet(t *testing.T, s store.Store) {
	ctx := context.Background()
	_, err := s.Depot(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	d, tr, _ := seed(t, s)
	got, err := s.Depot(ctx)
	require.NoError(t, err)
	assert.Equal(t, d, got)

	moved, err := s.SaveDepot(ctx, model.Depot{Location: model.Coordinates{Lat: 1, Lon: 2}})
	require.NoError(t, err)
	assert.Equal(t, d.ID, moved.ID, "single depot is updated in place")

	require.NoError(t, s.UpdateTruckPosition(ctx, tr.ID, model.Coordinates{Lat: 3, Lon: 4}))
	tr2, err := s.Truck(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Coordinates{Lat: 3, Lon: 4}, tr2.Position)

	err = s.UpdateTruckPosition(ctx, 999, model.Coordinates{})
	var nf *store.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "truck", nf.Entity)

	_, err = s.SaveTruck(ctx, model.Truck{Capacity: 120, AvailableCapacity: 120})
	require.NoError(t, err)
	all, err := s.Trucks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Less(t, all[0].ID, all[1].ID)

	_, err = s.CreateRequests(ctx, []model.DeliveryRequest{{Demand: 0}})
	assert.Error(t, err)
}

func testCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	d, tr, reqs := seed(t, s)

	pending, err := s.PendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, model.RequestPending, pending[0].Status)

	routes, err := s.CommitPlan(ctx, planFor(d, tr, reqs))
	require.NoError(t, err)
	require.Len(t, routes, 1)
	r := routes[0]
	assert.NotZero(t, r.ID)
	require.Len(t, r.Stops, 4)
	for i, st := range r.Stops {
		assert.NotZero(t, st.ID)
		assert.Equal(t, r.ID, st.RouteID)
		assert.Equal(t, i, st.Sequence)
	}
	require.NotNil(t, r.Stops[1].ETA)
	assert.True(t, base.Add(10*time.Minute).Equal(*r.Stops[1].ETA))
	assert.Nil(t, r.Stops[3].ETA)

	pending, err = s.PendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	q, err := s.Request(ctx, reqs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestAccepted, q.Status)

	tr2, err := s.Truck(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, tr2.AvailableCapacity)

	latest, err := s.LatestRoute(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, latest.ID)
	_, err = s.LatestRoute(ctx, tr.ID+100)
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := s.Routes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testCommitAtomic(t *testing.T, s store.Store) {
	ctx := context.Background()
	d, tr, reqs := seed(t, s)
	p := planFor(d, tr, reqs)
	p.Load[tr.ID] = 11

	_, err := s.CommitPlan(ctx, p)
	assert.ErrorIs(t, err, store.ErrConflict)

	routes, err := s.Routes(ctx)
	require.NoError(t, err)
	assert.Empty(t, routes)
	pending, err := s.PendingRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2, "no request is accepted without its route")

	_, err = s.CommitPlan(ctx, planFor(d, tr, reqs))
	require.NoError(t, err)
	_, err = s.CommitPlan(ctx, planFor(d, tr, reqs[:1]))
	assert.ErrorIs(t, err, store.ErrConflict, "an accepted request cannot be accepted twice")
}

func testCompleteStop(t *testing.T, s store.Store) {
	ctx := context.Background()
	d, tr, reqs := seed(t, s)
	routes, err := s.CommitPlan(ctx, planFor(d, tr, reqs))
	require.NoError(t, err)
	target := routes[0].Stops[1]

	st, already, err := s.CompleteStop(ctx, target.ID)
	require.NoError(t, err)
	assert.False(t, already)
	assert.True(t, st.Completed)

	again, already, err := s.CompleteStop(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, already)
	assert.True(t, again.Completed)
	require.NotNil(t, again.ETA)
	assert.True(t, target.ETA.Equal(*again.ETA))

	q, err := s.Request(ctx, target.RequestID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestCompleted, q.Status)
	tr2, err := s.Truck(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, 3+4, tr2.AvailableCapacity)

	_, _, err = s.CompleteStop(ctx, 424242)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDeleteRoute(t *testing.T, s store.Store) {
	ctx := context.Background()
	d, tr, reqs := seed(t, s)
	routes, err := s.CommitPlan(ctx, planFor(d, tr, reqs))
	require.NoError(t, err)
	r := routes[0]

	assert.ErrorIs(t, s.DeleteRoute(ctx, r.ID), store.ErrConflict)
	for _, st := range r.Stops {
		_, _, err := s.CompleteStop(ctx, st.ID)
		require.NoError(t, err)
	}
	require.NoError(t, s.DeleteRoute(ctx, r.ID))

	all, err := s.Routes(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	_, _, err = s.CompleteStop(ctx, r.Stops[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "stops are deleted with their route")
	assert.ErrorIs(t, s.DeleteRoute(ctx, r.ID), store.ErrNotFound)
}
