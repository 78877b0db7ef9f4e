package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestStatusMonotonic(t *testing.T) {
	r := DeliveryRequest{ID: 7}
	require.NoError(t, r.Advance(RequestAccepted))
	require.NoError(t, r.Advance(RequestCompleted))
	assert.Error(t, r.Advance(RequestAccepted))
	assert.Error(t, r.Advance(RequestPending))
	assert.Equal(t, RequestCompleted, r.Status)

	skip := DeliveryRequest{ID: 8}
	assert.Error(t, skip.Advance(RequestCompleted))
}

func TestRequestStatusText(t *testing.T) {
	b, err := json.Marshal(struct {
		S RequestStatus `json:"s"`
	}{RequestAccepted})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"accepted"}`, string(b))

	var s RequestStatus
	require.NoError(t, s.UnmarshalText([]byte("completed")))
	assert.Equal(t, RequestCompleted, s)
	assert.Error(t, s.UnmarshalText([]byte("lost")))
}

func TestDeliveryRequestValidate(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	ok := DeliveryRequest{Demand: 3, Window: TimeWindow{Start: now, End: now.Add(time.Hour)}}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Demand = 0
	var verr *ValidationError
	require.True(t, errors.As(bad.Validate(), &verr))
	assert.Equal(t, "demand", verr.Field)

	inverted := ok
	inverted.Window = TimeWindow{Start: now, End: now}
	assert.Error(t, inverted.Validate())

	far := ok
	far.Location = Coordinates{Lat: 91}
	assert.Error(t, far.Validate())
}

func TestTruckValidateAndCanCarry(t *testing.T) {
	tr := Truck{ID: 1, Capacity: 10, AvailableCapacity: 4}
	assert.NoError(t, tr.Validate())
	assert.True(t, tr.CanCarry(4))
	assert.False(t, tr.CanCarry(5))

	tr.AvailableCapacity = 11
	assert.Error(t, tr.Validate())
	assert.Error(t, Truck{Capacity: 0}.Validate())
}

func TestRouteFingerprintIgnoresETAAndIDs(t *testing.T) {
	eta := time.Unix(600, 0)
	a := Route{TruckID: 1, Stops: []Stop{
		{Kind: StopDepot},
		{Kind: StopRequest, RequestID: 3, Location: Coordinates{Lat: 1, Lon: 2}, ETA: &eta},
		{Kind: StopDepot},
	}}
	b := a.Clone()
	b.ID = 99
	later := eta.Add(time.Minute)
	b.Stops[1].ETA = &later
	b.Stops[1].ID = 42
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, eta, *a.Stops[1].ETA, "clone must not alias ETAs")

	b.Stops[1].RequestID = 4
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestRouteOpenRequestsAndView(t *testing.T) {
	r := Route{ID: 5, TruckID: 2, Stops: []Stop{
		{ID: 1, Kind: StopDepot},
		{ID: 2, Kind: StopRequest, RequestID: 10, Completed: true},
		{ID: 3, Kind: StopRequest, RequestID: 11, Location: Coordinates{Lat: 1.5, Lon: 2.5}},
		{ID: 4, Kind: StopDepot},
	}}
	assert.Equal(t, []int64{11}, r.OpenRequests())

	v := NewRouteView(r)
	assert.Equal(t, int64(2), v.TruckID)
	require.Len(t, v.Stops, 4)
	assert.Equal(t, 1.5, v.Stops[2].Latitude)
	assert.Equal(t, StopRequest, v.Stops[2].StopKind)
	assert.True(t, v.Stops[1].Completed)

	assert.NotNil(t, NewRouteViews(nil))
}
