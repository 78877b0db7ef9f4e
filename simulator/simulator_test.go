package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/core/logger"
	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/infra/mqtt"
)

type recordSink struct {
	mu    sync.Mutex
	pings map[int64][]model.Coordinates
}

func (s *recordSink) Ping(_ context.Context, id int64, pos model.Coordinates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pings == nil {
		s.pings = map[int64][]model.Coordinates{}
	}
	s.pings[id] = append(s.pings[id], pos)
	return nil
}

type recordPub struct {
	topic   string
	payload []byte
}

func (p *recordPub) Publish(_ context.Context, topic, _ string, _ bool, payload []byte) error {
	p.topic, p.payload = topic, payload
	return nil
}

func routeFixture() []model.RouteView {
	return []model.RouteView{
		{ID: 1, TruckID: 7, Stops: []model.StopView{
			{StopKind: model.StopDepot},
			{StopKind: model.StopRequest, Latitude: 0, Longitude: 1, Completed: true},
			{StopKind: model.StopDepot},
		}},
		{ID: 2, TruckID: 8, Stops: []model.StopView{
			{StopKind: model.StopDepot},
			{StopKind: model.StopRequest, Latitude: 0, Longitude: 2},
			{StopKind: model.StopDepot},
		}},
		{ID: 3, TruckID: 7, Stops: []model.StopView{
			{StopKind: model.StopRequest, Latitude: 1, Longitude: 0},
			{StopKind: model.StopDepot},
		}},
	}
}

func TestWaypointsInterpolate(t *testing.T) {
	tr := &SimulatedTruck{Path: []model.Coordinates{{}, {Lat: 2, Lon: 4}}, Steps: 2}
	assert.Equal(t, []model.Coordinates{{}, {Lat: 1, Lon: 2}, {Lat: 2, Lon: 4}}, tr.Waypoints())
	assert.Nil(t, (&SimulatedTruck{}).Waypoints())
}

func TestPlanTrucksUsesLatestOpenRoute(t *testing.T) {
	trucks := PlanTrucks(routeFixture())
	require.Len(t, trucks, 2)
	assert.Equal(t, int64(7), trucks[0].ID)
	assert.Equal(t, []model.Coordinates{{Lat: 1, Lon: 0}, {}}, trucks[0].Path)
	assert.Equal(t, int64(8), trucks[1].ID)
	assert.Len(t, trucks[1].Path, 3)
}

func TestPlanTrucksSkipsFinishedRoutes(t *testing.T) {
	routes := routeFixture()[:1]
	assert.Empty(t, PlanTrucks(routes))
}

func TestRunCycleOverHTTP(t *testing.T) {
	var mu sync.Mutex
	var posted []mqtt.PositionMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/routes":
			_ = json.NewEncoder(w).Encode(routeFixture())
		case r.Method == http.MethodPost && r.URL.Path == "/api/trucks/position":
			var m mqtt.PositionMessage
			if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			mu.Lock()
			posted = append(posted, m)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"status":"updated"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := Config{API: srv.URL, Sink: "http", Steps: 1}
	require.NoError(t, cfg.Validate())
	sink := &HTTPSink{Client: srv.Client(), API: srv.URL}
	require.NoError(t, runCycle(context.Background(), srv.Client(), sink, cfg, logger.Nop{}))

	mu.Lock()
	defer mu.Unlock()
	// truck 7 drives two stops, truck 8 three
	require.Len(t, posted, 5)
	per := map[int64]int{}
	for _, m := range posted {
		per[m.TruckID]++
	}
	assert.Equal(t, map[int64]int{7: 2, 8: 3}, per)
}

func TestFetchRoutesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	_, err := FetchRoutes(context.Background(), srv.Client(), srv.URL)
	assert.Error(t, err)
}

func TestMQTTSinkTopic(t *testing.T) {
	pub := &recordPub{}
	sink := &MQTTSink{Pub: pub, Topic: mqtt.DefaultPositionTopic}
	require.NoError(t, sink.Ping(context.Background(), 12, model.Coordinates{Lat: 1.5, Lon: 2.5}))
	assert.Equal(t, "fleet/trucks/12/position", pub.topic)
	assert.JSONEq(t, `{"lat":1.5,"lon":2.5}`, string(pub.payload))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &recordSink{}
	tr := &SimulatedTruck{ID: 1, Path: []model.Coordinates{{}, {Lat: 1}}, Steps: 3, Interval: time.Hour, Sink: sink}
	assert.ErrorIs(t, tr.Run(ctx), context.Canceled)
	assert.Len(t, sink.pings[1], 1)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{API: "x", Sink: "carrier-pigeon"}).Validate())
	assert.Error(t, (&Config{API: "x", Sink: "mqtt"}).Validate())
	cfg := Config{API: "x", Sink: "http"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Steps)
}
