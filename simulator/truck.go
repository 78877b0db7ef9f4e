package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/fleetroute/core/logger"
	"github.com/kilianp07/fleetroute/core/model"
)

// SimulatedTruck drives along the open stops of its latest route and
// reports its position through a PingSink.
type SimulatedTruck struct {
	ID       int64
	Path     []model.Coordinates
	Steps    int
	Interval time.Duration
	Sink     PingSink
	Log      logger.Logger
}

// Waypoints returns the positions reported along the path: the first stop,
// then Steps evenly spaced points per leg.
func (t *SimulatedTruck) Waypoints() []model.Coordinates {
	if len(t.Path) == 0 {
		return nil
	}
	steps := t.Steps
	if steps <= 0 {
		steps = 1
	}
	out := []model.Coordinates{t.Path[0]}
	for i := 1; i < len(t.Path); i++ {
		a, b := t.Path[i-1], t.Path[i]
		for s := 1; s <= steps; s++ {
			f := float64(s) / float64(steps)
			out = append(out, model.Coordinates{
				Lat: a.Lat + (b.Lat-a.Lat)*f,
				Lon: a.Lon + (b.Lon-a.Lon)*f,
			})
		}
	}
	return out
}

// Run emits every waypoint, pausing Interval between pings, until the path
// is done or ctx is cancelled.
func (t *SimulatedTruck) Run(ctx context.Context) error {
	log := logger.OrNop(t.Log)
	for i, p := range t.Waypoints() {
		if i > 0 && t.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.Interval):
			}
		}
		if err := t.Sink.Ping(ctx, t.ID, p); err != nil {
			log.Warnf("truck %d: ping failed: %v", t.ID, err)
			continue
		}
		log.Debugf("truck %d at %.5f,%.5f", t.ID, p.Lat, p.Lon)
	}
	return nil
}

// PlanTrucks builds one simulated truck per truck with open stops, following
// its most recent route. Completed request stops are skipped.
func PlanTrucks(routes []model.RouteView) []*SimulatedTruck {
	latest := map[int64]model.RouteView{}
	var order []int64
	for _, r := range routes {
		prev, ok := latest[r.TruckID]
		if !ok {
			order = append(order, r.TruckID)
		}
		if !ok || r.ID > prev.ID {
			latest[r.TruckID] = r
		}
	}
	var out []*SimulatedTruck
	for _, id := range order {
		r := latest[id]
		var path []model.Coordinates
		open := false
		for _, s := range r.Stops {
			if s.StopKind == model.StopRequest {
				if s.Completed {
					continue
				}
				open = true
			}
			path = append(path, model.Coordinates{Lat: s.Latitude, Lon: s.Longitude})
		}
		if !open {
			continue
		}
		out = append(out, &SimulatedTruck{ID: id, Path: path})
	}
	return out
}

// FetchRoutes reads the route snapshot from the API.
func FetchRoutes(ctx context.Context, cli *http.Client, api string) ([]model.RouteView, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(api, "/")+"/api/routes", nil)
	if err != nil {
		return nil, err
	}
	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch routes: %s", resp.Status)
	}
	var routes []model.RouteView
	if err := json.NewDecoder(resp.Body).Decode(&routes); err != nil {
		return nil, fmt.Errorf("decode routes: %w", err)
	}
	return routes, nil
}
