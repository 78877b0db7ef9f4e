package routing

import (
	"time"

	"github.com/kilianp07/fleetroute/core/geo"
	"github.com/kilianp07/fleetroute/core/model"
)

// InsertUrgent assigns one request to the nearest truck whose available
// capacity covers its demand, ties going to the lowest truck ID. The result
// is a dedicated route visiting the request and returning to the depot.
// Windows never reject the request; an early arrival waits for the window
// to open.
func InsertUrgent(provider geo.Provider, depot *model.Depot, trucks []model.Truck, req model.DeliveryRequest, now time.Time) (*PlannedRoute, error) {
	if depot == nil {
		return nil, &ConfigurationError{Reason: "no depot registered"}
	}
	if len(trucks) == 0 {
		return nil, &ConfigurationError{Reason: "no trucks registered"}
	}
	best := -1
	var bestKm float64
	maxFree := 0
	for i, t := range trucks {
		if t.AvailableCapacity > maxFree {
			maxFree = t.AvailableCapacity
		}
		if !t.CanCarry(req.Demand) {
			continue
		}
		d := provider.Distance(t.Position, req.Location)
		if best < 0 || d < bestKm || (d == bestKm && t.ID < trucks[best].ID) {
			best, bestKm = i, d
		}
	}
	if best < 0 {
		return nil, &InfeasibleRequestError{Demand: req.Demand, MaxFree: maxFree}
	}
	truck := trucks[best]

	t := MinuteCeil(now) + provider.TravelMinutes(bestKm)
	if start := MinuteCeil(req.Window.Start); t < start {
		t = start
	}
	arrival := timeOf(t)
	back := timeOf(t + provider.TravelMinutes(provider.Distance(req.Location, depot.Location)))
	return &PlannedRoute{
		TruckID: truck.ID,
		Load:    req.Demand,
		Stops: []PlannedStop{
			{Kind: model.StopRequest, Location: req.Location, RequestID: req.ID, ETA: arrival},
			{Kind: model.StopDepot, Location: depot.Location, ETA: back},
		},
	}, nil
}
