package routing

import (
	"math"
	"time"

	"github.com/kilianp07/fleetroute/core/geo"
	"github.com/kilianp07/fleetroute/core/model"
)

// DepotNode is the index of the depot in every problem.
const DepotNode = 0

// Window is a time window in absolute minutes since the Unix epoch.
type Window struct {
	Start int64
	End   int64
}

// Node is one location of a problem. Node 0 is the depot.
type Node struct {
	RequestID int64
	Location  model.Coordinates
	Demand    int
	Window    Window
}

// Vehicle is one truck of a problem with the load it can still take.
type Vehicle struct {
	TruckID  int64
	Capacity int
}

// Problem is a routing instance. Matrix is computed once at build time.
type Problem struct {
	Start    time.Time
	Nodes    []Node
	Vehicles []Vehicle
	Matrix   *geo.Matrix
}

// Minute converts t to absolute minutes, rounding down. Window ends use it
// so a stop is never scheduled past its real end.
func Minute(t time.Time) int64 { return t.Unix() / 60 }

// MinuteCeil converts t to absolute minutes, rounding up. Window starts and
// route starts use it so no ETA falls before the instant it stands for.
func MinuteCeil(t time.Time) int64 {
	m := t.Unix() / 60
	if t.Unix()%60 != 0 || t.Nanosecond() != 0 {
		m++
	}
	return m
}

// startMinute is the route-start instant of every vehicle.
func (p *Problem) startMinute() int64 { return MinuteCeil(p.Start) }

// timeOf converts an absolute minute back to a timestamp.
func timeOf(min int64) time.Time { return time.Unix(min*60, 0).UTC() }

// BuildProblem assembles the instance for the depot, the trucks and the
// pending requests. Vehicle capacity is the truck's available capacity.
func BuildProblem(provider geo.Provider, depot *model.Depot, trucks []model.Truck, requests []model.DeliveryRequest, now time.Time) (*Problem, error) {
	if depot == nil {
		return nil, &ConfigurationError{Reason: "no depot registered"}
	}
	if len(trucks) == 0 {
		return nil, &ConfigurationError{Reason: "no trucks registered"}
	}
	p := &Problem{
		Start:    now,
		Nodes:    make([]Node, 0, len(requests)+1),
		Vehicles: make([]Vehicle, 0, len(trucks)),
	}
	p.Nodes = append(p.Nodes, Node{Location: depot.Location, Window: Window{Start: 0, End: math.MaxInt64}})
	for _, r := range requests {
		p.Nodes = append(p.Nodes, Node{
			RequestID: r.ID,
			Location:  r.Location,
			Demand:    r.Demand,
			Window:    Window{Start: MinuteCeil(r.Window.Start), End: Minute(r.Window.End)},
		})
	}
	for _, t := range trucks {
		p.Vehicles = append(p.Vehicles, Vehicle{TruckID: t.ID, Capacity: t.AvailableCapacity})
	}
	locs := make([]model.Coordinates, len(p.Nodes))
	for i, n := range p.Nodes {
		locs[i] = n.Location
	}
	p.Matrix = provider.NewMatrix(locs)
	return p, nil
}
