package routing

import (
	"time"

	"github.com/kilianp07/fleetroute/core/model"
)

// PlannedStop is one visit computed by the solver or the insertion engine.
// A zero ETA means the stop is unscheduled.
type PlannedStop struct {
	Kind      model.StopKind
	Location  model.Coordinates
	RequestID int64
	ETA       time.Time
}

// PlannedRoute is the unpersisted stop sequence of one truck.
type PlannedRoute struct {
	TruckID int64
	Load    int
	Stops   []PlannedStop
}

// RequestIDs returns the requests served by the route in visiting order.
func (r PlannedRoute) RequestIDs() []int64 {
	var ids []int64
	for _, s := range r.Stops {
		if s.Kind == model.StopRequest {
			ids = append(ids, s.RequestID)
		}
	}
	return ids
}

// Plan converts a solution to planned routes. Vehicles without requests
// produce no route.
func (p *Problem) Plan(sol *Solution) []PlannedRoute {
	var out []PlannedRoute
	for v, nodes := range sol.Routes {
		if len(nodes) == 0 {
			continue
		}
		pr := PlannedRoute{TruckID: p.Vehicles[v].TruckID, Stops: make([]PlannedStop, 0, len(nodes))}
		for i, n := range nodes {
			node := p.Nodes[n]
			kind := model.StopRequest
			if n == DepotNode {
				kind = model.StopDepot
			}
			pr.Load += node.Demand
			pr.Stops = append(pr.Stops, PlannedStop{
				Kind:      kind,
				Location:  node.Location,
				RequestID: node.RequestID,
				ETA:       timeOf(sol.Service[v][i]),
			})
		}
		out = append(out, pr)
	}
	return out
}

// Materialize turns planned routes into route records with sequenced,
// uncompleted stops. A planned route whose fingerprint equals the latest
// route of its truck is reported as unchanged instead of being emitted
// again, so materializing the same plan twice never duplicates stops.
func Materialize(planned []PlannedRoute, latest map[int64]model.Route, createdAt time.Time) (fresh []model.Route, unchanged []int64) {
	for _, pr := range planned {
		r := model.Route{TruckID: pr.TruckID, CreatedAt: createdAt, Stops: make([]model.Stop, 0, len(pr.Stops))}
		for i, ps := range pr.Stops {
			st := model.Stop{
				Sequence:  i,
				Kind:      ps.Kind,
				Location:  ps.Location,
				RequestID: ps.RequestID,
			}
			if !ps.ETA.IsZero() {
				eta := ps.ETA
				st.ETA = &eta
			}
			r.Stops = append(r.Stops, st)
		}
		if prev, ok := latest[pr.TruckID]; ok && prev.Fingerprint() == r.Fingerprint() {
			unchanged = append(unchanged, pr.TruckID)
			continue
		}
		fresh = append(fresh, r)
	}
	return fresh, unchanged
}
