package model

import "time"

// StopView is the wire shape of a stop pushed to clients and observers.
type StopView struct {
	ID        int64      `json:"id"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	ETA       *time.Time `json:"eta,omitempty"`
	StopKind  StopKind   `json:"stop_kind"`
	Completed bool       `json:"completed"`
}

// RouteView is the wire shape of a route.
type RouteView struct {
	ID      int64      `json:"id"`
	TruckID int64      `json:"truck_id"`
	Stops   []StopView `json:"stops"`
}

// NewRouteView converts a route to its wire shape.
func NewRouteView(r Route) RouteView {
	v := RouteView{ID: r.ID, TruckID: r.TruckID, Stops: make([]StopView, 0, len(r.Stops))}
	for _, s := range r.Stops {
		v.Stops = append(v.Stops, StopView{
			ID:        s.ID,
			Latitude:  s.Location.Lat,
			Longitude: s.Location.Lon,
			ETA:       s.ETA,
			StopKind:  s.Kind,
			Completed: s.Completed,
		})
	}
	return v
}

// NewRouteViews converts a route set, never returning nil.
func NewRouteViews(routes []Route) []RouteView {
	out := make([]RouteView, 0, len(routes))
	for _, r := range routes {
		out = append(out, NewRouteView(r))
	}
	return out
}
