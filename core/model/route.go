package model

import (
	"fmt"
	"time"
)

// StopKind tells whether a stop is the depot or a request location.
type StopKind string

const (
	StopDepot   StopKind = "depot"
	StopRequest StopKind = "request"
)

// Stop is one visit of a route. Completed is only toggled by completion events.
type Stop struct {
	ID        int64       `json:"id"`
	RouteID   int64       `json:"route_id"`
	Sequence  int         `json:"sequence"`
	Kind      StopKind    `json:"stop_kind"`
	Location  Coordinates `json:"location"`
	RequestID int64       `json:"request_id,omitempty"`
	ETA       *time.Time  `json:"eta,omitempty"`
	Completed bool        `json:"completed"`
}

// Route is the ordered stop sequence of one truck. A route owns its stops.
type Route struct {
	ID        int64     `json:"id"`
	TruckID   int64     `json:"truck_id"`
	CreatedAt time.Time `json:"created_at"`
	Stops     []Stop    `json:"stops"`
}

// OpenRequests returns the request IDs of stops not yet completed.
func (r Route) OpenRequests() []int64 {
	var ids []int64
	for _, s := range r.Stops {
		if s.Kind == StopRequest && !s.Completed {
			ids = append(ids, s.RequestID)
		}
	}
	return ids
}

// Fingerprint identifies the truck and visiting order of a route, ignoring
// stop identifiers and ETAs.
func (r Route) Fingerprint() string {
	fp := fmt.Sprintf("t%d", r.TruckID)
	for _, s := range r.Stops {
		fp += fmt.Sprintf("|%s:%d:%.6f,%.6f", s.Kind, s.RequestID, s.Location.Lat, s.Location.Lon)
	}
	return fp
}

// Clone returns a deep copy of the route.
func (r Route) Clone() Route {
	cp := r
	cp.Stops = make([]Stop, len(r.Stops))
	for i, s := range r.Stops {
		if s.ETA != nil {
			eta := *s.ETA
			s.ETA = &eta
		}
		cp.Stops[i] = s
	}
	return cp
}
