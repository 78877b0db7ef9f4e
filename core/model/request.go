package model

import (
	"fmt"
	"time"
)

// RequestStatus is the lifecycle state of a delivery request.
type RequestStatus int

const (
	RequestPending RequestStatus = iota
	RequestAccepted
	RequestCompleted
)

func (s RequestStatus) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestAccepted:
		return "accepted"
	case RequestCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseRequestStatus is the inverse of String.
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch s {
	case "pending":
		return RequestPending, nil
	case "accepted":
		return RequestAccepted, nil
	case "completed":
		return RequestCompleted, nil
	}
	return 0, fmt.Errorf("unknown request status %q", s)
}

func (s RequestStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *RequestStatus) UnmarshalText(b []byte) error {
	v, err := ParseRequestStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CanAdvanceTo reports whether the transition keeps the lifecycle monotonic:
// pending -> accepted -> completed, one step at a time.
func (s RequestStatus) CanAdvanceTo(next RequestStatus) bool {
	return next == s+1 && next <= RequestCompleted
}

// TimeWindow is the closed interval in which a stop must be served.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DeliveryRequest is a delivery or pickup to be served by one truck.
type DeliveryRequest struct {
	ID       int64         `json:"id"`
	Location Coordinates   `json:"location"`
	Demand   int           `json:"demand"`
	Window   TimeWindow    `json:"window"`
	Status   RequestStatus `json:"status"`
}

// Validate checks the demand and the time window of the request.
func (r DeliveryRequest) Validate() error {
	if r.Demand <= 0 {
		return &ValidationError{Field: "demand", Reason: "must be a positive integer"}
	}
	if r.Window.Start.IsZero() || r.Window.End.IsZero() {
		return &ValidationError{Field: "window", Reason: "start_time and end_time are required"}
	}
	if !r.Window.Start.Before(r.Window.End) {
		return &ValidationError{Field: "window", Reason: "start_time must be before end_time"}
	}
	return r.Location.Validate()
}

// Advance moves the request to next, refusing backward or skipping transitions.
func (r *DeliveryRequest) Advance(next RequestStatus) error {
	if !r.Status.CanAdvanceTo(next) {
		return fmt.Errorf("request %d: cannot move from %s to %s", r.ID, r.Status, next)
	}
	r.Status = next
	return nil
}
