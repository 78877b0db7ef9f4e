// Package events defines what the planner publishes on the event bus.
package events

import (
	"time"

	"github.com/kilianp07/fleetroute/core/model"
)

// Kind names an event type. It is also the plan log kind.
type Kind string

const (
	KindPlan         Kind = "plan"
	KindInsert       Kind = "insert"
	KindCompletion   Kind = "completion"
	KindPosition     Kind = "position"
	KindRouteDeleted Kind = "route_deleted"
)

// Event is any planner event.
type Event interface {
	Kind() Kind
}

// PlanEvent follows a committed batch plan.
type PlanEvent struct {
	RunID      string
	Routes     int
	Assigned   []int64
	Unassigned []int64
	TimedOut   bool
	Duration   time.Duration
}

func (PlanEvent) Kind() Kind { return KindPlan }

// InsertEvent follows a committed urgent insertion.
type InsertEvent struct {
	RunID     string
	RequestID int64
	TruckID   int64
	RouteID   int64
}

func (InsertEvent) Kind() Kind { return KindInsert }

// CompletionEvent follows a stop completion. Already is set when the stop
// was completed before and nothing changed.
type CompletionEvent struct {
	StopID    int64
	RequestID int64
	Already   bool
}

func (CompletionEvent) Kind() Kind { return KindCompletion }

// PositionEvent follows a truck position update.
type PositionEvent struct {
	TruckID  int64
	Position model.Coordinates
}

func (PositionEvent) Kind() Kind { return KindPosition }

// RouteDeletedEvent follows the removal of a route and its stops.
type RouteDeletedEvent struct {
	RouteID int64
}

func (RouteDeletedEvent) Kind() Kind { return KindRouteDeleted }
