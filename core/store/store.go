// Package store defines persistence of the fleet, its requests and its
// routes, and provides an in-memory implementation.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/fleetroute/core/model"
)

var (
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrConflict rejects a write that would break an ownership or
	// lifecycle rule.
	ErrConflict = errors.New("conflict")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Plan is one all-or-nothing write of solver output: the routes, the
// requests they accept and the load each truck takes on.
type Plan struct {
	Routes   []model.Route
	Accepted []int64
	Load     map[int64]int
}

// Store persists the fleet state. Implementations must be safe for
// concurrent use and apply CommitPlan, CompleteStop and DeleteRoute
// atomically.
type Store interface {
	Depot(ctx context.Context) (model.Depot, error)
	SaveDepot(ctx context.Context, d model.Depot) (model.Depot, error)

	Trucks(ctx context.Context) ([]model.Truck, error)
	Truck(ctx context.Context, id int64) (model.Truck, error)
	SaveTruck(ctx context.Context, t model.Truck) (model.Truck, error)
	UpdateTruckPosition(ctx context.Context, id int64, pos model.Coordinates) error

	CreateRequests(ctx context.Context, reqs []model.DeliveryRequest) ([]model.DeliveryRequest, error)
	PendingRequests(ctx context.Context) ([]model.DeliveryRequest, error)
	Request(ctx context.Context, id int64) (model.DeliveryRequest, error)

	CommitPlan(ctx context.Context, p Plan) ([]model.Route, error)
	Routes(ctx context.Context) ([]model.Route, error)
	LatestRoute(ctx context.Context, truckID int64) (model.Route, error)
	CompleteStop(ctx context.Context, stopID int64) (stop model.Stop, already bool, err error)
	DeleteRoute(ctx context.Context, routeID int64) error

	Close() error
}

// LatestByTruck indexes routes by truck, keeping the highest route ID.
func LatestByTruck(routes []model.Route) map[int64]model.Route {
	out := make(map[int64]model.Route, len(routes))
	for _, r := range routes {
		if prev, ok := out[r.TruckID]; !ok || r.ID > prev.ID {
			out[r.TruckID] = r
		}
	}
	return out
}
