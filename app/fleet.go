package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/fleetroute/config"
	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/store"
)

// FleetRegistrar is the part of the planner that registers the fleet.
type FleetRegistrar interface {
	SetDepot(ctx context.Context, d model.Depot) (model.Depot, error)
	RegisterTruck(ctx context.Context, t model.Truck) (model.Truck, error)
	Depot(ctx context.Context) (model.Depot, error)
	Trucks(ctx context.Context) ([]model.Truck, error)
}

// Seed writes the configured depot and trucks. Trucks carrying an ID
// replace the stored ones and keep the load of their open routes.
func Seed(ctx context.Context, r FleetRegistrar, fleet config.FleetConfig) (trucks []model.Truck, err error) {
	if fleet.Depot != nil {
		if _, err := r.SetDepot(ctx, *fleet.Depot); err != nil {
			return nil, fmt.Errorf("depot: %w", err)
		}
	}
	for _, t := range fleet.Trucks {
		saved, err := r.RegisterTruck(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("truck %d: %w", t.ID, err)
		}
		trucks = append(trucks, saved)
	}
	return trucks, nil
}

// SeedIfEmpty seeds the fleet only when the store holds neither a depot
// nor trucks.
func SeedIfEmpty(ctx context.Context, r FleetRegistrar, fleet config.FleetConfig) error {
	if fleet.Depot == nil && len(fleet.Trucks) == 0 {
		return nil
	}
	_, err := r.Depot(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return err
	}
	trucks, err := r.Trucks(ctx)
	if err != nil {
		return err
	}
	if len(trucks) > 0 {
		return nil
	}
	_, err = Seed(ctx, r, fleet)
	return err
}
