package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/store"
	"github.com/kilianp07/fleetroute/core/store/storetest"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return open(t) })
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.db")
	s, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	tr, err := s.SaveTruck(ctx, model.Truck{Capacity: 100, AvailableCapacity: 100, Position: model.Coordinates{Lat: 28.7, Lon: 77.1}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Truck(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr, got)
}

func TestSaveTruckWithExplicitID(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	_, err := s.SaveTruck(ctx, model.Truck{ID: 7, Capacity: 10, AvailableCapacity: 10})
	require.NoError(t, err)
	updated, err := s.SaveTruck(ctx, model.Truck{ID: 7, Capacity: 12, AvailableCapacity: 5})
	require.NoError(t, err)
	got, err := s.Truck(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}
