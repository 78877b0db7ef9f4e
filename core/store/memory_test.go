package store_test

import (
	"testing"

	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/store"
	"github.com/kilianp07/fleetroute/core/store/storetest"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return store.NewMemoryStore() })
}

func TestLatestByTruck(t *testing.T) {
	got := store.LatestByTruck([]model.Route{{ID: 1, TruckID: 1}, {ID: 3, TruckID: 1}, {ID: 2, TruckID: 2}})
	assert.Equal(t, int64(3), got[1].ID)
	assert.Equal(t, int64(2), got[2].ID)
}
