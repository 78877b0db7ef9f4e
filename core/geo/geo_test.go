package geo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/core/model"
)

func TestDistanceSymmetric(t *testing.T) {
	p := NewProvider(50)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		a := model.Coordinates{Lat: rng.Float64()*180 - 90, Lon: rng.Float64()*360 - 180}
		b := model.Coordinates{Lat: rng.Float64()*180 - 90, Lon: rng.Float64()*360 - 180}
		assert.Equal(t, p.Distance(a, b), p.Distance(b, a))
	}
}

func TestDistanceKnownValues(t *testing.T) {
	p := NewProvider(50)
	assert.Zero(t, p.Distance(model.Coordinates{}, model.Coordinates{}))
	// one degree of longitude at the equator
	assert.InDelta(t, 111.195, p.Distance(model.Coordinates{}, model.Coordinates{Lon: 1}), 0.01)
	delhi := model.Coordinates{Lat: 28.7041, Lon: 77.1025}
	mumbai := model.Coordinates{Lat: 19.0760, Lon: 72.8777}
	assert.InDelta(t, 1153, p.Distance(delhi, mumbai), 5)
}

func TestTravelMinutes(t *testing.T) {
	p := NewProvider(50)
	assert.Equal(t, int64(60), p.TravelMinutes(50))
	assert.Equal(t, int64(1), p.TravelMinutes(0.5))
	assert.Equal(t, int64(0), p.TravelMinutes(0))
	assert.Equal(t, DefaultSpeedKmh, NewProvider(-3).Speed())
}

func TestMatrix(t *testing.T) {
	p := NewProvider(50)
	nodes := []model.Coordinates{{}, {Lon: 1}, {Lat: 1, Lon: 1}}
	m := p.NewMatrix(nodes)
	require.Equal(t, 3, m.Size())
	for i := range nodes {
		assert.Zero(t, m.Km(i, i))
		for j := range nodes {
			assert.Equal(t, m.Km(i, j), m.Km(j, i))
			assert.Equal(t, p.Distance(nodes[i], nodes[j]), m.Km(i, j))
			assert.Equal(t, p.TravelMinutes(m.Km(i, j)), m.Minutes(i, j))
		}
	}
	assert.Equal(t, 0, p.NewMatrix(nil).Size())
}
