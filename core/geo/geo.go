// Package geo computes great-circle distances and travel times between
// coordinates and packs them into per-solve matrices.
package geo

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/fleetroute/core/model"
)

// EarthRadiusKm is the IUGG mean Earth radius.
const EarthRadiusKm = 6371.0088

// DefaultSpeedKmh is the average truck speed used for travel times.
const DefaultSpeedKmh = 50.0

// Provider converts coordinate pairs into kilometres and minutes.
type Provider struct {
	speedKmh float64
}

// NewProvider returns a provider for the given average speed. A
// non-positive speed falls back to DefaultSpeedKmh.
func NewProvider(speedKmh float64) Provider {
	if speedKmh <= 0 || math.IsNaN(speedKmh) || math.IsInf(speedKmh, 0) {
		speedKmh = DefaultSpeedKmh
	}
	return Provider{speedKmh: speedKmh}
}

// Speed returns the average speed in km/h.
func (p Provider) Speed() float64 { return p.speedKmh }

// Distance returns the haversine distance in kilometres. The points are
// ordered before evaluation so Distance(a, b) == Distance(b, a) bit for bit.
func (p Provider) Distance(a, b model.Coordinates) float64 {
	if less(b, a) {
		a, b = b, a
	}
	return Haversine(a, b)
}

// TravelMinutes converts a distance into whole minutes at the provider speed.
func (p Provider) TravelMinutes(km float64) int64 {
	return int64(math.Round(km / p.speedKmh * 60))
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b model.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

func less(a, b model.Coordinates) bool {
	if a.Lat != b.Lat {
		return a.Lat < b.Lat
	}
	return a.Lon < b.Lon
}

// Matrix holds the symmetric distance and travel-time matrices of a node set.
type Matrix struct {
	n       int
	km      *mat.SymDense
	minutes *mat.SymDense
}

// NewMatrix computes both matrices once for the given nodes.
func (p Provider) NewMatrix(nodes []model.Coordinates) *Matrix {
	n := len(nodes)
	m := &Matrix{n: n}
	if n == 0 {
		return m
	}
	m.km = mat.NewSymDense(n, nil)
	m.minutes = mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := p.Distance(nodes[i], nodes[j])
			m.km.SetSym(i, j, d)
			m.minutes.SetSym(i, j, float64(p.TravelMinutes(d)))
		}
	}
	return m
}

// Size returns the number of nodes.
func (m *Matrix) Size() int { return m.n }

// Km returns the distance between nodes i and j.
func (m *Matrix) Km(i, j int) float64 {
	if i == j {
		return 0
	}
	return m.km.At(i, j)
}

// Minutes returns the travel time between nodes i and j.
func (m *Matrix) Minutes(i, j int) int64 {
	if i == j {
		return 0
	}
	return int64(m.minutes.At(i, j))
}
