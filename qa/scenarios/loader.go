package scenarios

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fleetroute/core/model"
)

// Epoch is the planning clock of every scenario. Request windows are given
// as minute offsets from it.
var Epoch = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

type PointDef struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

func (p PointDef) ToModel() model.Coordinates {
	return model.Coordinates{Lat: p.Lat, Lon: p.Lon}
}

type TruckDef struct {
	Capacity int      `yaml:"capacity"`
	Position PointDef `yaml:"position"`
}

func (t TruckDef) ToModel() model.Truck {
	return model.Truck{Capacity: t.Capacity, Position: t.Position.ToModel()}
}

type RequestDef struct {
	Lat    float64 `yaml:"lat"`
	Lon    float64 `yaml:"lon"`
	Demand int     `yaml:"demand"`
	// Window bounds in minutes from Epoch. A zero end means a day-long window.
	StartMinutes int `yaml:"start_minutes"`
	EndMinutes   int `yaml:"end_minutes"`
}

func (r RequestDef) ToModel() model.DeliveryRequest {
	end := r.EndMinutes
	if end == 0 {
		end = 24 * 60
	}
	return model.DeliveryRequest{
		Location: model.Coordinates{Lat: r.Lat, Lon: r.Lon},
		Demand:   r.Demand,
		Window: model.TimeWindow{
			Start: Epoch.Add(time.Duration(r.StartMinutes) * time.Minute),
			End:   Epoch.Add(time.Duration(end) * time.Minute),
		},
	}
}

type Expected struct {
	// Error is one of "", "configuration", "infeasible" or "validation".
	Error          string `yaml:"error,omitempty"`
	Routes         int    `yaml:"routes"`
	Assigned       int    `yaml:"assigned"`
	Unassigned     int    `yaml:"unassigned"`
	UsedCapacity   int    `yaml:"used_capacity"`
	UrgentTruck    int    `yaml:"urgent_truck,omitempty"`
	AlreadyOnRetry bool   `yaml:"already_on_retry,omitempty"`
	Broadcasts     int    `yaml:"broadcasts"`
}

type Scenario struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Depot       *PointDef    `yaml:"depot,omitempty"`
	Trucks      []TruckDef   `yaml:"trucks"`
	Batch       []RequestDef `yaml:"batch,omitempty"`
	Urgent      *RequestDef  `yaml:"urgent,omitempty"`
	// CompleteTwice completes the first request stop of the result twice.
	CompleteTwice bool     `yaml:"complete_twice,omitempty"`
	Expected      Expected `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
