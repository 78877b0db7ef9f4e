package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/fleetroute/core/factory"
	"github.com/kilianp07/fleetroute/core/geo"
	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/routing"
)

// RoutingConfig tunes the travel model and the solver.
type RoutingConfig struct {
	AverageSpeedKmh float64 `json:"average_speed_kmh"`
	SearchBudgetMS  int     `json:"search_budget_ms"`
	// LocalSearch is a pointer so that an explicit false survives defaults.
	LocalSearch *bool `json:"local_search"`
}

func (c *RoutingConfig) SetDefaults() {
	if c.AverageSpeedKmh == 0 {
		c.AverageSpeedKmh = geo.DefaultSpeedKmh
	}
	if c.SearchBudgetMS == 0 {
		c.SearchBudgetMS = int(routing.DefaultBudget / time.Millisecond)
	}
	if c.LocalSearch == nil {
		on := true
		c.LocalSearch = &on
	}
}

func (c RoutingConfig) Validate() error {
	if c.AverageSpeedKmh <= 0 {
		return fmt.Errorf("average_speed_kmh must be positive")
	}
	if c.SearchBudgetMS <= 0 {
		return fmt.Errorf("search_budget_ms must be positive")
	}
	return nil
}

// SearchBudget returns the solver budget as a duration.
func (c RoutingConfig) SearchBudget() time.Duration {
	return time.Duration(c.SearchBudgetMS) * time.Millisecond
}

// LocalSearchEnabled reports whether the improvement phase runs.
func (c RoutingConfig) LocalSearchEnabled() bool {
	return c.LocalSearch == nil || *c.LocalSearch
}

// StoreConfig selects the route store.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "fleetroute.db"
	}
}

func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "sqlite":
		if c.Path == "" {
			return errors.New("path is required")
		}
		return nil
	}
	return fmt.Errorf("unknown backend %q", c.Backend)
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// LogToken protects the plan log endpoint when set.
	LogToken        string `json:"log_token"`
	ShutdownTimeout int    `json:"shutdown_timeout_seconds"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10
	}
}

func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	return nil
}

// MetricsConfig lists the metric sinks and the Prometheus listener.
type MetricsConfig struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr starts a /metrics listener when set.
	PrometheusAddr string `json:"prometheus_addr"`
}

// FleetConfig seeds the depot and the trucks.
type FleetConfig struct {
	Depot  *model.Depot  `json:"depot"`
	Trucks []model.Truck `json:"trucks"`
}

func (c FleetConfig) Validate() error {
	if c.Depot != nil {
		if err := c.Depot.Location.Validate(); err != nil {
			return fmt.Errorf("depot: %w", err)
		}
	}
	for i, t := range c.Trucks {
		if t.AvailableCapacity == 0 {
			t.AvailableCapacity = t.Capacity
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("truck %d: %w", i, err)
		}
	}
	return nil
}

// SentryConfig enables error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
	Release          string  `json:"release"`
}
