package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fleetroute/core/planlog"
	"github.com/kilianp07/fleetroute/core/scheduler"
	"github.com/kilianp07/fleetroute/infra/mqtt"
)

type Config struct {
	LogLevel string           `json:"log_level"`
	Routing  RoutingConfig    `json:"routing"`
	Store    StoreConfig      `json:"store"`
	HTTP     HTTPConfig       `json:"http"`
	MQTT     mqtt.Config      `json:"mqtt"`
	Metrics  MetricsConfig    `json:"metrics"`
	PlanLog  planlog.Config   `json:"plan_log"`
	Sentry   SentryConfig     `json:"sentry"`
	Fleet    FleetConfig      `json:"fleet"`
	Replan   scheduler.Config `json:"replan"`
}

// Load reads a YAML or JSON file, applies K_ environment overrides
// (K_ROUTING__SEARCH_BUDGET_MS=100) and returns the validated config.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied, used when no file
// is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Routing.SetDefaults()
	c.Store.SetDefaults()
	c.HTTP.SetDefaults()
	c.MQTT.SetDefaults()
	c.PlanLog.SetDefaults()
}

// Validate checks every section and joins the failures.
func (c Config) Validate() error {
	var errs []error
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	sections := []struct {
		name string
		err  error
	}{
		{"routing", c.Routing.Validate()},
		{"store", c.Store.Validate()},
		{"http", c.HTTP.Validate()},
		{"mqtt", c.MQTT.Validate()},
		{"plan_log", c.PlanLog.Validate()},
		{"fleet", c.Fleet.Validate()},
	}
	for _, s := range sections {
		if s.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, s.err))
		}
	}
	return errors.Join(errs...)
}
