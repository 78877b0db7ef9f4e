package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "config.yaml", `log_level: debug
routing:
  average_speed_kmh: 40
  search_budget_ms: 250
  local_search: false
store:
  backend: sqlite
  path: /tmp/routes.db
http:
  addr: ":9000"
  log_token: secret
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
metrics:
  prometheus_addr: ":2112"
  sinks:
    - type: "nop"
plan_log:
  backend: jsonl
  path: plans.jsonl
replan:
  interval_seconds: 60
fleet:
  depot:
    location: {lat: 48.85, lon: 2.35}
  trucks:
    - capacity: 10
      position: {lat: 48.86, lon: 2.34}
    - capacity: 12
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 40.0, cfg.Routing.AverageSpeedKmh)
	assert.Equal(t, 250*time.Millisecond, cfg.Routing.SearchBudget())
	assert.False(t, cfg.Routing.LocalSearchEnabled())
	assert.Equal(t, "/tmp/routes.db", cfg.Store.Path)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, "secret", cfg.HTTP.LogToken)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "fleet/routes", cfg.MQTT.RoutesTopic)
	require.Len(t, cfg.Metrics.Sinks, 1)
	assert.Equal(t, "nop", cfg.Metrics.Sinks[0].Type)
	assert.Equal(t, ":2112", cfg.Metrics.PrometheusAddr)
	assert.Equal(t, "jsonl", cfg.PlanLog.Backend)
	assert.Equal(t, 10, cfg.PlanLog.MaxSizeMB)
	assert.Equal(t, time.Minute, cfg.Replan.Interval())
	require.NotNil(t, cfg.Fleet.Depot)
	assert.Equal(t, 48.85, cfg.Fleet.Depot.Location.Lat)
	require.Len(t, cfg.Fleet.Trucks, 2)
	assert.Equal(t, 12, cfg.Fleet.Trucks[1].Capacity)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.json", `{}`))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 50.0, cfg.Routing.AverageSpeedKmh)
	assert.Equal(t, 5*time.Second, cfg.Routing.SearchBudget())
	assert.True(t, cfg.Routing.LocalSearchEnabled())
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "none", cfg.PlanLog.Backend)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("K_ROUTING__SEARCH_BUDGET_MS", "100")
	t.Setenv("K_HTTP__ADDR", ":7070")
	cfg, err := Load(writeFile(t, "config.yaml", "routing:\n  search_budget_ms: 900\n"))
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.Routing.SearchBudget())
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"speed":   "routing:\n  average_speed_kmh: -5\n",
		"store":   "store:\n  backend: postgres\n",
		"level":   "log_level: loud\n",
		"mqtt":    "mqtt:\n  enabled: true\n",
		"planlog": "plan_log:\n  backend: sqlite\n",
		"truck":   "fleet:\n  trucks:\n    - capacity: 0\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", data))
			assert.Error(t, err)
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load(writeFile(t, "config.toml", ""))
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "fleetroute.db", cfg.Store.Path)
}
