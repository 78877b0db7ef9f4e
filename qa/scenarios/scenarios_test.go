package scenarios

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/routing"
)

func TestScenario(t *testing.T) {
	files, err := filepath.Glob("*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		sc, err := Load(f)
		require.NoError(t, err, f)
		t.Run(sc.Name, func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestRequestDefDefaultsToDayWindow(t *testing.T) {
	r := RequestDef{Lat: 1, Lon: 2, Demand: 3, StartMinutes: 30}.ToModel()
	assert.Equal(t, Epoch.Add(30*time.Minute), r.Window.Start)
	assert.Equal(t, Epoch.Add(24*time.Hour), r.Window.End)
	assert.Equal(t, model.Coordinates{Lat: 1, Lon: 2}, r.Location)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", errorKind(nil))
	assert.Equal(t, "configuration", errorKind(&routing.ConfigurationError{Reason: "no trucks"}))
	assert.Equal(t, "infeasible", errorKind(&routing.InfeasibleRequestError{Demand: 6, MaxFree: 5}))
	assert.Equal(t, "validation", errorKind(&model.ValidationError{Field: "demand", Reason: "must be positive"}))
	assert.Equal(t, "boom", errorKind(errors.New("boom")))
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load("no-file.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}
