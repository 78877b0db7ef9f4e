package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := NewZerologLogger("test")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := newZerolog(&buf, "planner")
	l.Infof("solved %d routes", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "planner", line["component"])
	assert.Equal(t, "solved 2 routes", line["message"])
}

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")
	assert.False(t, SetLevel("loud"))
	assert.True(t, SetLevel("error"))

	var buf bytes.Buffer
	l := newZerolog(&buf, "quiet")
	l.Infof("dropped")
	assert.Zero(t, buf.Len())
	l.Errorf("kept")
	assert.Contains(t, buf.String(), "kept")
}
