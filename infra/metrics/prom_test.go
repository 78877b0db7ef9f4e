package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/fleetroute/core/metrics"
)

func TestPromSinkRecordPlan(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordPlan(coremetrics.PlanResult{Kind: coremetrics.PlanBatch, Unassigned: 2, DistanceKm: 12.5, Duration: 30 * time.Millisecond}))
	require.NoError(t, sink.RecordPlan(coremetrics.PlanResult{Kind: coremetrics.PlanUrgent}))

	expected := `
# HELP fleetroute_plan_runs_total Routing runs by kind and timeout outcome
# TYPE fleetroute_plan_runs_total counter
fleetroute_plan_runs_total{kind="batch",timed_out="false"} 1
fleetroute_plan_runs_total{kind="urgent",timed_out="false"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(sink.runs, strings.NewReader(expected)))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.unassigned.WithLabelValues("batch")))
	assert.Equal(t, 12.5, testutil.ToFloat64(sink.distance.WithLabelValues("batch")))
	assert.Equal(t, 2, testutil.CollectAndCount(sink.duration))
}

func TestPromSinkOptionalRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordFleetSize(4))
	require.NoError(t, sink.RecordCompletion(coremetrics.CompletionEvent{Already: true}))
	require.NoError(t, sink.RecordBroadcast(3, 1))

	assert.Equal(t, 4.0, testutil.ToFloat64(sink.fleet))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.completions.WithLabelValues("true")))
	assert.Equal(t, 3.0, testutil.ToFloat64(sink.broadcasts.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.broadcasts.WithLabelValues("dropped")))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, second.RecordFleetSize(9))
	assert.Equal(t, 9.0, testutil.ToFloat64(first.fleet))
}
