// Package metrics holds the Prometheus and InfluxDB sinks and registers
// them with the sink registry.
package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fleetroute/core/metrics"
)

// PromSink exports routing runs as Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	unassigned  *prometheus.GaugeVec
	distance    *prometheus.GaugeVec
	duration    *prometheus.HistogramVec
	completions *prometheus.CounterVec
	fleet       prometheus.Gauge
	broadcasts  *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers the metrics on reg. A nil registerer
// defaults to the global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetroute_plan_runs_total",
			Help: "Routing runs by kind and timeout outcome",
		}, []string{"kind", "timed_out"}),
		unassigned: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetroute_plan_unassigned_requests",
			Help: "Requests left unassigned by the last run",
		}, []string{"kind"}),
		distance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetroute_plan_distance_km",
			Help: "Total planned distance of the last run",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleetroute_plan_duration_seconds",
			Help:    "Wall-clock time of a routing run",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetroute_stop_completions_total",
			Help: "Stop completion requests by outcome",
		}, []string{"already"}),
		fleet: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetroute_fleet_trucks",
			Help: "Number of registered trucks",
		}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetroute_broadcast_sends_total",
			Help: "Route snapshot sends by outcome",
		}, []string{"outcome"}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.unassigned, err = register(reg, s.unassigned); err != nil {
		return nil, err
	}
	if s.distance, err = register(reg, s.distance); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.completions, err = register(reg, s.completions); err != nil {
		return nil, err
	}
	if s.fleet, err = register(reg, s.fleet); err != nil {
		return nil, err
	}
	if s.broadcasts, err = register(reg, s.broadcasts); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PromSink) RecordPlan(res coremetrics.PlanResult) error {
	kind := string(res.Kind)
	s.runs.WithLabelValues(kind, strconv.FormatBool(res.TimedOut)).Inc()
	s.unassigned.WithLabelValues(kind).Set(float64(res.Unassigned))
	s.distance.WithLabelValues(kind).Set(res.DistanceKm)
	s.duration.WithLabelValues(kind).Observe(res.Duration.Seconds())
	return nil
}

func (s *PromSink) RecordCompletion(ev coremetrics.CompletionEvent) error {
	s.completions.WithLabelValues(strconv.FormatBool(ev.Already)).Inc()
	return nil
}

func (s *PromSink) RecordFleetSize(size int) error {
	s.fleet.Set(float64(size))
	return nil
}

func (s *PromSink) RecordBroadcast(delivered, dropped int) error {
	s.broadcasts.WithLabelValues("delivered").Add(float64(delivered))
	s.broadcasts.WithLabelValues("dropped").Add(float64(dropped))
	return nil
}
