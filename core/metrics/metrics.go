// Package metrics defines the sinks the planner reports to. Sinks are
// created from configuration through the module registry; optional
// recorder interfaces let a sink opt into more event types.
package metrics

import (
	"errors"
	"time"

	"github.com/kilianp07/fleetroute/core/factory"
)

// Config lists the configured sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

// PlanKind distinguishes batch runs from urgent insertions.
type PlanKind string

const (
	PlanBatch  PlanKind = "batch"
	PlanUrgent PlanKind = "urgent"
)

// PlanResult summarises one routing run.
type PlanResult struct {
	RunID      string
	Kind       PlanKind
	Trucks     int
	Requests   int
	Assigned   int
	Unassigned int
	Routes     int
	DistanceKm float64
	TimedOut   bool
	Duration   time.Duration
	Time       time.Time
}

// Sink records routing runs.
type Sink interface {
	RecordPlan(res PlanResult) error
}

// CompletionEvent is a stop completion.
type CompletionEvent struct {
	StopID  int64
	TruckID int64
	Already bool
	Time    time.Time
}

// CompletionRecorder records stop completions.
type CompletionRecorder interface {
	RecordCompletion(ev CompletionEvent) error
}

// FleetSizeRecorder records the number of trucks in the fleet.
type FleetSizeRecorder interface {
	RecordFleetSize(size int) error
}

// BroadcastRecorder records the outcome of one snapshot fan-out.
type BroadcastRecorder interface {
	RecordBroadcast(delivered, dropped int) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordPlan(PlanResult) error            { return nil }
func (NopSink) RecordCompletion(CompletionEvent) error { return nil }
func (NopSink) RecordFleetSize(int) error              { return nil }
func (NopSink) RecordBroadcast(int, int) error         { return nil }

// MultiSink fans records out to several sinks. Optional records only reach
// sinks implementing the matching recorder.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlan forwards to every sink and joins the errors.
func (m *MultiSink) RecordPlan(res PlanResult) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordPlan(res))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordCompletion(ev CompletionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(CompletionRecorder); ok {
			errs = append(errs, r.RecordCompletion(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordFleetSize(size int) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(FleetSizeRecorder); ok {
			errs = append(errs, r.RecordFleetSize(size))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordBroadcast(delivered, dropped int) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(BroadcastRecorder); ok {
			errs = append(errs, r.RecordBroadcast(delivered, dropped))
		}
	}
	return errors.Join(errs...)
}

var sinkRegistry = factory.NewRegistry[Sink]()

// RegisterSink adds a sink factory identified by name.
func RegisterSink(name string, f factory.Factory[Sink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkTypes lists the registered sink names.
func SinkTypes() []string { return sinkRegistry.Types() }

// NewSink creates the sink described by cfgs, a MultiSink when there is
// more than one and a NopSink when there is none.
func NewSink(cfgs []factory.ModuleConfig) (Sink, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return sinkRegistry.Create(cfgs[0])
	}
	sinks := make([]Sink, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		sinks[i] = s
	}
	return NewMultiSink(sinks...), nil
}
