// Package planlog keeps an audit trail of routing runs.
package planlog

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Kind tells which engine produced a record.
type Kind string

const (
	KindBatch  Kind = "batch"
	KindUrgent Kind = "urgent"
)

// LogRecord captures one routing run and its outcome.
type LogRecord struct {
	Timestamp  time.Time         `json:"timestamp"`
	RunID      string            `json:"run_id"`
	Kind       Kind              `json:"kind"`
	Requests   []int64           `json:"requests"`
	Assigned   map[int64][]int64 `json:"assigned"`
	Unassigned []int64           `json:"unassigned,omitempty"`
	Unchanged  []int64           `json:"unchanged_trucks,omitempty"`
	TimedOut   bool              `json:"timed_out"`
	DistanceKm float64           `json:"distance_km"`
	DurationMs float64           `json:"duration_ms"`
	Error      string            `json:"error,omitempty"`
}

// LogQuery filters records. Zero fields match everything.
type LogQuery struct {
	Start   time.Time
	End     time.Time
	TruckID int64
	Kind    Kind
}

// Match reports whether r satisfies q.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.TruckID != 0 {
		if _, ok := r.Assigned[q.TruckID]; !ok && !slices.Contains(r.Unchanged, q.TruckID) {
			return false
		}
	}
	return true
}

// Store persists records and supports querying.
type Store interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// Config selects and tunes the backend.
type Config struct {
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills unset rotation options.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "none"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 7
	}
}

// Validate checks the backend and its path.
func (c Config) Validate() error {
	switch c.Backend {
	case "none":
		return nil
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("plan_log.path required for backend %s", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("plan_log.backend %q unknown", c.Backend)
	}
}

// Open builds the configured store.
func Open(c Config) (Store, error) {
	switch c.Backend {
	case "jsonl":
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(c.Path)
	case "", "none":
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown plan log backend %q", c.Backend)
	}
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, LogRecord) error             { return nil }
func (NopStore) Query(context.Context, LogQuery) ([]LogRecord, error) { return nil, nil }
func (NopStore) Close() error                                         { return nil }
