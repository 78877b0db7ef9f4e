// Package monitoring forwards errors and panics to the installed error
// reporter. Until Init is called every call is a no-op.
package monitoring

import (
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CapturePanic(v any)
	Flush(timeout time.Duration) bool
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any)                          {}
func (NopMonitor) Flush(time.Duration) bool                  { return true }

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor implementation. A nil monitor restores the
// no-op one.
func Init(m Monitor) {
	mu.Lock()
	defer mu.Unlock()
	if m == nil {
		m = NopMonitor{}
	}
	current = m
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// Go runs fn in a goroutine, reporting and re-raising any panic.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				get().CapturePanic(r)
				get().Flush(2 * time.Second)
				panic(r)
			}
		}()
		fn()
	}()
}

// Flush flushes buffered events.
func Flush(d time.Duration) bool {
	return get().Flush(d)
}
