// Package broadcast pushes route snapshots to connected observers.
package broadcast

import (
	"context"
	"sync"

	"github.com/kilianp07/fleetroute/core/logger"
	"github.com/kilianp07/fleetroute/core/model"
)

// Observer receives full route snapshots.
type Observer interface {
	ID() string
	Send(ctx context.Context, routes []model.RouteView) error
}

// Registry holds the connected observers. Its lock is private to the
// broadcast path.
type Registry struct {
	mu        sync.Mutex
	observers map[string]Observer
	order     []string
	log       logger.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{observers: map[string]Observer{}, log: logger.OrNop(log)}
}

// Add registers o, replacing any observer with the same ID.
func (r *Registry) Add(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.observers[o.ID()]; !ok {
		r.order = append(r.order, o.ID())
	}
	r.observers[o.ID()] = o
}

// Remove unregisters the observer and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) bool {
	if _, ok := r.observers[id]; !ok {
		return false
	}
	delete(r.observers, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of observers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observers)
}

// Broadcast sends routes to every observer in registration order. Sends
// happen outside the lock; an observer whose send fails is removed and the
// others still receive the snapshot. It returns the number of observers
// reached and the IDs removed.
func (r *Registry) Broadcast(ctx context.Context, routes []model.RouteView) (delivered int, dropped []string) {
	r.mu.Lock()
	targets := make([]Observer, 0, len(r.order))
	for _, id := range r.order {
		targets = append(targets, r.observers[id])
	}
	r.mu.Unlock()

	for _, o := range targets {
		if err := o.Send(ctx, routes); err != nil {
			r.log.Warnf("broadcast: dropping observer %s: %v", o.ID(), err)
			dropped = append(dropped, o.ID())
			continue
		}
		delivered++
	}
	if len(dropped) > 0 {
		r.mu.Lock()
		for _, id := range dropped {
			r.removeLocked(id)
		}
		r.mu.Unlock()
	}
	return delivered, dropped
}
