package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/fleetroute/core/events"
	coremetrics "github.com/kilianp07/fleetroute/core/metrics"
	"github.com/kilianp07/fleetroute/internal/eventbus"
)

// StartEventCollector records bus events on sinks that opt into them. It
// stops when ctx is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.Sink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.CompletionRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.CompletionEvent); ok {
					_ = rec.RecordCompletion(coremetrics.CompletionEvent{
						StopID:  e.StopID,
						Already: e.Already,
						Time:    time.Now(),
					})
				}
			}
		}
	}()
}
