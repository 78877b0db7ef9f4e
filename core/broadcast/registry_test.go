package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/core/model"
)

type recorder struct {
	id   string
	fail bool
	mu   sync.Mutex
	got  [][]model.RouteView
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(_ context.Context, routes []model.RouteView) error {
	if r.fail {
		return errors.New("broken pipe")
	}
	r.mu.Lock()
	r.got = append(r.got, routes)
	r.mu.Unlock()
	return nil
}

func TestBroadcastDropsOnlyFailingObserver(t *testing.T) {
	reg := NewRegistry(nil)
	a, bad, c := &recorder{id: "a"}, &recorder{id: "bad", fail: true}, &recorder{id: "c"}
	reg.Add(a)
	reg.Add(bad)
	reg.Add(c)

	snapshot := []model.RouteView{{TruckID: 1}}
	delivered, dropped := reg.Broadcast(context.Background(), snapshot)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"bad"}, dropped)
	assert.Equal(t, 2, reg.Len())
	require.Len(t, a.got, 1)
	require.Len(t, c.got, 1)
	assert.Equal(t, snapshot, c.got[0])

	delivered, dropped = reg.Broadcast(context.Background(), snapshot)
	assert.Equal(t, 2, delivered)
	assert.Empty(t, dropped)
}

func TestRegistryAddRemove(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Add(&recorder{id: "x"})
	reg.Add(&recorder{id: "x"})
	assert.Equal(t, 1, reg.Len())
	assert.True(t, reg.Remove("x"))
	assert.False(t, reg.Remove("x"))
	delivered, dropped := reg.Broadcast(context.Background(), nil)
	assert.Zero(t, delivered)
	assert.Empty(t, dropped)
}

func TestBroadcastConcurrentWithMembershipChanges(t *testing.T) {
	reg := NewRegistry(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		id := string(rune('a' + i))
		go func() {
			defer wg.Done()
			reg.Add(&recorder{id: id})
		}()
		go func() {
			defer wg.Done()
			reg.Broadcast(context.Background(), nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, reg.Len())
}
