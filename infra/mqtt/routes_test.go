package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/core/model"
)

type fakePublisher struct {
	topic    string
	retained bool
	payload  []byte
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, topic, _ string, retained bool, payload []byte) error {
	f.topic, f.retained, f.payload = topic, retained, payload
	return f.err
}

func TestRoutePublisherSend(t *testing.T) {
	pub := &fakePublisher{}
	rp := NewRoutePublisher(pub, "")
	rp.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	assert.Equal(t, "mqtt:fleet/routes", rp.ID())

	views := []model.RouteView{{ID: 1, TruckID: 2, Stops: []model.StopView{{ID: 3, StopKind: model.StopRequest}}}}
	require.NoError(t, rp.Send(context.Background(), views))
	assert.Equal(t, DefaultRoutesTopic, pub.topic)
	assert.True(t, pub.retained)

	var msg RouteMessage
	require.NoError(t, json.Unmarshal(pub.payload, &msg))
	require.Len(t, msg.Routes, 1)
	assert.Equal(t, int64(2), msg.Routes[0].TruckID)
}

func TestRoutePublisherEmptySnapshot(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewRoutePublisher(pub, "x").Send(context.Background(), nil))
	assert.Contains(t, string(pub.payload), `"routes":[]`)
}

func TestRoutePublisherError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("down")}
	assert.Error(t, NewRoutePublisher(pub, "x").Send(context.Background(), nil))
}
