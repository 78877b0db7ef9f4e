package mqtt

import (
	"context"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetroute/core/model"
)

type fakeSubscriber struct {
	topic   string
	handler paho.MessageHandler
}

func (f *fakeSubscriber) Subscribe(topic, _ string, h paho.MessageHandler) error {
	f.topic, f.handler = topic, h
	return nil
}

type positionCall struct {
	id  int64
	pos model.Coordinates
}

type fakeUpdater struct{ calls []positionCall }

func (f *fakeUpdater) UpdatePosition(_ context.Context, id int64, pos model.Coordinates) error {
	f.calls = append(f.calls, positionCall{id, pos})
	return nil
}

func TestSubscribePositionsFromTopic(t *testing.T) {
	sub := &fakeSubscriber{}
	up := &fakeUpdater{}
	require.NoError(t, SubscribePositions(context.Background(), sub, "", up))
	assert.Equal(t, DefaultPositionTopic, sub.topic)

	sub.handler(nil, mockMessage{topic: "fleet/trucks/7/position", p: []byte(`{"lat":48.85,"lon":2.35}`)})
	require.Len(t, up.calls, 1)
	assert.Equal(t, int64(7), up.calls[0].id)
	assert.Equal(t, model.Coordinates{Lat: 48.85, Lon: 2.35}, up.calls[0].pos)
}

func TestSubscribePositionsFromPayload(t *testing.T) {
	sub := &fakeSubscriber{}
	up := &fakeUpdater{}
	require.NoError(t, SubscribePositions(context.Background(), sub, "fleet/positions", up))

	sub.handler(nil, mockMessage{topic: "fleet/positions", p: []byte(`{"truck_id":3,"lat":1,"lon":2}`)})
	require.Len(t, up.calls, 1)
	assert.Equal(t, int64(3), up.calls[0].id)
}

func TestSubscribePositionsDropsInvalid(t *testing.T) {
	sub := &fakeSubscriber{}
	up := &fakeUpdater{}
	require.NoError(t, SubscribePositions(context.Background(), sub, "", up))

	for _, m := range []mockMessage{
		{topic: "fleet/trucks/abc/position", p: []byte(`{"lat":1,"lon":2}`)},
		{topic: "fleet/trucks/1/position", p: []byte(`not json`)},
		{topic: "fleet/trucks/1/position", p: []byte(`{"lat":91,"lon":2}`)},
	} {
		sub.handler(nil, m)
	}
	assert.Empty(t, up.calls)
}
