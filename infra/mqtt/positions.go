package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/infra/logger"
)

// Subscriber is the subscribing side of PahoClient.
type Subscriber interface {
	Subscribe(topic, kind string, handler paho.MessageHandler) error
}

// PositionUpdater applies a truck position report.
type PositionUpdater interface {
	UpdatePosition(ctx context.Context, truckID int64, pos model.Coordinates) error
}

// PositionMessage is the telemetry payload sent by a truck.
type PositionMessage struct {
	TruckID int64   `json:"truck_id,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// SubscribePositions feeds position reports from topic into u. The topic
// may carry a single-level wildcard naming the truck ID; otherwise the ID
// is read from the payload.
func SubscribePositions(ctx context.Context, sub Subscriber, topic string, u PositionUpdater) error {
	if topic == "" {
		topic = DefaultPositionTopic
	}
	log := logger.New("mqtt_positions")
	slot := wildcardSlot(topic)
	return sub.Subscribe(topic, "position", func(_ paho.Client, msg paho.Message) {
		id, pos, err := decodePosition(msg.Topic(), slot, msg.Payload())
		if err != nil {
			log.Warnf("drop position on %s: %v", msg.Topic(), err)
			return
		}
		if err := u.UpdatePosition(ctx, id, pos); err != nil {
			log.Warnf("position of truck %d: %v", id, err)
		}
	})
}

func wildcardSlot(topic string) int {
	for i, part := range strings.Split(topic, "/") {
		if part == "+" {
			return i
		}
	}
	return -1
}

func decodePosition(topic string, slot int, payload []byte) (int64, model.Coordinates, error) {
	var m PositionMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return 0, model.Coordinates{}, fmt.Errorf("decode: %w", err)
	}
	id := m.TruckID
	if slot >= 0 {
		parts := strings.Split(topic, "/")
		if slot >= len(parts) {
			return 0, model.Coordinates{}, fmt.Errorf("topic has no truck segment")
		}
		parsed, err := strconv.ParseInt(parts[slot], 10, 64)
		if err != nil {
			return 0, model.Coordinates{}, fmt.Errorf("truck id %q: %w", parts[slot], err)
		}
		id = parsed
	}
	if id <= 0 {
		return 0, model.Coordinates{}, fmt.Errorf("missing truck id")
	}
	pos := model.Coordinates{Lat: m.Lat, Lon: m.Lon}
	if err := pos.Validate(); err != nil {
		return 0, model.Coordinates{}, err
	}
	return id, pos, nil
}
