package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kilianp07/fleetroute/core/model"
)

// Publisher is the publishing side of PahoClient.
type Publisher interface {
	Publish(ctx context.Context, topic, kind string, retained bool, payload []byte) error
}

// RouteMessage is the payload published on the routes topic.
type RouteMessage struct {
	Routes      []model.RouteView `json:"routes"`
	PublishedAt time.Time         `json:"published_at"`
}

// RoutePublisher pushes route snapshots to a retained MQTT topic so that
// in-cab terminals receive the current plan on connect.
type RoutePublisher struct {
	pub   Publisher
	topic string
	now   func() time.Time
}

// NewRoutePublisher returns an observer publishing on topic.
func NewRoutePublisher(pub Publisher, topic string) *RoutePublisher {
	if topic == "" {
		topic = DefaultRoutesTopic
	}
	return &RoutePublisher{pub: pub, topic: topic, now: time.Now}
}

// ID identifies the observer in the broadcast registry.
func (r *RoutePublisher) ID() string { return "mqtt:" + r.topic }

// Send publishes the snapshot.
func (r *RoutePublisher) Send(ctx context.Context, routes []model.RouteView) error {
	if routes == nil {
		routes = []model.RouteView{}
	}
	payload, err := json.Marshal(RouteMessage{Routes: routes, PublishedAt: r.now().UTC()})
	if err != nil {
		return err
	}
	return r.pub.Publish(ctx, r.topic, "routes", true, payload)
}
