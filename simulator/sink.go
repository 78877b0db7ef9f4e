package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/infra/mqtt"
)

// PingSink delivers one GPS position of a truck.
type PingSink interface {
	Ping(ctx context.Context, truckID int64, pos model.Coordinates) error
}

// HTTPSink posts pings to the position endpoint of the API.
type HTTPSink struct {
	Client *http.Client
	API    string
}

func (s *HTTPSink) Ping(ctx context.Context, truckID int64, pos model.Coordinates) error {
	body, err := json.Marshal(mqtt.PositionMessage{TruckID: truckID, Lat: pos.Lat, Lon: pos.Lon})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.API, "/")+"/api/trucks/position", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("position update for truck %d: %s", truckID, resp.Status)
	}
	return nil
}

// MQTTSink publishes pings on the per-truck position topic. The "+" of the
// topic pattern is replaced by the truck ID.
type MQTTSink struct {
	Pub   mqtt.Publisher
	Topic string
}

func (s *MQTTSink) Ping(ctx context.Context, truckID int64, pos model.Coordinates) error {
	payload, err := json.Marshal(mqtt.PositionMessage{Lat: pos.Lat, Lon: pos.Lon})
	if err != nil {
		return err
	}
	topic := strings.Replace(s.Topic, "+", strconv.FormatInt(truckID, 10), 1)
	return s.Pub.Publish(ctx, topic, "position", false, payload)
}
