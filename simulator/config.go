package main

import (
	"errors"
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	// API is the base URL of the routing service.
	API string
	// Sink selects how pings are delivered: "http" or "mqtt".
	Sink          string
	Broker        string
	PositionTopic string
	// Interval is the pause between two pings and between two route polls.
	Interval time.Duration
	// Steps is the number of pings emitted per leg, the last one on the stop.
	Steps   int
	Once    bool
	Verbose bool
}

// Validate checks the simulator configuration.
func (c *Config) Validate() error {
	if c.API == "" {
		return errors.New("api url is required")
	}
	switch c.Sink {
	case "http":
	case "mqtt":
		if c.Broker == "" {
			return errors.New("mqtt sink requires a broker")
		}
	default:
		return fmt.Errorf("unknown sink %q", c.Sink)
	}
	if c.Interval < 0 {
		return errors.New("interval must not be negative")
	}
	if c.Steps <= 0 {
		c.Steps = 1
	}
	return nil
}
