// Command simulator replays committed routes as GPS pings, either over the
// HTTP API or over MQTT.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kilianp07/fleetroute/core/logger"
	infralogger "github.com/kilianp07/fleetroute/infra/logger"
	"github.com/kilianp07/fleetroute/infra/mqtt"
)

func main() {
	cfg := parseFlags()
	log := infralogger.New("simulator")
	if err := (&cfg).Validate(); err != nil {
		log.Errorf("invalid config: %v", err)
		os.Exit(2)
	}
	if cfg.Verbose {
		infralogger.SetLevel("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpCli := &http.Client{Timeout: 10 * time.Second}
	var sink PingSink = &HTTPSink{Client: httpCli, API: cfg.API}
	if cfg.Sink == "mqtt" {
		mcfg := mqtt.Config{Enabled: true, Broker: cfg.Broker, ClientID: "fleetroute-simulator", PositionTopic: cfg.PositionTopic}
		mcfg.SetDefaults()
		cli, err := mqtt.NewPahoClient(mcfg)
		if err != nil {
			log.Errorf("mqtt: %v", err)
			os.Exit(1)
		}
		defer cli.Disconnect()
		sink = &MQTTSink{Pub: cli, Topic: mcfg.PositionTopic}
	}

	for {
		if err := runCycle(ctx, httpCli, sink, cfg, log); err != nil {
			log.Warnf("cycle: %v", err)
		}
		if cfg.Once {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.Interval):
		}
	}
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.API, "api", "http://localhost:8080", "routing service base URL")
	flag.StringVar(&cfg.Sink, "sink", "http", "ping delivery: http or mqtt")
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.PositionTopic, "position-topic", mqtt.DefaultPositionTopic, "MQTT position topic pattern")
	flag.DurationVar(&cfg.Interval, "interval", 30*time.Second, "pause between pings")
	flag.IntVar(&cfg.Steps, "steps", 1, "pings per leg")
	flag.BoolVar(&cfg.Once, "once", false, "drive the current routes once and exit")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.Parse()
	return cfg
}

// runCycle fetches the routes and drives every truck with open stops
// concurrently until all paths are done.
func runCycle(ctx context.Context, cli *http.Client, sink PingSink, cfg Config, log logger.Logger) error {
	routes, err := FetchRoutes(ctx, cli, cfg.API)
	if err != nil {
		return err
	}
	trucks := PlanTrucks(routes)
	log.Infof("driving %d truck(s)", len(trucks))
	var wg sync.WaitGroup
	for _, t := range trucks {
		t.Steps = cfg.Steps
		t.Interval = cfg.Interval
		t.Sink = sink
		t.Log = log
		wg.Add(1)
		go func(t *SimulatedTruck) {
			defer wg.Done()
			if err := t.Run(ctx); err != nil {
				log.Debugf("truck %d: %v", t.ID, err)
			}
		}(t)
	}
	wg.Wait()
	return nil
}
