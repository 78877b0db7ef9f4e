package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/fleetroute/api"
	"github.com/kilianp07/fleetroute/config"
	"github.com/kilianp07/fleetroute/core/broadcast"
	"github.com/kilianp07/fleetroute/core/events"
	"github.com/kilianp07/fleetroute/core/geo"
	coremetrics "github.com/kilianp07/fleetroute/core/metrics"
	"github.com/kilianp07/fleetroute/core/monitoring"
	"github.com/kilianp07/fleetroute/core/planlog"
	"github.com/kilianp07/fleetroute/core/planner"
	"github.com/kilianp07/fleetroute/core/routing"
	"github.com/kilianp07/fleetroute/core/scheduler"
	"github.com/kilianp07/fleetroute/core/store"
	"github.com/kilianp07/fleetroute/infra/logger"
	"github.com/kilianp07/fleetroute/infra/metrics"
	inframon "github.com/kilianp07/fleetroute/infra/monitoring"
	"github.com/kilianp07/fleetroute/infra/mqtt"
	"github.com/kilianp07/fleetroute/infra/sqlite"
	"github.com/kilianp07/fleetroute/internal/eventbus"
)

// Service wires the planner to its store, sinks, transports and observers.
type Service struct {
	Manager *planner.Manager

	cfg   *config.Config
	store store.Store
	sink  coremetrics.Sink
	bus   *eventbus.Bus[events.Event]
	mqtt  *mqtt.PahoClient
	log   logger.Logger
}

// OpenStore opens the configured route store.
func OpenStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// NewSolver builds the solver and travel model from the routing section.
func NewSolver(cfg config.RoutingConfig, log logger.Logger) (geo.Provider, *routing.Solver) {
	return geo.NewProvider(cfg.AverageSpeedKmh), routing.NewSolver(routing.Options{
		Budget:      cfg.SearchBudget(),
		LocalSearch: cfg.LocalSearchEnabled(),
		Logger:      log,
	})
}

// New creates a Service from the configuration. It owns every resource it
// opens; Close releases them.
func New(cfg *config.Config) (svc *Service, err error) {
	logger.SetLevel(cfg.LogLevel)
	log := logger.New("service")

	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	monitoring.Init(mon)

	st, err := OpenStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	svc = &Service{cfg: cfg, store: st, log: log}
	defer func() {
		if err != nil {
			_ = svc.Close()
		}
	}()

	svc.sink, err = coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	pl, err := planlog.Open(cfg.PlanLog)
	if err != nil {
		return nil, fmt.Errorf("plan log: %w", err)
	}
	svc.bus = eventbus.New[events.Event](eventbus.DefaultBuffer)
	provider, solver := NewSolver(cfg.Routing, logger.New("solver"))
	svc.Manager, err = planner.NewManager(planner.Options{
		Store:     st,
		Provider:  provider,
		Solver:    solver,
		Observers: broadcast.NewRegistry(logger.New("broadcast")),
		Bus:       svc.bus,
		Metrics:   svc.sink,
		PlanLog:   pl,
		Logger:    logger.New("planner"),
	})
	if err != nil {
		_ = pl.Close()
		return nil, err
	}

	if cfg.MQTT.Enabled {
		svc.mqtt, err = mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		svc.Manager.Observers().Add(mqtt.NewRoutePublisher(svc.mqtt, cfg.MQTT.RoutesTopic))
	}
	return svc, nil
}

// Run seeds an empty fleet from the config, starts the transports and
// blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := SeedIfEmpty(ctx, s.Manager, s.cfg.Fleet); err != nil {
		return fmt.Errorf("seed fleet: %w", err)
	}
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.mqtt != nil {
		if err := mqtt.SubscribePositions(ctx, s.mqtt, s.cfg.MQTT.PositionTopic, s.Manager); err != nil {
			return err
		}
	}
	if iv := s.cfg.Replan.Interval(); iv > 0 {
		sch, err := scheduler.New(s.Manager, iv, logger.New("scheduler"))
		if err != nil {
			return err
		}
		monitoring.Go(func() { sch.Run(ctx) })
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		monitoring.Go(func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		})
	}

	handlers := api.NewHandlers(s.Manager, logger.New("http"))
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           api.NewRouter(handlers, api.Options{LogToken: s.cfg.HTTP.LogToken}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	monitoring.Go(func() {
		s.log.Infof("http listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.HTTP.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	var errs []error
	if s.Manager != nil {
		errs = append(errs, s.Manager.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	monitoring.Flush(2 * time.Second)
	return errors.Join(errs...)
}
