// Package planner serialises routing operations for the fleet and fans
// their results out to the store, the plan log, the event bus and the
// connected observers.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetroute/core/broadcast"
	"github.com/kilianp07/fleetroute/core/events"
	"github.com/kilianp07/fleetroute/core/geo"
	"github.com/kilianp07/fleetroute/core/logger"
	"github.com/kilianp07/fleetroute/core/metrics"
	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/monitoring"
	"github.com/kilianp07/fleetroute/core/planlog"
	"github.com/kilianp07/fleetroute/core/routing"
	"github.com/kilianp07/fleetroute/core/store"
	"github.com/kilianp07/fleetroute/internal/eventbus"
)

// Options wires a Manager. Only Store is required.
type Options struct {
	Store     store.Store
	Provider  geo.Provider
	Solver    *routing.Solver
	Observers *broadcast.Registry
	Bus       *eventbus.Bus[events.Event]
	Metrics   metrics.Sink
	PlanLog   planlog.Store
	Logger    logger.Logger
	Clock     func() time.Time
}

// Manager owns the fleet routing lock. Batch planning, urgent insertion,
// completion and route deletion run under it; reads and position updates
// do not.
type Manager struct {
	store     store.Store
	provider  geo.Provider
	solver    *routing.Solver
	observers *broadcast.Registry
	bus       *eventbus.Bus[events.Event]
	sink      metrics.Sink
	planLog   planlog.Store
	log       logger.Logger
	now       func() time.Time

	routingMu sync.Mutex
	// broadcastMu orders snapshot fan-outs so the last snapshot an observer
	// receives is never older than the last commit.
	broadcastMu sync.Mutex
}

// NewManager validates opts and fills defaults.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("planner: store is required")
	}
	m := &Manager{
		store:     opts.Store,
		provider:  opts.Provider,
		solver:    opts.Solver,
		observers: opts.Observers,
		bus:       opts.Bus,
		sink:      opts.Metrics,
		planLog:   opts.PlanLog,
		log:       logger.OrNop(opts.Logger),
		now:       opts.Clock,
	}
	if m.provider.Speed() == 0 {
		m.provider = geo.NewProvider(geo.DefaultSpeedKmh)
	}
	if m.solver == nil {
		m.solver = routing.NewSolver(routing.Options{LocalSearch: true, Logger: m.log})
	}
	if m.observers == nil {
		m.observers = broadcast.NewRegistry(m.log)
	}
	if m.sink == nil {
		m.sink = metrics.NopSink{}
	}
	if m.planLog == nil {
		m.planLog = planlog.NopStore{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Observers returns the registry snapshots are pushed to.
func (m *Manager) Observers() *broadcast.Registry { return m.observers }

func (m *Manager) lock(op string) func() {
	start := time.Now()
	m.routingMu.Lock()
	lockWait.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return m.routingMu.Unlock
}

// fleet loads the depot and trucks, mapping an empty fleet to a
// configuration error.
func (m *Manager) fleet(ctx context.Context) (*model.Depot, []model.Truck, error) {
	depot, err := m.store.Depot(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, &routing.ConfigurationError{Reason: "no depot registered"}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load depot: %w", err)
	}
	trucks, err := m.store.Trucks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load trucks: %w", err)
	}
	if len(trucks) == 0 {
		return nil, nil, &routing.ConfigurationError{Reason: "no trucks registered"}
	}
	return &depot, trucks, nil
}

func (m *Manager) persistFailed(op string, err error) error {
	persistenceFailures.WithLabelValues(op).Inc()
	monitoring.CaptureException(err, map[string]string{"component": "planner", "operation": op})
	m.log.Errorf("%s: %v", op, err)
	return fmt.Errorf("%s: %w", op, err)
}

func (m *Manager) publish(ev events.Event) {
	if m.bus == nil {
		return
	}
	if dropped := m.bus.Publish(ev); dropped > 0 {
		m.log.Debugf("event %s missed by %d subscriber(s)", ev.Kind(), dropped)
	}
}

// broadcast pushes the committed route set to every observer. The read and
// the sends happen under broadcastMu, never under the routing lock.
func (m *Manager) broadcast(ctx context.Context) {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()
	views, err := m.Snapshot(ctx)
	if err != nil {
		m.log.Errorf("broadcast: load routes: %v", err)
		return
	}
	delivered, dropped := m.observers.Broadcast(ctx, views)
	if r, ok := m.sink.(metrics.BroadcastRecorder); ok {
		_ = r.RecordBroadcast(delivered, len(dropped))
	}
}

// Attach sends the current snapshot to o and then registers it. No commit
// can be broadcast between the two steps.
func (m *Manager) Attach(ctx context.Context, o broadcast.Observer) error {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()
	views, err := m.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load routes: %w", err)
	}
	if err := o.Send(ctx, views); err != nil {
		return err
	}
	m.observers.Add(o)
	return nil
}

func (m *Manager) appendLog(ctx context.Context, rec planlog.LogRecord) {
	if err := m.planLog.Append(ctx, rec); err != nil {
		m.log.Warnf("plan log append: %v", err)
	}
}

func (m *Manager) recordPlan(res metrics.PlanResult) {
	if err := m.sink.RecordPlan(res); err != nil {
		m.log.Warnf("metrics: record plan: %v", err)
	}
}

// SetDepot registers or moves the depot.
func (m *Manager) SetDepot(ctx context.Context, d model.Depot) (model.Depot, error) {
	defer m.lock("set_depot")()
	return m.store.SaveDepot(ctx, d)
}

// RegisterTruck adds a truck, or replaces it when its ID is known. A zero
// available capacity on a new truck means fully available. A known truck
// keeps the load its open routes hold: its available capacity becomes the
// new capacity minus that load, and a capacity below the load is a
// conflict.
func (m *Manager) RegisterTruck(ctx context.Context, t model.Truck) (model.Truck, error) {
	unlock := m.lock("register_truck")
	saved, err := m.saveTruck(ctx, t)
	var size int
	if err == nil {
		trucks, lerr := m.store.Trucks(ctx)
		if lerr == nil {
			size = len(trucks)
		}
	}
	unlock()
	if err != nil {
		return model.Truck{}, err
	}
	if r, ok := m.sink.(metrics.FleetSizeRecorder); ok && size > 0 {
		_ = r.RecordFleetSize(size)
	}
	return saved, nil
}

func (m *Manager) saveTruck(ctx context.Context, t model.Truck) (model.Truck, error) {
	if t.ID != 0 {
		prev, err := m.store.Truck(ctx, t.ID)
		switch {
		case err == nil:
			held := prev.Capacity - prev.AvailableCapacity
			if t.Capacity < held {
				return model.Truck{}, fmt.Errorf("%w: truck %d holds %d on open routes, capacity %d is too small",
					store.ErrConflict, t.ID, held, t.Capacity)
			}
			t.AvailableCapacity = t.Capacity - held
			return m.store.SaveTruck(ctx, t)
		case !errors.Is(err, store.ErrNotFound):
			return model.Truck{}, err
		}
	}
	if t.AvailableCapacity == 0 {
		t.AvailableCapacity = t.Capacity
	}
	return m.store.SaveTruck(ctx, t)
}

// UpdatePosition moves one truck with last-writer-wins semantics. It does
// not take the routing lock.
func (m *Manager) UpdatePosition(ctx context.Context, truckID int64, pos model.Coordinates) error {
	if err := m.store.UpdateTruckPosition(ctx, truckID, pos); err != nil {
		return err
	}
	m.publish(events.PositionEvent{TruckID: truckID, Position: pos})
	return nil
}

// Depot returns the registered depot.
func (m *Manager) Depot(ctx context.Context) (model.Depot, error) { return m.store.Depot(ctx) }

// Trucks lists the fleet.
func (m *Manager) Trucks(ctx context.Context) ([]model.Truck, error) { return m.store.Trucks(ctx) }

// Routes returns every committed route.
func (m *Manager) Routes(ctx context.Context) ([]model.Route, error) { return m.store.Routes(ctx) }

// LatestRoute returns the most recent route of a truck.
func (m *Manager) LatestRoute(ctx context.Context, truckID int64) (model.Route, error) {
	return m.store.LatestRoute(ctx, truckID)
}

// Pending lists the requests no route has accepted yet.
func (m *Manager) Pending(ctx context.Context) ([]model.DeliveryRequest, error) {
	return m.store.PendingRequests(ctx)
}

// Snapshot returns the committed routes in their wire shape.
func (m *Manager) Snapshot(ctx context.Context) ([]model.RouteView, error) {
	routes, err := m.store.Routes(ctx)
	if err != nil {
		return nil, err
	}
	return model.NewRouteViews(routes), nil
}

// QueryPlanLog reads the plan audit trail.
func (m *Manager) QueryPlanLog(ctx context.Context, q planlog.LogQuery) ([]planlog.LogRecord, error) {
	return m.planLog.Query(ctx, q)
}

// Close releases the plan log and the bus. The store is owned by the caller.
func (m *Manager) Close() error {
	if m.bus != nil {
		m.bus.Close()
	}
	return m.planLog.Close()
}

func newRunID() string { return uuid.NewString() }
