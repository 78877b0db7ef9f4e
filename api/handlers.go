package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kilianp07/fleetroute/core/broadcast"
	"github.com/kilianp07/fleetroute/core/logger"
	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/planlog"
	"github.com/kilianp07/fleetroute/core/planner"
)

// Planner is the routing service behind the HTTP API.
type Planner interface {
	PlanBatch(ctx context.Context, reqs []model.DeliveryRequest) (*planner.PlanOutcome, error)
	InsertUrgent(ctx context.Context, req model.DeliveryRequest) (model.Route, error)
	CompleteStop(ctx context.Context, stopID int64) (model.Stop, bool, error)
	DeleteRoute(ctx context.Context, routeID int64) error
	UpdatePosition(ctx context.Context, truckID int64, pos model.Coordinates) error
	Trucks(ctx context.Context) ([]model.Truck, error)
	Routes(ctx context.Context) ([]model.Route, error)
	LatestRoute(ctx context.Context, truckID int64) (model.Route, error)
	Snapshot(ctx context.Context) ([]model.RouteView, error)
	QueryPlanLog(ctx context.Context, q planlog.LogQuery) ([]planlog.LogRecord, error)
	Attach(ctx context.Context, o broadcast.Observer) error
	Observers() *broadcast.Registry
}

// RequestIn is the wire shape of a delivery or pickup request.
type RequestIn struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Demand    int       `json:"demand"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Request converts the wire shape to a pending request.
func (in RequestIn) Request() model.DeliveryRequest {
	return model.DeliveryRequest{
		Location: model.Coordinates{Lat: in.Lat, Lon: in.Lon},
		Demand:   in.Demand,
		Window:   model.TimeWindow{Start: in.StartTime, End: in.EndTime},
	}
}

// PositionIn is a GPS ping.
type PositionIn struct {
	TruckID int64   `json:"truck_id"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// PlanOut is the answer to a batch plan.
type PlanOut struct {
	RunID      string            `json:"run_id"`
	Routes     []model.RouteView `json:"routes"`
	Unchanged  []int64           `json:"unchanged_trucks"`
	Unassigned []int64           `json:"unassigned"`
	TimedOut   bool              `json:"timed_out"`
}

type statusOut struct {
	Status string `json:"status"`
}

// Handlers serves the fleet routing API.
type Handlers struct {
	planner Planner
	log     logger.Logger
}

// NewHandlers returns the handlers for p.
func NewHandlers(p Planner, log logger.Logger) *Handlers {
	return &Handlers{planner: p, log: logger.OrNop(log)}
}

// PlanBatch handles POST /api/plans.
func (h *Handlers) PlanBatch(w http.ResponseWriter, r *http.Request) {
	var in []RequestIn
	if !decodeJSON(h.log, w, r, &in) {
		return
	}
	reqs := make([]model.DeliveryRequest, len(in))
	for i, ri := range in {
		reqs[i] = ri.Request()
	}
	out, err := h.planner.PlanBatch(r.Context(), reqs)
	if err != nil {
		writeErr(h.log, w, r, err)
		return
	}
	writeJSON(h.log, w, r, http.StatusOK, PlanOut{
		RunID:      out.RunID,
		Routes:     model.NewRouteViews(out.Routes),
		Unchanged:  nonNil(out.Unchanged),
		Unassigned: nonNil(out.Unassigned),
		TimedOut:   out.TimedOut,
	})
}

// RequestPickup handles POST /api/pickups.
func (h *Handlers) RequestPickup(w http.ResponseWriter, r *http.Request) {
	var in RequestIn
	if !decodeJSON(h.log, w, r, &in) {
		return
	}
	route, err := h.planner.InsertUrgent(r.Context(), in.Request())
	if err != nil {
		writeErr(h.log, w, r, err)
		return
	}
	writeJSON(h.log, w, r, http.StatusCreated, model.NewRouteView(route))
}

// Routes handles GET /api/routes.
func (h *Handlers) Routes(w http.ResponseWriter, r *http.Request) {
	views, err := h.planner.Snapshot(r.Context())
	if err != nil {
		writeErr(h.log, w, r, err)
		return
	}
	writeJSON(h.log, w, r, http.StatusOK, views)
}

// LatestRoute handles GET /api/routes/{truckID}/latest.
func (h *Handlers) LatestRoute(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "truckID")
	if err != nil {
		writeError(h.log, w, r, http.StatusBadRequest, err.Error())
		return
	}
	route, err := h.planner.LatestRoute(r.Context(), id)
	if err != nil {
		writeErr(h.log, w, r, err)
		return
	}
	writeJSON(h.log, w, r, http.StatusOK, model.NewRouteView(route))
}

// DeleteRoute handles DELETE /api/routes/{routeID}.
func (h *Handlers) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "routeID")
	if err != nil {
		writeError(h.log, w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.planner.DeleteRoute(r.Context(), id); err != nil {
		writeErr(h.log, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteStop handles POST /api/stops/{stopID}/complete.
func (h *Handlers) CompleteStop(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "stopID")
	if err != nil {
		writeError(h.log, w, r, http.StatusBadRequest, err.Error())
		return
	}
	_, already, err := h.planner.CompleteStop(r.Context(), id)
	if err != nil {
		writeErr(h.log, w, r, err)
		return
	}
	status := "completed"
	if already {
		status = "already completed"
	}
	writeJSON(h.log, w, r, http.StatusOK, statusOut{Status: status})
}

// UpdatePosition handles POST /api/trucks/position.
func (h *Handlers) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	var in PositionIn
	if !decodeJSON(h.log, w, r, &in) {
		return
	}
	pos := model.Coordinates{Lat: in.Lat, Lon: in.Lon}
	if err := pos.Validate(); err != nil {
		writeErr(h.log, w, r, err)
		return
	}
	if err := h.planner.UpdatePosition(r.Context(), in.TruckID, pos); err != nil {
		writeErr(h.log, w, r, err)
		return
	}
	writeJSON(h.log, w, r, http.StatusOK, statusOut{Status: "updated"})
}

// Trucks handles GET /api/trucks.
func (h *Handlers) Trucks(w http.ResponseWriter, r *http.Request) {
	trucks, err := h.planner.Trucks(r.Context())
	if err != nil {
		writeErr(h.log, w, r, err)
		return
	}
	if trucks == nil {
		trucks = []model.Truck{}
	}
	writeJSON(h.log, w, r, http.StatusOK, trucks)
}

// Healthz handles GET /healthz.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.log, w, r, http.StatusOK, statusOut{Status: "ok"})
}

// NotFound answers unknown paths in JSON.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(h.log, w, r, http.StatusNotFound, "not found")
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
