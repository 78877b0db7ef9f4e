package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures the router.
type Options struct {
	// LogToken protects the plan log endpoint when set.
	LogToken string
	// Timeout bounds plain API requests. The websocket route is exempt.
	Timeout time.Duration
}

// NewRouter constructs the chi-based http.Handler serving the API.
func NewRouter(h *Handlers, opts Options) http.Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/ws/routes", h.RouteUpdates)

	r.Route("/api", func(r chi.Router) {
		r.Use(Observability(h.log))
		r.Use(middleware.Timeout(opts.Timeout))

		r.Post("/plans", h.PlanBatch)
		r.Get("/plans/logs", h.PlanLogs(opts.LogToken))
		r.Post("/pickups", h.RequestPickup)
		r.Get("/routes", h.Routes)
		r.Get("/routes/{truckID}/latest", h.LatestRoute)
		r.Delete("/routes/{routeID}", h.DeleteRoute)
		r.Post("/stops/{stopID}/complete", h.CompleteStop)
		r.Get("/trucks", h.Trucks)
		r.Post("/trucks/position", h.UpdatePosition)
	})
	r.NotFound(h.NotFound)
	return r
}
