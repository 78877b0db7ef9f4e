package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/fleetroute/core/planlog"
)

// PlanLogs handles GET /api/plans/logs. When token is set the request must
// carry "Authorization: Bearer <token>". Filters: start and end (RFC3339),
// truck_id and kind.
func (h *Handlers) PlanLogs(token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(h.log, w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		var q planlog.LogQuery
		params := r.URL.Query()
		for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
			s := params.Get(name)
			if s == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				writeError(h.log, w, r, http.StatusBadRequest, "invalid "+name)
				return
			}
			*dst = t
		}
		if s := params.Get("truck_id"); s != "" {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				writeError(h.log, w, r, http.StatusBadRequest, "invalid truck_id")
				return
			}
			q.TruckID = id
		}
		switch k := planlog.Kind(params.Get("kind")); k {
		case "", planlog.KindBatch, planlog.KindUrgent:
			q.Kind = k
		default:
			writeError(h.log, w, r, http.StatusBadRequest, "invalid kind")
			return
		}
		records, err := h.planner.QueryPlanLog(r.Context(), q)
		if err != nil {
			writeErr(h.log, w, r, err)
			return
		}
		if records == nil {
			records = []planlog.LogRecord{}
		}
		writeJSON(h.log, w, r, http.StatusOK, records)
	}
}
