package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/fleetroute/core/logger"
	"github.com/kilianp07/fleetroute/core/model"
	"github.com/kilianp07/fleetroute/core/routing"
	"github.com/kilianp07/fleetroute/core/store"
)

const bodyLimit = 1 << 20

type errResponse struct {
	Error string `json:"error"`
}

func writeJSON(log logger.Logger, w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Errorf("req_id=%s json encode: %v", middleware.GetReqID(r.Context()), err)
	}
}

func writeError(log logger.Logger, w http.ResponseWriter, r *http.Request, status int, msg string) {
	if status >= http.StatusInternalServerError {
		log.Errorf("req_id=%s status=%d %s", middleware.GetReqID(r.Context()), status, msg)
	} else {
		log.Debugf("req_id=%s status=%d %s", middleware.GetReqID(r.Context()), status, msg)
	}
	writeJSON(log, w, r, status, errResponse{Error: msg})
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, routing.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, routing.ErrInfeasibleRequest), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(log logger.Logger, w http.ResponseWriter, r *http.Request, err error) {
	writeError(log, w, r, statusOf(err), err.Error())
}

func decodeJSON[T any](log logger.Logger, w http.ResponseWriter, r *http.Request, dst *T) bool {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(log, w, r, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		writeError(log, w, r, http.StatusBadRequest, "invalid json: trailing data")
		return false
	}
	return true
}

func idFromURL(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}
