package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/graph"
	"github.com/joshharrison/critpath/internal/store"
)

type errorResponse struct {
	Error string   `json:"error"`
	Cycle []string `json:"cycle,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps graph, analysis and backend errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		dup      *graph.DuplicateIDError
		unknown  *graph.UnknownTaskError
		cyc      *graph.CycleError
		dangling *graph.DanglingReferenceError
	)
	switch {
	case errors.As(err, &dup):
		return http.StatusConflict
	case errors.As(err, &unknown), errors.Is(err, graph.ErrInvalidTask):
		return http.StatusBadRequest
	case errors.As(err, &cyc), errors.As(err, &dangling), errors.Is(err, cpm.ErrEnumerationLimit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, graph.ErrEmptyGraph), errors.Is(err, store.ErrProjectNotFound):
		return http.StatusNotFound
	case store.IsTransport(err):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeErr writes err with the status statusFor picks. Cycles carry the
// offending ids.
func writeErr(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	var cyc *graph.CycleError
	if errors.As(err, &cyc) {
		resp.Cycle = cyc.Cycle
	}
	if errors.Is(err, graph.ErrEmptyGraph) {
		resp.Error = "no critical path: " + err.Error()
	}
	writeJSON(w, statusFor(err), resp)
}
