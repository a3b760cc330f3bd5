package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/middleware/trace"
)

// ownerHeader carries the authenticated user id, set by the auth layer in
// front of this service.
const ownerHeader = "X-Owner-ID"

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the engine's three failure kinds onto HTTP statuses.
// Anything else is a server fault and gets logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, core.ErrPreconditionFailed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrInvalidInput):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err,
			applog.FieldRequestID, trace.GetRequestID(r.Context()),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// ownerFromRequest extracts the authenticated owner id. Requests without
// one never reach the engine.
func ownerFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := r.Header.Get(ownerHeader)
	if owner == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing owner identity"})
		return "", false
	}
	return owner, true
}

func monthFromPath(w http.ResponseWriter, r *http.Request) (core.MonthKey, bool) {
	month, err := core.ParseMonthKey(r.PathValue("month"))
	if err != nil {
		writeError(w, r, err)
		return core.MonthKey{}, false
	}
	return month, true
}

func idFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return false
	}
	return true
}

func scopeFromRequest(w http.ResponseWriter, r *http.Request) (core.Scope, bool) {
	scope, err := core.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, r, err)
		return "", false
	}
	return scope, true
}
