package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kalambet/wrench/internal/history"
	"github.com/kalambet/wrench/internal/session"
)

const maxRequestBodySize = 64 << 10 // 64KB

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

// writeLookupError maps a session error to its HTTP status and error type.
func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoResult), errors.Is(err, session.ErrBusy):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
		return
	case history.IsNotFound(err):
		httpError(w, http.StatusNotFound, "not_found", "record not found")
		return
	}

	switch session.ErrKind(err) {
	case session.KindValidation:
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case session.KindStore:
		httpError(w, http.StatusInternalServerError, "store_error", "%v", err)
	default:
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
