package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/wrench/internal/history"
	"github.com/kalambet/wrench/internal/session"
)

// handleListHistory returns saved records newest first. When ?session=
// names a live session, its expanded record is flagged.
func handleListHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 0, history.MaxLimit)
		offset := parseIntParam(r, "offset", 0, 0)

		records, err := deps.History.Page(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "store_error", "failed to list history: %v", err)
			return
		}

		var s *session.Session
		if id := r.URL.Query().Get("session"); id != "" {
			s, _ = deps.Sessions.Get(id)
		}

		views := make([]RecordView, len(records))
		for i, rec := range records {
			views[i] = newRecordView(rec)
			if s != nil {
				views[i].Expanded = s.Expansion.IsExpanded(rec.ID)
			}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.History.Get(r.Context(), chi.URLParam(r, "id"))
		if history.IsNotFound(err) {
			httpError(w, http.StatusNotFound, "not_found", "record not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "store_error", "failed to get record: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, newRecordView(rec))
	}
}
