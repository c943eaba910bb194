package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/wrench/internal/session"
)

func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := deps.Sessions.Create()
		writeJSON(w, http.StatusCreated, map[string]string{"id": s.ID()})
	}
}

// sessionParam resolves the {id} route parameter, writing a 404 when the
// session is unknown or was evicted.
func sessionParam(w http.ResponseWriter, r *http.Request, deps Deps) (*session.Session, bool) {
	s, err := deps.Sessions.Get(chi.URLParam(r, "id"))
	if errors.Is(err, session.ErrUnknownSession) {
		httpError(w, http.StatusNotFound, "not_found", "session not found")
		return nil, false
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
		return nil, false
	}
	return s, true
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionParam(w, r, deps)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, newStateView(s, s.State()))
	}
}

// handleLookup submits the raw vehicle fields in the body. By default it
// waits for the terminal state; with ?wait=false it answers 202 with the
// in-flight snapshot unless the submission already finished.
func handleLookup(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionParam(w, r, deps)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var fields map[string]string
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		done := s.Submit(r.Context(), fields)

		var st session.State
		if r.URL.Query().Get("wait") == "false" {
			select {
			case st = <-done:
			default:
				writeJSON(w, http.StatusAccepted, newStateView(s, s.State()))
				return
			}
		} else {
			select {
			case st = <-done:
			case <-r.Context().Done():
				// The lookup keeps running; its result lands in the session.
				return
			}
		}

		switch st.Phase {
		case session.Failed:
			writeLookupError(w, st.Err)
		case session.Superseded:
			httpError(w, http.StatusConflict, "conflict_error", "lookup superseded by a newer submission")
		default:
			writeJSON(w, http.StatusOK, newStateView(s, st))
		}
	}
}

func handleSave(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionParam(w, r, deps)
		if !ok {
			return
		}
		rec, err := s.Save(r.Context())
		if err != nil {
			writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newRecordView(rec))
	}
}

type expandRequest struct {
	RecordID string `json:"record_id"`
}

// handleExpand toggles which history record the session shows expanded.
func handleExpand(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionParam(w, r, deps)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req expandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.RecordID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "record_id is required")
			return
		}

		expanded := s.Expansion.Toggle(req.RecordID)
		writeJSON(w, http.StatusOK, map[string]any{
			"record_id":       req.RecordID,
			"expanded":        expanded,
			"expanded_record": s.Expansion.Expanded(),
		})
	}
}
