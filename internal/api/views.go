package api

import (
	"time"

	"github.com/kalambet/wrench/internal/history"
	"github.com/kalambet/wrench/internal/lookup"
	"github.com/kalambet/wrench/internal/session"
	"github.com/kalambet/wrench/internal/vehicle"
)

type errorView struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// OmittedView counts the items a lookup dropped for missing a name or link.
type OmittedView struct {
	Parts     int `json:"parts"`
	Retailers int `json:"retailers"`
	Guides    int `json:"guides"`
}

// newOmittedView returns nil when nothing was dropped.
func newOmittedView(rep lookup.Report) *OmittedView {
	if rep.Total() == 0 {
		return nil
	}
	return &OmittedView{
		Parts:     rep.DroppedParts,
		Retailers: rep.DroppedRetailers,
		Guides:    rep.DroppedGuides,
	}
}

// StateView is the wire form of a session snapshot.
type StateView struct {
	SessionID      string         `json:"session_id"`
	Phase          session.Phase  `json:"phase"`
	Generation     uint64         `json:"generation"`
	InFlight       bool           `json:"in_flight"`
	CanSave        bool           `json:"can_save"`
	Query          *vehicle.Spec  `json:"query,omitempty"`
	Result         *lookup.Result `json:"result,omitempty"`
	Omitted        *OmittedView   `json:"omitted,omitempty"`
	RecordID       string         `json:"record_id,omitempty"`
	ExpandedRecord string         `json:"expanded_record,omitempty"`
	Error          *errorView     `json:"error,omitempty"`
}

func newStateView(s *session.Session, st session.State) StateView {
	v := StateView{
		SessionID:      s.ID(),
		Phase:          st.Phase,
		Generation:     st.Generation,
		InFlight:       st.InFlight(),
		CanSave:        st.CanSave(),
		Query:          st.Query,
		Result:         st.Result,
		ExpandedRecord: s.Expansion.Expanded(),
	}
	v.Omitted = newOmittedView(st.Omitted)
	if st.Record != nil {
		v.RecordID = st.Record.ID
	}
	if st.Err != nil {
		v.Error = &errorView{Message: st.Err.Error(), Kind: st.ErrKind()}
	}
	return v
}

// RecordView is the wire form of a history record.
type RecordView struct {
	ID        string        `json:"id"`
	Vehicle   string        `json:"vehicle"`
	Query     vehicle.Spec  `json:"query"`
	Result    lookup.Result `json:"result"`
	CreatedAt time.Time     `json:"created_at"`
	Expanded  bool          `json:"expanded,omitempty"`
}

func newRecordView(rec history.Record) RecordView {
	return RecordView{
		ID:        rec.ID,
		Vehicle:   rec.Query.Vehicle(),
		Query:     rec.Query,
		Result:    rec.Result,
		CreatedAt: rec.CreatedAt,
	}
}
