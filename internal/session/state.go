package session

import (
	"errors"

	"github.com/kalambet/wrench/internal/genservice"
	"github.com/kalambet/wrench/internal/history"
	"github.com/kalambet/wrench/internal/lookup"
	"github.com/kalambet/wrench/internal/vehicle"
)

// Phase is a step of the lookup lifecycle.
type Phase string

const (
	Idle        Phase = "idle"
	Building    Phase = "building"
	Querying    Phase = "querying"
	Normalizing Phase = "normalizing"
	Ready       Phase = "ready"
	Saving      Phase = "saving"
	Saved       Phase = "saved"
	Failed      Phase = "failed"

	// Superseded is only ever delivered on a Submit channel: a newer
	// submission or save replaced this one before it finished.
	Superseded Phase = "superseded"
)

// Error kinds reported by State.ErrKind.
const (
	KindValidation = "validation"
	KindService    = "service"
	KindSchema     = "schema"
	KindStore      = "store"
)

// State is a snapshot of a session. Snapshots share no mutable data with
// the session.
type State struct {
	Phase      Phase
	Generation uint64

	// Query is set once building succeeded.
	Query *vehicle.Spec
	// Result is set in Ready and Saved, and kept after a failed save.
	Result  *lookup.Result
	Omitted lookup.Report
	// Record is the entry written by the last successful save.
	Record *history.Record

	Err error
}

// InFlight reports whether an external call is outstanding.
func (s State) InFlight() bool {
	return s.Phase == Querying || s.Phase == Normalizing || s.Phase == Saving || s.Phase == Building
}

// CanSave reports whether Save would attempt a write.
func (s State) CanSave() bool {
	if s.Result == nil {
		return false
	}
	switch s.Phase {
	case Ready, Saved:
		return true
	case Failed:
		var se *history.StoreError
		return errors.As(s.Err, &se)
	}
	return false
}

// ErrKind classifies Err: validation, service, schema or store. It is ""
// when there is no error.
func (s State) ErrKind() string {
	return ErrKind(s.Err)
}

// ErrKind classifies err the way State.ErrKind does.
func ErrKind(err error) string {
	var (
		ve *vehicle.ValidationError
		ge *genservice.ServiceError
		le *lookup.SchemaError
		he *history.StoreError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &ge):
		return KindService
	case errors.As(err, &le):
		return KindSchema
	case errors.As(err, &he):
		return KindStore
	default:
		return KindService
	}
}

func (s State) clone() State {
	if s.Query != nil {
		q := *s.Query
		s.Query = &q
	}
	if s.Result != nil {
		r := s.Result.Clone()
		s.Result = &r
	}
	if s.Record != nil {
		r := s.Record.Clone()
		s.Record = &r
	}
	return s
}
