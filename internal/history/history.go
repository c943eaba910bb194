// Package history keeps the append-only log of explicitly saved lookups.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/wrench/internal/lookup"
	"github.com/kalambet/wrench/internal/storage"
	"github.com/kalambet/wrench/internal/vehicle"
)

// Listing limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ErrNotFound is wrapped by StoreError when a record does not exist.
var ErrNotFound = storage.ErrNotFound

// Record is one saved lookup. Records are created once and never change.
type Record struct {
	ID        string        `json:"id"`
	Query     vehicle.Spec  `json:"query"`
	Result    lookup.Result `json:"result"`
	CreatedAt time.Time     `json:"created_at"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Result = r.Result.Clone()
	return r
}

// StoreError reports a failed persistence operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Kind tags the error for callers that report failures by category.
func (e *StoreError) Kind() string { return "store" }

// Persister is the persistence contract the history needs. storage.Store
// implements it.
type Persister interface {
	CreateLookup(ctx context.Context, row storage.LookupRow) error
	ListLookups(ctx context.Context, limit, offset int) ([]storage.LookupRow, error)
	GetLookup(ctx context.Context, id string) (storage.LookupRow, error)
}

// Store saves and lists lookup records.
type Store struct {
	p            Persister
	now          func() time.Time
	newID        func() string
	defaultLimit int
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now as the source of CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs replaces the UUID generator.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// WithDefaultLimit sets the page size used when a caller passes limit <= 0.
func WithDefaultLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.defaultLimit = min(n, MaxLimit)
		}
	}
}

// New creates a Store persisting through p.
func New(p Persister, opts ...Option) *Store {
	s := &Store{
		p:            p,
		now:          time.Now,
		newID:        uuid.NewString,
		defaultLimit: DefaultLimit,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Save records spec and result as a new history entry. The stored snapshot
// shares nothing with the arguments or the returned Record.
func (s *Store) Save(ctx context.Context, spec vehicle.Spec, result lookup.Result) (Record, error) {
	rec := Record{
		ID:        s.newID(),
		Query:     spec,
		Result:    result.Clone(),
		CreatedAt: s.now().UTC(),
	}

	results, err := json.Marshal(rec.Result)
	if err != nil {
		return Record{}, &StoreError{Op: "save", Err: fmt.Errorf("encoding result: %w", err)}
	}

	row := storage.LookupRow{
		ID:          rec.ID,
		Year:        spec.Year,
		Make:        spec.Make,
		Model:       spec.Model,
		Engine:      spec.Engine,
		Drivetrain:  string(spec.Drivetrain),
		ServiceType: spec.ServiceType,
		Results:     string(results),
		CreatedAt:   rec.CreatedAt,
	}
	if err := s.p.CreateLookup(ctx, row); err != nil {
		return Record{}, &StoreError{Op: "save", Err: err}
	}
	return rec, nil
}

// List returns at most limit records, newest first. limit <= 0 selects the
// default page size; larger values are capped at MaxLimit.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	return s.Page(ctx, limit, 0)
}

// Page is List starting offset records from the newest.
func (s *Store) Page(ctx context.Context, limit, offset int) ([]Record, error) {
	limit = s.clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.p.ListLookups(ctx, limit, offset)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, &StoreError{Op: "list", Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Get returns one record. A missing id yields a StoreError wrapping
// ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row, err := s.p.GetLookup(ctx, id)
	if err != nil {
		return Record{}, &StoreError{Op: "get", Err: err}
	}
	rec, err := fromRow(row)
	if err != nil {
		return Record{}, &StoreError{Op: "get", Err: err}
	}
	return rec, nil
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (s *Store) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.defaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// fromRow rebuilds a Record. Stored results pass through the normalizer so
// rows written by older versions still satisfy Result's invariants.
func fromRow(row storage.LookupRow) (Record, error) {
	result, err := lookup.Normalize([]byte(row.Results))
	if err != nil {
		return Record{}, fmt.Errorf("decoding record %s: %w", row.ID, err)
	}
	return Record{
		ID: row.ID,
		Query: vehicle.Spec{
			Year:        row.Year,
			Make:        row.Make,
			Model:       row.Model,
			Engine:      row.Engine,
			Drivetrain:  vehicle.Drivetrain(row.Drivetrain),
			ServiceType: row.ServiceType,
		},
		Result:    result,
		CreatedAt: row.CreatedAt,
	}, nil
}
