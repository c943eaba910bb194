// Package session orchestrates one user's lookups: build the query, call
// the generative service, normalize the answer and optionally save it.
//
// A session holds at most one outstanding submission. A newer submission
// supersedes the older one; the older call is not cancelled but its answer
// is discarded when it arrives. No lock is held while the service or the
// history store is working.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kalambet/wrench/internal/composer"
	"github.com/kalambet/wrench/internal/genservice"
	"github.com/kalambet/wrench/internal/history"
	"github.com/kalambet/wrench/internal/lookup"
	"github.com/kalambet/wrench/internal/vehicle"
)

var (
	// ErrNoResult is returned by Save when there is nothing to save.
	ErrNoResult = errors.New("no lookup result to save")
	// ErrBusy is returned by Save while a lookup or save is in flight.
	ErrBusy = errors.New("a lookup or save is in progress")
)

// Saver persists a finished lookup. *history.Store implements it.
type Saver interface {
	Save(ctx context.Context, spec vehicle.Spec, result lookup.Result) (history.Record, error)
}

// Session is one user's lookup workflow.
type Session struct {
	id      string
	invoker genservice.Invoker
	saver   Saver
	tracer  trace.Tracer

	mu    sync.Mutex
	gen   uint64
	state State

	// Expansion is the history view's expand/collapse state for this user.
	Expansion history.Expansion
}

// New creates an idle session.
func New(id string, inv genservice.Invoker, saver Saver) *Session {
	return &Session{
		id:      id,
		invoker: inv,
		saver:   saver,
		tracer:  otel.Tracer("wrench/session"),
		state:   State{Phase: Idle},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Submit starts a lookup for raw form fields and returns a channel that
// receives the submission's terminal state and is then closed. Validation
// happens before Submit returns; the service call runs in the background
// and is bounded by the invoker's own timeout, not by ctx cancellation.
//
// Invalid fields are reported on the channel only. The session keeps its
// current state, so a held result stays saveable and an outstanding lookup
// is not superseded.
func (s *Session) Submit(ctx context.Context, raw map[string]string) <-chan State {
	out := make(chan State, 1)

	spec, err := vehicle.Build(raw)
	if err != nil {
		out <- s.rejected(err)
		close(out)
		return out
	}

	gen := s.begin(State{Phase: Building})
	payload := composer.Compose(spec)
	if !s.advance(gen, State{Phase: Querying, Query: &spec}) {
		out <- superseded(gen, &spec)
		close(out)
		return out
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(out)
		out <- s.run(ctx, gen, spec, payload)
	}()
	return out
}

// Run is Submit followed by waiting for the terminal state.
func (s *Session) Run(ctx context.Context, raw map[string]string) State {
	return <-s.Submit(ctx, raw)
}

func (s *Session) run(ctx context.Context, gen uint64, spec vehicle.Spec, payload composer.Payload) State {
	raw, err := s.invoke(ctx, payload)
	if err != nil {
		slog.Warn("lookup failed", "session", s.id, "vehicle", spec.Vehicle(), "error", err)
		return s.finish(gen, State{Phase: Failed, Query: &spec, Err: err})
	}

	if !s.advance(gen, State{Phase: Normalizing, Query: &spec}) {
		slog.Debug("discarding superseded response", "session", s.id, "generation", gen)
		return superseded(gen, &spec)
	}

	res, rep, err := lookup.NormalizeReport(raw)
	if err != nil {
		return s.finish(gen, State{Phase: Failed, Query: &spec, Err: err})
	}
	if rep.Total() > 0 {
		slog.Debug("dropped incomplete items",
			"session", s.id,
			"parts", rep.DroppedParts,
			"retailers", rep.DroppedRetailers,
			"guides", rep.DroppedGuides,
		)
	}
	return s.finish(gen, State{Phase: Ready, Query: &spec, Result: &res, Omitted: rep})
}

func (s *Session) invoke(ctx context.Context, payload composer.Payload) (genservice.RawResponse, error) {
	ctx, span := s.tracer.Start(ctx, "genservice.Invoke",
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.String("payload.key", payload.Key()),
			attribute.Bool("payload.internet", payload.AddContextFromInternet),
		),
	)
	defer span.End()

	raw, err := s.invoker.Invoke(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("response.bytes", len(raw)))
	return raw, nil
}

// Save writes the held result to history. It is allowed in Ready, Saved,
// and after a failed save; every call writes a new record. A store failure
// keeps the query and result so the save can be retried.
func (s *Session) Save(ctx context.Context) (history.Record, error) {
	s.mu.Lock()
	cur := s.state
	if !cur.CanSave() {
		s.mu.Unlock()
		if cur.InFlight() {
			return history.Record{}, ErrBusy
		}
		return history.Record{}, ErrNoResult
	}
	s.gen++
	gen := s.gen
	query, result := *cur.Query, cur.Result.Clone()
	s.state = State{Phase: Saving, Generation: gen, Query: &query, Result: &result, Omitted: cur.Omitted}
	s.mu.Unlock()

	rec, err := s.saver.Save(ctx, query, result)
	if err != nil {
		slog.Warn("saving lookup failed", "session", s.id, "error", err)
		s.finish(gen, State{Phase: Failed, Query: &query, Result: &result, Omitted: cur.Omitted, Err: err})
		return history.Record{}, err
	}
	s.finish(gen, State{Phase: Saved, Query: &query, Result: &result, Omitted: cur.Omitted, Record: &rec})
	return rec.Clone(), nil
}

// begin starts a new generation, superseding anything in flight.
func (s *Session) begin(st State) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	st.Generation = s.gen
	s.state = st
	return s.gen
}

// advance moves generation gen to st. It reports false when gen has been
// superseded, leaving the state untouched.
func (s *Session) advance(gen uint64, st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	st.Generation = gen
	s.state = st
	return true
}

// finish is advance for a terminal state. It returns the snapshot to
// deliver to the submitter.
func (s *Session) finish(gen uint64, st State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return superseded(gen, st.Query)
	}
	st.Generation = gen
	s.state = st
	return st.clone()
}

// rejected reports a submission that never started. It leaves the session
// untouched.
func (s *Session) rejected(err error) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Phase: Failed, Generation: s.gen, Err: err}
}

func superseded(gen uint64, q *vehicle.Spec) State {
	st := State{Phase: Superseded, Generation: gen}
	if q != nil {
		c := *q
		st.Query = &c
	}
	return st
}
