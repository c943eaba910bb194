package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kalambet/wrench/internal/genservice"
)

// DefaultMaxSessions bounds a Registry created with a non-positive size.
const DefaultMaxSessions = 256

// ErrUnknownSession is returned for ids the registry does not hold, either
// because they never existed or because they were evicted.
var ErrUnknownSession = errors.New("unknown session")

// Registry holds the live sessions of a daemon. The least recently used
// session is dropped when the registry is full.
type Registry struct {
	invoker genservice.Invoker
	saver   Saver
	cache   *lru.Cache[string, *Session]
}

// NewRegistry creates a registry whose sessions use inv and saver.
func NewRegistry(inv genservice.Invoker, saver Saver, maxSessions int) (*Registry, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	cache, err := lru.New[string, *Session](maxSessions)
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	return &Registry{invoker: inv, saver: saver, cache: cache}, nil
}

// Create starts a new idle session.
func (r *Registry) Create() *Session {
	s := New(uuid.NewString(), r.invoker, r.saver)
	r.cache.Add(s.ID(), s)
	return s
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, error) {
	s, ok := r.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrUnknownSession)
	}
	return s, nil
}

// GetOrCreate returns the session with id, or a new session when id is
// empty or unknown.
func (r *Registry) GetOrCreate(id string) *Session {
	if id != "" {
		if s, ok := r.cache.Get(id); ok {
			return s
		}
	}
	return r.Create()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int { return r.cache.Len() }
