package session

import (
	"errors"
	"testing"
)

func TestRegistry_CreateGet(t *testing.T) {
	r, err := NewRegistry(&staticInvoker{}, &fakeSaver{}, 4)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	s := r.Create()
	got, err := r.Get(s.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != s {
		t.Error("Get returned a different session")
	}
	if _, err := r.Get("missing"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Get(missing) = %v, want ErrUnknownSession", err)
	}
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	r, err := NewRegistry(&staticInvoker{}, &fakeSaver{}, 2)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	a := r.Create()
	b := r.Create()
	if _, err := r.Get(a.ID()); err != nil { // a is now most recent
		t.Fatalf("Get(a): %v", err)
	}
	r.Create()

	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
	if _, err := r.Get(b.ID()); !errors.Is(err, ErrUnknownSession) {
		t.Error("least recently used session was not evicted")
	}
	if _, err := r.Get(a.ID()); err != nil {
		t.Error("recently used session was evicted")
	}
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r, err := NewRegistry(&staticInvoker{}, &fakeSaver{}, 0)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	s := r.GetOrCreate("")
	if r.GetOrCreate(s.ID()) != s {
		t.Error("GetOrCreate(existing) created a new session")
	}
	if r.GetOrCreate("gone") == s {
		t.Error("GetOrCreate(unknown) returned an existing session")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}
