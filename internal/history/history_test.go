package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/wrench/internal/lookup"
	"github.com/kalambet/wrench/internal/storage"
	"github.com/kalambet/wrench/internal/vehicle"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedClock returns the same instant on every call.
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// tickingClock advances by step on every call.
func tickingClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(step)
		return t
	}
}

func camry(t *testing.T, service string) vehicle.Spec {
	t.Helper()
	s, err := vehicle.Build(map[string]string{
		"year": "2020", "make": "Toyota", "model": "Camry",
		"drivetrain": "fwd", "service_type": service,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func sampleResult() lookup.Result {
	return lookup.Result{
		Parts: []lookup.Part{{
			Name:        "Oil Filter",
			Description: "Toyota 04152-YZZA1",
			Retailers:   []lookup.Retailer{{Name: "RockAuto", URL: "https://www.rockauto.com/x"}},
		}},
		Specifications: map[string]any{
			"oil_capacity": "4.8 qt",
			"torque":       map[string]any{"drain_plug": "30 ft-lbs"},
		},
		Guides: []lookup.Guide{{Title: "Oil change", Type: lookup.GuideVideo, URL: "https://youtu.be/abc"}},
	}
}

// failingPersister fails every call with err.
type failingPersister struct{ err error }

func (f failingPersister) CreateLookup(context.Context, storage.LookupRow) error { return f.err }
func (f failingPersister) ListLookups(context.Context, int, int) ([]storage.LookupRow, error) {
	return nil, f.err
}
func (f failingPersister) GetLookup(context.Context, string) (storage.LookupRow, error) {
	return storage.LookupRow{}, f.err
}

// recordingPersister remembers the limit and offset it was asked for.
type recordingPersister struct {
	failingPersister
	limit, offset int
}

func (r *recordingPersister) ListLookups(_ context.Context, limit, offset int) ([]storage.LookupRow, error) {
	r.limit, r.offset = limit, offset
	return []storage.LookupRow{}, nil
}

func TestSave_RoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	h := New(openTestStore(t), WithClock(fixedClock(at)))
	ctx := context.Background()

	spec := camry(t, "Oil Change")
	rec, err := h.Save(ctx, spec, sampleResult())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.ID == "" {
		t.Error("record id is empty")
	}
	if !rec.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, at)
	}

	got, err := h.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("Get mismatch (-saved +got):\n%s", diff)
	}
	if got.Query.Drivetrain != vehicle.FWD {
		t.Errorf("drivetrain = %q", got.Query.Drivetrain)
	}
}

func TestSave_NormalizedResultSurvivesStorage(t *testing.T) {
	h := New(openTestStore(t))
	ctx := context.Background()

	raw := "{\"parts\":[{\"name\":\"Oil\xff Filter\"}]," +
		"\"specifications\":{\"part_no\":12345678901234567891,\"note\":\"0W\xfe20\"}}"
	res, err := lookup.Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	rec, err := h.Save(ctx, camry(t, "Oil Change"), res)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := h.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(res, got.Result); diff != "" {
		t.Errorf("stored result differs from the session's (-session +stored):\n%s", diff)
	}
}

func TestSave_SnapshotIsIndependent(t *testing.T) {
	h := New(openTestStore(t))
	ctx := context.Background()

	res := sampleResult()
	rec, err := h.Save(ctx, camry(t, "Oil Change"), res)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the caller's result after saving must not reach the record.
	res.Parts[0].Name = "mutated"
	res.Specifications["oil_capacity"] = "mutated"
	res.Parts[0].Retailers[0].URL = "mutated"

	if rec.Result.Parts[0].Name != "Oil Filter" {
		t.Error("returned record aliases caller's parts")
	}
	if rec.Result.Specifications["oil_capacity"] != "4.8 qt" {
		t.Error("returned record aliases caller's specifications")
	}

	stored, err := h.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Result.Parts[0].Retailers[0].URL != "https://www.rockauto.com/x" {
		t.Error("stored record changed after caller mutation")
	}
}

func TestSave_EmptyResult(t *testing.T) {
	h := New(openTestStore(t))
	ctx := context.Background()

	rec, err := h.Save(ctx, camry(t, "Cabin Air Filter"), lookup.Result{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := h.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Result.Parts == nil || got.Result.Guides == nil || got.Result.Specifications == nil {
		t.Errorf("loaded empty result has nil sections: %+v", got.Result)
	}
}

func TestSave_TwiceCreatesTwoRecords(t *testing.T) {
	h := New(openTestStore(t))
	ctx := context.Background()

	spec := camry(t, "Oil Change")
	a, err := h.Save(ctx, spec, sampleResult())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := h.Save(ctx, spec, sampleResult())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.ID == b.ID {
		t.Error("two saves share an id")
	}

	recs, err := h.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("List = %d records, want 2", len(recs))
	}
}

func TestList_NewestFirstWithTies(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	st := openTestStore(t)
	ctx := context.Background()

	older := New(st, WithClock(fixedClock(base)))
	newer := New(st, WithClock(fixedClock(base.Add(time.Hour))))

	a, _ := older.Save(ctx, camry(t, "A"), lookup.Result{})
	b, _ := newer.Save(ctx, camry(t, "B"), lookup.Result{})
	c, _ := older.Save(ctx, camry(t, "C"), lookup.Result{}) // same instant as A, inserted later

	recs, err := older.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []string
	for _, r := range recs {
		got = append(got, r.ID)
	}
	want := []string{b.ID, c.ID, a.ID}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestList_RespectsLimit(t *testing.T) {
	h := New(openTestStore(t), WithClock(tickingClock(time.Now(), time.Second)))
	ctx := context.Background()

	for i := range 7 {
		if _, err := h.Save(ctx, camry(t, fmt.Sprintf("svc-%d", i)), lookup.Result{}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	recs, err := h.List(ctx, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("List(3) = %d records", len(recs))
	}
	if recs[0].Query.ServiceType != "svc-6" {
		t.Errorf("newest = %q, want svc-6", recs[0].Query.ServiceType)
	}

	page, err := h.Page(ctx, 3, 3)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page) != 3 || page[0].Query.ServiceType != "svc-3" {
		t.Errorf("Page(3,3) starts at %q", page[0].Query.ServiceType)
	}
}

func TestList_EmptyHistory(t *testing.T) {
	recs, err := New(openTestStore(t)).List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("List on empty history = %v, want empty slice", recs)
	}
}

func TestList_LimitClamping(t *testing.T) {
	tests := []struct {
		opts   []Option
		limit  int
		offset int
		want   int
		wantOf int
	}{
		{nil, 0, 0, DefaultLimit, 0},
		{nil, -5, -1, DefaultLimit, 0},
		{nil, 10, 4, 10, 4},
		{nil, MaxLimit + 1, 0, MaxLimit, 0},
		{[]Option{WithDefaultLimit(20)}, 0, 0, 20, 0},
		{[]Option{WithDefaultLimit(10_000)}, 0, 0, MaxLimit, 0},
		{[]Option{WithDefaultLimit(0)}, 0, 0, DefaultLimit, 0},
	}
	for _, tt := range tests {
		p := &recordingPersister{}
		if _, err := New(p, tt.opts...).Page(context.Background(), tt.limit, tt.offset); err != nil {
			t.Fatalf("Page: %v", err)
		}
		if p.limit != tt.want || p.offset != tt.wantOf {
			t.Errorf("Page(%d,%d) asked persister for (%d,%d), want (%d,%d)",
				tt.limit, tt.offset, p.limit, p.offset, tt.want, tt.wantOf)
		}
	}
}

func TestStoreErrors(t *testing.T) {
	boom := errors.New("disk full")
	h := New(failingPersister{err: boom})
	ctx := context.Background()

	_, err := h.Save(ctx, camry(t, "Oil Change"), sampleResult())
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "save" {
		t.Fatalf("Save err = %v, want StoreError{Op: save}", err)
	}
	if !errors.Is(err, boom) {
		t.Error("StoreError does not unwrap to cause")
	}
	if se.Kind() != "store" {
		t.Errorf("Kind() = %q", se.Kind())
	}

	if _, err := h.List(ctx, 5); !errors.As(err, &se) || se.Op != "list" {
		t.Errorf("List err = %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	_, err := New(openTestStore(t)).Get(context.Background(), "nope")
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StoreError", err)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound = false")
	}
}

func TestExpansion_AtMostOne(t *testing.T) {
	var e Expansion

	if e.Expanded() != "" {
		t.Fatal("new Expansion has an expanded record")
	}
	if !e.Toggle("a") || e.Expanded() != "a" {
		t.Fatal("Toggle(a) did not expand a")
	}
	if !e.Toggle("b") || e.Expanded() != "b" {
		t.Fatal("Toggle(b) did not move expansion to b")
	}
	if e.IsExpanded("a") {
		t.Error("a still expanded after b")
	}
	if e.Toggle("b") || e.Expanded() != "" {
		t.Error("Toggle(b) twice did not collapse")
	}
}

func TestExpansion_Concurrent(t *testing.T) {
	var e Expansion
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Toggle(fmt.Sprintf("r-%d", i%3))
		}()
	}
	wg.Wait()
	switch e.Expanded() {
	case "", "r-0", "r-1", "r-2":
	default:
		t.Errorf("Expanded() = %q", e.Expanded())
	}
}
