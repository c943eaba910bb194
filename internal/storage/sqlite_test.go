package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRow(id string, at time.Time) LookupRow {
	return LookupRow{
		ID:          id,
		Year:        "2020",
		Make:        "Toyota",
		Model:       "Camry",
		ServiceType: "Oil Change",
		Results:     `{"parts":[],"specifications":{},"guides":[]}`,
		CreatedAt:   at,
	}
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the migration is not re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if err := s1.CreateLookup(context.Background(), testRow("a", time.Now())); err != nil {
		t.Fatalf("CreateLookup: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}

	n, err := s2.CountLookups(context.Background())
	if err != nil {
		t.Fatalf("CountLookups: %v", err)
	}
	if n != 1 {
		t.Errorf("count after reopen = %d, want 1", n)
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", "idx_lookups_created").Scan(&count)
	if err != nil {
		t.Fatalf("querying index: %v", err)
	}
	if count != 1 {
		t.Error("index idx_lookups_created not found")
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("001_init.sql")
	if err != nil || v != 1 {
		t.Errorf("parseMigrationVersion = %d, %v", v, err)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Error("expected error for unnumbered migration")
	}
}

func TestCreateAndGetLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	row := testRow("rec-1", at)
	row.Engine = "2.5L I4"
	row.Drivetrain = "FWD"
	if err := s.CreateLookup(ctx, row); err != nil {
		t.Fatalf("CreateLookup: %v", err)
	}

	got, err := s.GetLookup(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetLookup: %v", err)
	}
	if got.Seq == 0 {
		t.Error("seq not assigned")
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("created_at = %v, want %v (nanoseconds must survive)", got.CreatedAt, at)
	}
	if got.Engine != "2.5L I4" || got.Drivetrain != "FWD" {
		t.Errorf("engine/drivetrain = %q/%q", got.Engine, got.Drivetrain)
	}
	if got.Results != row.Results {
		t.Errorf("results = %s", got.Results)
	}
}

func TestOptionalColumnsStoredAsNull(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateLookup(ctx, testRow("rec-1", time.Now())); err != nil {
		t.Fatalf("CreateLookup: %v", err)
	}

	var nulls int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM lookups WHERE engine IS NULL AND drivetrain IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("query: %v", err)
	}
	if nulls != 1 {
		t.Errorf("empty engine/drivetrain not stored as NULL")
	}

	got, err := s.GetLookup(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetLookup: %v", err)
	}
	if got.Engine != "" || got.Drivetrain != "" {
		t.Errorf("engine/drivetrain = %q/%q, want empty", got.Engine, got.Drivetrain)
	}
}

func TestGetLookup_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetLookup(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateLookup_Rejects(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateLookup(ctx, testRow("", time.Now())); err == nil {
		t.Error("empty id accepted")
	}
	if err := s.CreateLookup(ctx, testRow("x", time.Time{})); err == nil {
		t.Error("zero created_at accepted")
	}

	if err := s.CreateLookup(ctx, testRow("dup", time.Now())); err != nil {
		t.Fatalf("CreateLookup: %v", err)
	}
	if err := s.CreateLookup(ctx, testRow("dup", time.Now())); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate err = %v, want ErrDuplicate", err)
	}
}

func TestListLookups_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Insert out of chronological order.
	for _, off := range []int{2, 0, 3, 1} {
		id := fmt.Sprintf("rec-%d", off)
		if err := s.CreateLookup(ctx, testRow(id, base.Add(time.Duration(off)*time.Minute))); err != nil {
			t.Fatalf("CreateLookup: %v", err)
		}
	}

	rows, err := s.ListLookups(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListLookups: %v", err)
	}
	want := []string{"rec-3", "rec-2", "rec-1", "rec-0"}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i, id := range want {
		if rows[i].ID != id {
			t.Errorf("rows[%d] = %s, want %s", i, rows[i].ID, id)
		}
	}
}

func TestListLookups_TiesByInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"first", "second", "third"} {
		if err := s.CreateLookup(ctx, testRow(id, at)); err != nil {
			t.Fatalf("CreateLookup: %v", err)
		}
	}

	rows, err := s.ListLookups(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListLookups: %v", err)
	}
	want := []string{"third", "second", "first"}
	for i, id := range want {
		if rows[i].ID != id {
			t.Errorf("rows[%d] = %s, want %s", i, rows[i].ID, id)
		}
	}
}

func TestListLookups_LimitOffset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i := range 5 {
		if err := s.CreateLookup(ctx, testRow(fmt.Sprintf("rec-%d", i), base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("CreateLookup: %v", err)
		}
	}

	page, err := s.ListLookups(ctx, 2, 1)
	if err != nil {
		t.Fatalf("ListLookups: %v", err)
	}
	if len(page) != 2 || page[0].ID != "rec-3" || page[1].ID != "rec-2" {
		t.Errorf("page = %v", ids(page))
	}

	empty, err := s.ListLookups(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListLookups(0): %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("limit 0 = %v, want empty slice", empty)
	}

	past, err := s.ListLookups(ctx, 10, 50)
	if err != nil {
		t.Fatalf("ListLookups past end: %v", err)
	}
	if len(past) != 0 {
		t.Errorf("past end = %v", ids(past))
	}
}

func TestConcurrentCreate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.CreateLookup(ctx, testRow(fmt.Sprintf("c-%d", i), time.Now()))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("CreateLookup: %v", err)
		}
	}

	n, err := s.CountLookups(ctx)
	if err != nil {
		t.Fatalf("CountLookups: %v", err)
	}
	if n != 20 {
		t.Errorf("count = %d, want 20", n)
	}
}

func ids(rows []LookupRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
