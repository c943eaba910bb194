// Package storage persists saved lookups in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBFile is the database file name inside the data directory.
const DBFile = "wrench.db"

// Store wraps a SQLite database holding the lookup history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, DBFile)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" and keeps :memory: alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate applies embedded SQL migrations that have not been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Lookups ---

const lookupColumns = `seq, id, year, make, model, engine, drivetrain, service_type, results, created_at`

// CreateLookup inserts row. Seq is assigned by the database and ignored on
// input. A zero CreatedAt is rejected so ordering stays meaningful.
func (s *Store) CreateLookup(ctx context.Context, row LookupRow) error {
	if row.ID == "" {
		return errors.New("lookup id is empty")
	}
	if row.CreatedAt.IsZero() {
		return errors.New("lookup created_at is zero")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lookups (id, year, make, model, engine, drivetrain, service_type, results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Year, row.Make, row.Model, nullable(row.Engine), nullable(row.Drivetrain),
		row.ServiceType, row.Results, row.CreatedAt.UnixNano(),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("lookup %s: %w", row.ID, ErrDuplicate)
	}
	return err
}

// GetLookup returns the lookup with the given id or ErrNotFound.
func (s *Store) GetLookup(ctx context.Context, id string) (LookupRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+lookupColumns+` FROM lookups WHERE id = ?`, id)
	r, err := scanLookup(row)
	if err == sql.ErrNoRows {
		return LookupRow{}, ErrNotFound
	}
	return r, err
}

// ListLookups returns up to limit lookups, newest first, skipping offset.
// Rows saved in the same instant come back in reverse insertion order.
func (s *Store) ListLookups(ctx context.Context, limit, offset int) ([]LookupRow, error) {
	if limit <= 0 {
		return []LookupRow{}, nil
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lookupColumns+`
		FROM lookups ORDER BY created_at DESC, seq DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []LookupRow{}
	for rows.Next() {
		r, err := scanLookup(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CountLookups returns the number of saved lookups.
func (s *Store) CountLookups(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lookups`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLookup(sc scanner) (LookupRow, error) {
	var (
		r                  LookupRow
		engine, drivetrain sql.NullString
		createdAt          int64
	)
	if err := sc.Scan(&r.Seq, &r.ID, &r.Year, &r.Make, &r.Model, &engine, &drivetrain,
		&r.ServiceType, &r.Results, &createdAt); err != nil {
		return LookupRow{}, err
	}
	r.Engine = engine.String
	r.Drivetrain = drivetrain.String
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	return r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
