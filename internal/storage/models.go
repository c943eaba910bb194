package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a lookup with the same id already exists.
var ErrDuplicate = errors.New("duplicate id")

// LookupRow is one saved lookup as stored. Engine and Drivetrain are empty
// when the vehicle did not specify them; Results holds the normalized
// answer as JSON text.
type LookupRow struct {
	Seq         int64
	ID          string
	Year        string
	Make        string
	Model       string
	Engine      string
	Drivetrain  string
	ServiceType string
	Results     string
	CreatedAt   time.Time
}
