// Package domain contains the global cursor model. A cursor records how
// far a scheduled job has progressed so restarts resume instead of
// reprocessing.
package domain

import (
	"context"
	"errors"
	"time"
)

// Purpose identifies the job a cursor belongs to.
type Purpose string

const (
	// PurposeRecurringBilling marks the expansion job's watermark: every
	// recurrence is fully expanded up to this time.
	PurposeRecurringBilling Purpose = "RECURRING_BILLING"
)

// Cursor is a singleton-per-purpose progress marker.
type Cursor struct {
	Purpose    Purpose   `gorm:"primaryKey;type:text"`
	CursorTime time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Cursor) TableName() string { return "cursors" }

var (
	ErrCursorNotFound = errors.New("cursor_not_found")
	// ErrCursorMismatch means the cursor moved under us. The caller
	// raced another run and must not advance.
	ErrCursorMismatch = errors.New("cursor_time_mismatch")
)

type Service interface {
	// Get returns the cursor for the purpose, creating it at the given
	// default time on first use.
	Get(ctx context.Context, purpose Purpose, defaultTime time.Time) (Cursor, error)

	// Advance moves the cursor from expectedTime to newTime atomically.
	// ErrCursorMismatch if the stored time is not expectedTime.
	Advance(ctx context.Context, purpose Purpose, expectedTime, newTime time.Time) error
}
