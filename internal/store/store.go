package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyRunning is returned by StartRun when a run is in progress.
	ErrAlreadyRunning = errors.New("generation already running")

	// ErrNotRunning is returned by StopRun and FinishRun when no run is active.
	ErrNotRunning = errors.New("generation not running")

	// ErrDuplicateSlug is returned when an insert hits the slug unique index.
	// Callers re-allocate the slug and retry.
	ErrDuplicateSlug = errors.New("slug already exists")
)

// Store is the persistence API consumed by the generation loop and the HTTP
// endpoints. The Postgres implementation backs the server; the in-memory
// implementation backs tests.
type Store interface {
	// FindCompletedByQuery returns the newest completed row whose query
	// matches case-insensitively (exact text, no wildcards).
	FindCompletedByQuery(ctx context.Context, query string) (*SearchRecord, error)

	// FindBySlug returns the completed row with the given slug.
	FindBySlug(ctx context.Context, slug string) (*SearchRecord, error)

	// ListCompleted returns completed rows newest first.
	ListCompleted(ctx context.Context, limit, offset int) ([]SearchRecord, error)

	// CountCompleted counts all completed rows.
	CountCompleted(ctx context.Context) (int64, error)

	// CountCompletedSince counts completed rows created at or after t.
	CountCompletedSince(ctx context.Context, t time.Time) (int64, error)

	// ListSlugs returns every allocated slug.
	ListSlugs(ctx context.Context) ([]string, error)

	// InsertCompleted inserts a completed row. The record must carry a query,
	// slug, result, and user id; the store assigns the id and timestamps.
	InsertCompleted(ctx context.Context, rec *SearchRecord) error

	// TrackSearch inserts a tracked-only row (no slug, no result).
	TrackSearch(ctx context.Context, query, userID string) (*SearchRecord, error)

	// CompleteSearch attaches a slug and result to the caller's most recent
	// tracked-only row for the query, or inserts a fresh completed row when
	// no tracked row exists.
	CompleteSearch(ctx context.Context, query, userID, slug string, result datatypes.JSON) (*SearchRecord, error)

	// RecentSearches returns the most recently completed rows.
	RecentSearches(ctx context.Context, limit int) ([]SearchRecord, error)

	// DeleteByID removes a row.
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// GetStatus reads the generation status singleton, creating the default
	// row on first access.
	GetStatus(ctx context.Context) (*GenerationStatus, error)

	// StartRun flips is_generating on, conditionally: it fails with
	// ErrAlreadyRunning when a run is active. Progress is preserved.
	StartRun(ctx context.Context, target int, userID string, now time.Time) error

	// StopRun flips is_generating off, conditionally: it fails with
	// ErrNotRunning when no run is active.
	StopRun(ctx context.Context, now time.Time) error

	// ResetRun unconditionally clears run state back to defaults.
	ResetRun(ctx context.Context, defaultTarget int) error

	// AdvanceProgress adds delta to progress and stamps last_run_at in a
	// single atomic update.
	AdvanceProgress(ctx context.Context, delta int, now time.Time) error

	// FinishRun flips is_generating off when the target is reached. Like
	// StopRun it is conditional on a run being active.
	FinishRun(ctx context.Context, now time.Time) error

	// InsertLLMCall appends one row to the audit log.
	InsertLLMCall(ctx context.Context, call *LLMCall) error

	// ListLLMCalls returns the newest audit rows.
	ListLLMCalls(ctx context.Context, limit int) ([]LLMCall, error)

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
