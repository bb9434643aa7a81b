// Package store is the persistence gateway. It owns the Postgres schema for
// searches, the generation status singleton, and the LLM call audit log, and
// exposes a Store interface so callers never touch gorm directly.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SearchRecord is one row in the searches table. A row with a nil Result is
// tracked-only: the query was asked but no answer has been persisted yet.
// Completed rows carry a unique slug and the full study payload as jsonb.
type SearchRecord struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Query     string         `gorm:"not null" json:"query"`
	Slug      *string        `gorm:"uniqueIndex" json:"slug,omitempty"`
	Result    datatypes.JSON `gorm:"type:jsonb" json:"result,omitempty"`
	UserID    string         `gorm:"not null" json:"user_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (SearchRecord) TableName() string { return "searches" }

// Completed reports whether the row holds a persisted answer.
func (r *SearchRecord) Completed() bool { return len(r.Result) > 0 }

// SlugValue returns the slug or "" when unset.
func (r *SearchRecord) SlugValue() string {
	if r.Slug == nil {
		return ""
	}
	return *r.Slug
}

// GenerationStatus is the singleton row (id=1) holding run state for the
// auto-generation loop. It is the single source of truth: controllers read
// and mutate this row rather than keeping state in memory.
type GenerationStatus struct {
	ID           int        `gorm:"primaryKey" json:"-"`
	IsGenerating bool       `json:"is_generating"`
	Progress     int        `json:"progress"`
	Target       int        `json:"target"`
	UserID       *string    `json:"user_id,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	StoppedAt    *time.Time `json:"stopped_at,omitempty"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (GenerationStatus) TableName() string { return "generation_status" }

// statusRowID is the only id ever used for generation_status.
const statusRowID = 1

// LLMCall is one audited provider call.
type LLMCall struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	Operation        string    `json:"operation"`
	Status           string    `json:"status"`
	ParseSource      string    `json:"parse_source,omitempty"`
	DurationMs       int       `json:"duration_ms"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Error            *string   `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func (LLMCall) TableName() string { return "llm_calls" }
