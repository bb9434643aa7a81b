package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MemoryStore is an in-memory Store used by tests and by components that
// need storage semantics without a database.
type MemoryStore struct {
	mu       sync.Mutex
	recs     []*SearchRecord
	touched  map[uuid.UUID]int
	touchSeq int
	status   GenerationStatus
	calls    []LLMCall
}

// NewMemoryStore returns an empty in-memory store with a default status row.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		touched: make(map[uuid.UUID]int),
		status:  GenerationStatus{ID: statusRowID, UpdatedAt: time.Now()},
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) touch(id uuid.UUID) {
	m.touchSeq++
	m.touched[id] = m.touchSeq
}

func (m *MemoryStore) FindCompletedByQuery(_ context.Context, query string) (*SearchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.recs) - 1; i >= 0; i-- {
		r := m.recs[i]
		if r.Completed() && strings.EqualFold(r.Query, query) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindBySlug(_ context.Context, slug string) (*SearchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.Completed() && r.SlugValue() == slug {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListCompleted(_ context.Context, limit, offset int) ([]SearchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SearchRecord
	skipped := 0
	for i := len(m.recs) - 1; i >= 0; i-- {
		r := m.recs[i]
		if !r.Completed() {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, *r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) CountCompleted(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.recs {
		if r.Completed() {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CountCompletedSince(_ context.Context, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.recs {
		if r.Completed() && !r.CreatedAt.Before(t) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListSlugs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var slugs []string
	for _, r := range m.recs {
		if r.Slug != nil {
			slugs = append(slugs, *r.Slug)
		}
	}
	return slugs, nil
}

func (m *MemoryStore) InsertCompleted(_ context.Context, rec *SearchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Slug != nil {
		for _, r := range m.recs {
			if r.Slug != nil && *r.Slug == *rec.Slug {
				return ErrDuplicateSlug
			}
		}
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	cp := *rec
	m.recs = append(m.recs, &cp)
	m.touch(cp.ID)
	return nil
}

func (m *MemoryStore) TrackSearch(_ context.Context, query, userID string) (*SearchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	rec := &SearchRecord{
		ID:        uuid.New(),
		Query:     query,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.recs = append(m.recs, rec)
	m.touch(rec.ID)
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) CompleteSearch(_ context.Context, query, userID, slug string, result datatypes.JSON) (*SearchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.Slug != nil && *r.Slug == slug {
			return nil, ErrDuplicateSlug
		}
	}
	for i := len(m.recs) - 1; i >= 0; i-- {
		r := m.recs[i]
		if !r.Completed() && r.UserID == userID && strings.EqualFold(r.Query, query) {
			r.Slug = &slug
			r.Result = result
			r.UpdatedAt = time.Now()
			m.touch(r.ID)
			cp := *r
			return &cp, nil
		}
	}
	rec := &SearchRecord{
		ID:        uuid.New(),
		Query:     query,
		Slug:      &slug,
		Result:    result,
		UserID:    userID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.recs = append(m.recs, rec)
	m.touch(rec.ID)
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) RecentSearches(_ context.Context, limit int) ([]SearchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SearchRecord
	for _, r := range m.recs {
		if r.Completed() {
			out = append(out, *r)
		}
	}
	// Most recently touched first; the touch sequence breaks timestamp ties.
	sort.SliceStable(out, func(i, j int) bool {
		return m.touched[out[i].ID] > m.touched[out[j].ID]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) DeleteByID(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.recs {
		if r.ID == id {
			m.recs = append(m.recs[:i], m.recs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) GetStatus(_ context.Context) (*GenerationStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.status
	return &cp, nil
}

func (m *MemoryStore) StartRun(_ context.Context, target int, userID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.IsGenerating {
		return ErrAlreadyRunning
	}
	m.status.IsGenerating = true
	m.status.Target = target
	m.status.UserID = &userID
	m.status.StartedAt = &now
	m.status.StoppedAt = nil
	m.status.UpdatedAt = now
	return nil
}

func (m *MemoryStore) StopRun(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.status.IsGenerating {
		return ErrNotRunning
	}
	m.status.IsGenerating = false
	m.status.StoppedAt = &now
	m.status.UpdatedAt = now
	return nil
}

func (m *MemoryStore) ResetRun(_ context.Context, defaultTarget int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = GenerationStatus{
		ID:        statusRowID,
		Target:    defaultTarget,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (m *MemoryStore) AdvanceProgress(_ context.Context, delta int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Progress += delta
	m.status.LastRunAt = &now
	m.status.UpdatedAt = now
	return nil
}

func (m *MemoryStore) FinishRun(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.status.IsGenerating {
		return ErrNotRunning
	}
	m.status.IsGenerating = false
	m.status.StoppedAt = &now
	m.status.UpdatedAt = now
	return nil
}

func (m *MemoryStore) InsertLLMCall(_ context.Context, call *LLMCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if call.ID == uuid.Nil {
		call.ID = uuid.New()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}
	m.calls = append(m.calls, *call)
	return nil
}

func (m *MemoryStore) ListLLMCalls(_ context.Context, limit int) ([]LLMCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LLMCall
	for i := len(m.calls) - 1; i >= 0; i-- {
		out = append(out, m.calls[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
