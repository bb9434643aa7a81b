package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// postgresStore implements Store on a gorm Postgres connection.
type postgresStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to Postgres and verifies the connection with a retried ping.
// It does not migrate; call Migrate separately so the serve path and the
// migrate command share one code path.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}

	err = retry.Do(
		func() error { return sqlDB.PingContext(ctx) },
		retry.Context(ctx),
		retry.Attempts(10),
		retry.Delay(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres not reachable: %w", err)
	}

	return &postgresStore{db: db, logger: logger}, nil
}

// Migrate creates or updates the schema and seeds the status singleton.
func Migrate(ctx context.Context, s Store, defaultTarget int) error {
	pg, ok := s.(*postgresStore)
	if !ok {
		// The in-memory store needs no schema, only the seeded status row.
		status, err := s.GetStatus(ctx)
		if err != nil {
			return err
		}
		if status.Target == 0 && !status.IsGenerating {
			return s.ResetRun(ctx, defaultTarget)
		}
		return nil
	}

	db := pg.db.WithContext(ctx)
	if err := db.AutoMigrate(&SearchRecord{}, &GenerationStatus{}, &LLMCall{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	// Expression index for the case-insensitive query lookup. AutoMigrate
	// cannot express this.
	if err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_searches_query_lower ON searches (lower(query))`,
	).Error; err != nil {
		return fmt.Errorf("failed to create query index: %w", err)
	}

	if err := pg.seedStatus(ctx, defaultTarget); err != nil {
		return err
	}

	pg.logger.Info("database migrated")
	return nil
}

func (s *postgresStore) seedStatus(ctx context.Context, defaultTarget int) error {
	seed := GenerationStatus{ID: statusRowID, Target: defaultTarget}
	err := s.db.WithContext(ctx).
		Where(GenerationStatus{ID: statusRowID}).
		FirstOrCreate(&seed).Error
	if err != nil {
		return fmt.Errorf("failed to seed generation status: %w", err)
	}
	return nil
}

func (s *postgresStore) FindCompletedByQuery(ctx context.Context, query string) (*SearchRecord, error) {
	var rec SearchRecord
	err := s.db.WithContext(ctx).
		Where("lower(query) = lower(?) AND result IS NOT NULL", query).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *postgresStore) FindBySlug(ctx context.Context, slug string) (*SearchRecord, error) {
	var rec SearchRecord
	err := s.db.WithContext(ctx).
		Where("slug = ? AND result IS NOT NULL", slug).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *postgresStore) ListCompleted(ctx context.Context, limit, offset int) ([]SearchRecord, error) {
	var recs []SearchRecord
	err := s.db.WithContext(ctx).
		Where("result IS NOT NULL").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&recs).Error
	return recs, err
}

func (s *postgresStore) CountCompleted(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&SearchRecord{}).
		Where("result IS NOT NULL").
		Count(&n).Error
	return n, err
}

func (s *postgresStore) CountCompletedSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&SearchRecord{}).
		Where("result IS NOT NULL AND created_at >= ?", t).
		Count(&n).Error
	return n, err
}

func (s *postgresStore) ListSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	err := s.db.WithContext(ctx).
		Model(&SearchRecord{}).
		Where("slug IS NOT NULL").
		Pluck("slug", &slugs).Error
	return slugs, err
}

func (s *postgresStore) InsertCompleted(ctx context.Context, rec *SearchRecord) error {
	if rec.Query == "" || rec.Slug == nil || len(rec.Result) == 0 {
		return fmt.Errorf("completed record requires query, slug, and result")
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	err := s.db.WithContext(ctx).Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateSlug
	}
	return err
}

func (s *postgresStore) TrackSearch(ctx context.Context, query, userID string) (*SearchRecord, error) {
	rec := &SearchRecord{
		ID:     uuid.New(),
		Query:  query,
		UserID: userID,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *postgresStore) CompleteSearch(ctx context.Context, query, userID, slug string, result datatypes.JSON) (*SearchRecord, error) {
	var rec SearchRecord
	err := s.db.WithContext(ctx).
		Where("lower(query) = lower(?) AND user_id = ? AND result IS NULL", query, userID).
		Order("created_at DESC").
		First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = SearchRecord{
			ID:     uuid.New(),
			Query:  query,
			Slug:   &slug,
			Result: result,
			UserID: userID,
		}
		createErr := s.db.WithContext(ctx).Create(&rec).Error
		if errors.Is(createErr, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateSlug
		}
		if createErr != nil {
			return nil, createErr
		}
		return &rec, nil
	case err != nil:
		return nil, err
	}

	updateErr := s.db.WithContext(ctx).
		Model(&rec).
		Updates(map[string]any{"slug": slug, "result": result}).Error
	if errors.Is(updateErr, gorm.ErrDuplicatedKey) {
		return nil, ErrDuplicateSlug
	}
	if updateErr != nil {
		return nil, updateErr
	}
	rec.Slug = &slug
	rec.Result = result
	return &rec, nil
}

func (s *postgresStore) RecentSearches(ctx context.Context, limit int) ([]SearchRecord, error) {
	var recs []SearchRecord
	err := s.db.WithContext(ctx).
		Where("result IS NOT NULL").
		Order("updated_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (s *postgresStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&SearchRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) GetStatus(ctx context.Context) (*GenerationStatus, error) {
	var status GenerationStatus
	err := s.db.WithContext(ctx).
		Where(GenerationStatus{ID: statusRowID}).
		FirstOrCreate(&status).Error
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *postgresStore) StartRun(ctx context.Context, target int, userID string, now time.Time) error {
	if _, err := s.GetStatus(ctx); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Model(&GenerationStatus{}).
		Where("id = ? AND is_generating = ?", statusRowID, false).
		Updates(map[string]any{
			"is_generating": true,
			"target":        target,
			"user_id":       userID,
			"started_at":    now,
			"stopped_at":    nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyRunning
	}
	return nil
}

func (s *postgresStore) StopRun(ctx context.Context, now time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&GenerationStatus{}).
		Where("id = ? AND is_generating = ?", statusRowID, true).
		Updates(map[string]any{
			"is_generating": false,
			"stopped_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotRunning
	}
	return nil
}

func (s *postgresStore) ResetRun(ctx context.Context, defaultTarget int) error {
	if _, err := s.GetStatus(ctx); err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&GenerationStatus{}).
		Where("id = ?", statusRowID).
		Updates(map[string]any{
			"is_generating": false,
			"progress":      0,
			"target":        defaultTarget,
			"user_id":       nil,
			"started_at":    nil,
			"stopped_at":    nil,
			"last_run_at":   nil,
		}).Error
}

func (s *postgresStore) AdvanceProgress(ctx context.Context, delta int, now time.Time) error {
	return s.db.WithContext(ctx).
		Model(&GenerationStatus{}).
		Where("id = ?", statusRowID).
		Updates(map[string]any{
			"progress":    gorm.Expr("progress + ?", delta),
			"last_run_at": now,
		}).Error
}

func (s *postgresStore) FinishRun(ctx context.Context, now time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&GenerationStatus{}).
		Where("id = ? AND is_generating = ?", statusRowID, true).
		Updates(map[string]any{
			"is_generating": false,
			"stopped_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotRunning
	}
	return nil
}

func (s *postgresStore) InsertLLMCall(ctx context.Context, call *LLMCall) error {
	if call.ID == uuid.Nil {
		call.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(call).Error
}

func (s *postgresStore) ListLLMCalls(ctx context.Context, limit int) ([]LLMCall, error) {
	var calls []LLMCall
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&calls).Error
	return calls, err
}

func (s *postgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *postgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
