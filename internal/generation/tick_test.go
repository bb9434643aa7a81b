package generation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/berea-study/berea/internal/providers"
	"github.com/berea-study/berea/internal/store"
)

const tickAnswerJSON = `{
	"isRelevant": true,
	"content": {
		"literalAnswer": "An answer.",
		"searchTopic": "topic",
		"geographicalAnchor": {"location": "Jerusalem", "region": "Judea"},
		"scriptureReferences": [],
		"historicalContext": "Context.",
		"originalLanguageAnalysis": [],
		"theologicalInsight": "Insight.",
		"commentarySynthesis": [],
		"biblicalBookFrequency": []
	}
}`

func TestTickSkipsWhenIdle(t *testing.T) {
	st := store.NewMemoryStore()
	mock := providers.NewMockClient()
	c := newTestController(st, mock, testConfig())

	report, err := c.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if report.Ran || report.Skipped != SkipNotGenerating {
		t.Errorf("report = %+v, want skipped not_generating", report)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("idle tick made %d provider calls", mock.RequestCount())
	}
}

func TestTickGeneratesAndSaves(t *testing.T) {
	st := store.NewMemoryStore()
	mock := providers.NewMockClient()
	mock.Enqueue(`["Who was Boaz?", "What is the Sabbath?"]`)
	mock.Enqueue(tickAnswerJSON)
	mock.Enqueue(tickAnswerJSON)

	cfg := testConfig()
	cfg.BatchSize = 2
	c := newTestController(st, mock, cfg)
	ctx := context.Background()

	if err := c.Start(ctx, 10, "admin"); err != nil {
		t.Fatal(err)
	}
	report, err := c.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if !report.Ran || report.SavedCount != 2 || report.FailedCount != 0 {
		t.Errorf("report = %+v, want 2 saved", report)
	}
	if report.Progress != 2 {
		t.Errorf("progress = %d, want 2", report.Progress)
	}

	rec, err := st.FindCompletedByQuery(ctx, "who was boaz?")
	if err != nil {
		t.Fatalf("saved question not findable: %v", err)
	}
	if rec.SlugValue() == "" || rec.UserID != "admin" {
		t.Errorf("record = %+v", rec)
	}

	status, _ := st.GetStatus(ctx)
	if status.Progress != 2 || status.LastRunAt == nil {
		t.Errorf("status = %+v", status)
	}
}

func TestTickDedupSkips(t *testing.T) {
	st := store.NewMemoryStore()
	slug := "who-was-ruth"
	if err := st.InsertCompleted(context.Background(), &store.SearchRecord{
		Query:  "Who was Ruth?",
		Slug:   &slug,
		Result: datatypes.JSON(`{}`),
		UserID: "system",
	}); err != nil {
		t.Fatal(err)
	}

	mock := providers.NewMockClient()
	mock.Enqueue(`["Who was Ruth?", "What is the Sabbath?"]`)
	mock.Enqueue(tickAnswerJSON)

	cfg := testConfig()
	cfg.BatchSize = 2
	c := newTestController(st, mock, cfg)
	ctx := context.Background()

	if err := c.Start(ctx, 10, "admin"); err != nil {
		t.Fatal(err)
	}
	report, err := c.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if report.SavedCount != 1 || report.SkippedCount != 1 {
		t.Errorf("report = %+v, want 1 saved 1 skipped", report)
	}
	if report.Progress != 1 {
		t.Errorf("progress counts skipped duplicates: %+v", report)
	}
}

func TestTickAnswerFailureCounted(t *testing.T) {
	st := store.NewMemoryStore()
	mock := providers.NewMockClient()
	mock.Enqueue(`["Who was Boaz?"]`)
	mock.EnqueueError(&providers.RateLimitError{})

	cfg := testConfig()
	cfg.BatchSize = 1
	c := newTestController(st, mock, cfg)
	ctx := context.Background()

	if err := c.Start(ctx, 10, "admin"); err != nil {
		t.Fatal(err)
	}
	report, err := c.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if report.FailedCount != 1 || report.SavedCount != 0 {
		t.Errorf("report = %+v, want 1 failed", report)
	}

	// last_run_at still advances on a zero-save tick.
	status, _ := st.GetStatus(ctx)
	if status.LastRunAt == nil || status.Progress != 0 {
		t.Errorf("status = %+v", status)
	}
}

func TestTickAutoStopWithoutProviderCalls(t *testing.T) {
	st := store.NewMemoryStore()
	mock := providers.NewMockClient()
	c := newTestController(st, mock, testConfig())
	ctx := context.Background()

	if err := c.Start(ctx, 2, "admin"); err != nil {
		t.Fatal(err)
	}
	if err := st.AdvanceProgress(ctx, 2, time.Now()); err != nil {
		t.Fatal(err)
	}

	report, err := c.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if !report.AutoStopped || report.Ran {
		t.Errorf("report = %+v, want auto_stopped without work", report)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("auto-stop tick made %d provider calls", mock.RequestCount())
	}

	status, _ := st.GetStatus(ctx)
	if status.IsGenerating {
		t.Error("run still active after auto-stop")
	}
}

func TestTickAutoStopWhenSavesReachTarget(t *testing.T) {
	st := store.NewMemoryStore()
	mock := providers.NewMockClient()
	mock.Enqueue(`["Who was Boaz?"]`)
	mock.Enqueue(tickAnswerJSON)

	c := newTestController(st, mock, testConfig())
	ctx := context.Background()

	if err := c.Start(ctx, 1, "admin"); err != nil {
		t.Fatal(err)
	}
	report, err := c.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if report.SavedCount != 1 || !report.AutoStopped {
		t.Errorf("report = %+v, want 1 saved and auto_stopped", report)
	}

	// The batch is clamped to the remaining work: one question call plus
	// one answer call.
	if mock.RequestCount() != 2 {
		t.Errorf("provider calls = %d, want 2", mock.RequestCount())
	}
}

func TestTickDailyLimit(t *testing.T) {
	st := store.NewMemoryStore()
	slug := "existing"
	if err := st.InsertCompleted(context.Background(), &store.SearchRecord{
		Query:  "existing",
		Slug:   &slug,
		Result: datatypes.JSON(`{}`),
		UserID: "system",
	}); err != nil {
		t.Fatal(err)
	}

	mock := providers.NewMockClient()
	cfg := testConfig()
	cfg.DailyLimit = 1
	c := newTestController(st, mock, cfg)
	ctx := context.Background()

	if err := c.Start(ctx, 10, "admin"); err != nil {
		t.Fatal(err)
	}
	report, err := c.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if report.Ran || report.Skipped != SkipDailyLimit {
		t.Errorf("report = %+v, want skipped daily_limit", report)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("quota-limited tick made %d provider calls", mock.RequestCount())
	}
}

func TestTickBatchFailureStampsLastRun(t *testing.T) {
	st := store.NewMemoryStore()
	mock := providers.NewMockClient()
	mock.EnqueueError(errors.New("provider down"))

	c := newTestController(st, mock, testConfig())
	ctx := context.Background()

	if err := c.Start(ctx, 10, "admin"); err != nil {
		t.Fatal(err)
	}
	report, err := c.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if report.SavedCount != 0 {
		t.Errorf("report = %+v, want nothing saved", report)
	}

	status, _ := st.GetStatus(ctx)
	if status.LastRunAt == nil {
		t.Error("last_run_at not stamped after failed batch")
	}
	if !status.IsGenerating {
		t.Error("failed batch must not stop the run")
	}
}

func TestTickSlugCollisionGetsSuffix(t *testing.T) {
	st := store.NewMemoryStore()
	slug := "was-boaz-bible"
	if err := st.InsertCompleted(context.Background(), &store.SearchRecord{
		Query:  "unrelated wording",
		Slug:   &slug,
		Result: datatypes.JSON(`{}`),
		UserID: "system",
	}); err != nil {
		t.Fatal(err)
	}

	mock := providers.NewMockClient()
	mock.Enqueue(`["Who was Boaz in the Bible?"]`)
	mock.Enqueue(tickAnswerJSON)

	cfg := testConfig()
	cfg.BatchSize = 1
	c := newTestController(st, mock, cfg)
	ctx := context.Background()

	if err := c.Start(ctx, 10, "admin"); err != nil {
		t.Fatal(err)
	}
	report, err := c.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if report.SavedCount != 1 {
		t.Fatalf("report = %+v, want 1 saved", report)
	}

	rec, err := st.FindCompletedByQuery(ctx, "Who was Boaz in the Bible?")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(rec.SlugValue(), "was-boaz-bible-") {
		t.Errorf("slug = %q, want suffixed variant", rec.SlugValue())
	}
}

func TestRunnerTicksUntilCancelled(t *testing.T) {
	st := store.NewMemoryStore()
	mock := providers.NewMockClient()
	c := newTestController(st, mock, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(c, 10*time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}

	// Idle run: every tick skips, but the loop itself must have fired.
	report, err := c.Tick(context.Background())
	if err != nil || report.Skipped != SkipNotGenerating {
		t.Errorf("report = %+v, err = %v", report, err)
	}
}
