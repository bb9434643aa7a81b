package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/berea-study/berea/internal/llmcall"
	"github.com/berea-study/berea/internal/providers"
	"github.com/berea-study/berea/internal/store"
	"github.com/berea-study/berea/internal/study"
)

// Skip reasons reported when a tick does no provider work.
const (
	SkipNotGenerating = "not_generating"
	SkipDailyLimit    = "daily_limit"
)

const (
	defaultBatchSize   = 3
	defaultParallelism = 3
	batchRetryDelay    = 2 * time.Second
)

// TickReport summarizes one tick.
type TickReport struct {
	// Ran is true when the tick attempted provider work. Skipped holds the
	// reason when it did not.
	Ran     bool   `json:"ran"`
	Skipped string `json:"skipped,omitempty"`

	SavedCount   int `json:"saved_count"`
	SkippedCount int `json:"skipped_count"`
	FailedCount  int `json:"failed_count"`

	Progress    int  `json:"progress"`
	Target      int  `json:"target"`
	AutoStopped bool `json:"auto_stopped"`

	DurationMs int64         `json:"duration_ms"`
	Duration   time.Duration `json:"-"`
}

// Tick performs one bounded unit of generation work: read state, generate a
// question batch, answer each question, persist, advance progress. Both tick
// drivers call this; overlapping ticks are tolerated because progress and
// run-state transitions are atomic at the store.
func (c *Controller) Tick(ctx context.Context) (*TickReport, error) {
	start := time.Now()
	cfg := c.cfg()

	status, err := c.store.GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	report := &TickReport{Progress: status.Progress, Target: status.Target}
	defer func() {
		report.Duration = time.Since(start)
		report.DurationMs = report.Duration.Milliseconds()
	}()

	if !status.IsGenerating {
		report.Skipped = SkipNotGenerating
		return report, nil
	}

	// Target already reached: close out the run without touching providers.
	if status.Progress >= status.Target {
		if err := c.store.FinishRun(ctx, time.Now()); err != nil && !errors.Is(err, store.ErrNotRunning) {
			return nil, err
		}
		report.AutoStopped = true
		c.logger.Info("generation target reached", "progress", status.Progress, "target", status.Target)
		return report, nil
	}

	if cfg.DailyLimit > 0 {
		n, err := c.store.CountCompletedSince(ctx, localMidnight(time.Now()))
		if err != nil {
			return nil, err
		}
		if n >= int64(cfg.DailyLimit) {
			report.Skipped = SkipDailyLimit
			c.logger.Info("daily generation limit reached", "count", n, "limit", cfg.DailyLimit)
			return report, nil
		}
	}

	client, err := c.registry.Default()
	if err != nil {
		return nil, err
	}

	report.Ran = true

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if remaining := status.Target - status.Progress; batchSize > remaining {
		batchSize = remaining
	}

	questions, err := c.questionBatch(ctx, client, batchSize, cfg.MaxBatchRetries)
	if err != nil {
		// The batch never materialized; stamp last_run_at and move on.
		c.logger.Warn("question batch failed", "error", err)
		if advErr := c.store.AdvanceProgress(ctx, 0, time.Now()); advErr != nil {
			return nil, advErr
		}
		return report, nil
	}

	saved, skipped, failed := c.processQuestions(ctx, client, questions, status, cfg.Parallelism)
	report.SavedCount = saved
	report.SkippedCount = skipped
	report.FailedCount = failed
	report.Progress = status.Progress + saved

	if err := c.store.AdvanceProgress(ctx, saved, time.Now()); err != nil {
		return nil, err
	}

	if report.Progress >= status.Target {
		if err := c.store.FinishRun(ctx, time.Now()); err != nil && !errors.Is(err, store.ErrNotRunning) {
			return nil, err
		}
		report.AutoStopped = true
		c.logger.Info("generation target reached", "progress", report.Progress, "target", status.Target)
	}

	c.logger.Info("tick complete",
		"saved", saved,
		"skipped", skipped,
		"failed", failed,
		"progress", report.Progress,
		"target", status.Target,
		"duration", report.Duration)
	return report, nil
}

// questionBatch asks for a batch of candidate questions, retrying empty or
// failed batches a bounded number of times within the tick.
func (c *Controller) questionBatch(ctx context.Context, client providers.LLMClient, size, maxRetries int) ([]string, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var questions []string
	err := retry.Do(
		func() error {
			qs, source, chat, err := study.GenerateQuestions(ctx, client, size)
			if chat != nil {
				c.recorder.Record(chat, llmcall.RecordOptions{Operation: "questions", ParseSource: source})
			}
			if err != nil {
				return err
			}
			questions = qs
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)),
		retry.Delay(batchRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// processQuestions runs the per-question pipeline with bounded parallelism.
// Every question settles: an error in one pipeline never aborts the others.
func (c *Controller) processQuestions(ctx context.Context, client providers.LLMClient, questions []string, status *store.GenerationStatus, parallelism int) (saved, skipped, failed int) {
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	userID := "system"
	if status.UserID != nil && *status.UserID != "" {
		userID = *status.UserID
	}

	var mu sync.Mutex
	taken := make(map[string]struct{})
	if slugs, err := c.store.ListSlugs(ctx); err == nil {
		for _, s := range slugs {
			taken[s] = struct{}{}
		}
	} else {
		c.logger.Warn("failed to list slugs, relying on unique index", "error", err)
	}

	g := &errgroup.Group{}
	g.SetLimit(parallelism)

	for _, question := range questions {
		g.Go(func() error {
			outcome := c.processQuestion(ctx, client, question, userID, &mu, taken)
			mu.Lock()
			switch outcome {
			case outcomeSaved:
				saved++
			case outcomeSkipped:
				skipped++
			case outcomeFailed:
				failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return saved, skipped, failed
}

type questionOutcome int

const (
	outcomeSaved questionOutcome = iota
	outcomeSkipped
	outcomeFailed
)

func (c *Controller) processQuestion(ctx context.Context, client providers.LLMClient, question, userID string, mu *sync.Mutex, taken map[string]struct{}) questionOutcome {
	// Dedup before spending a provider call.
	_, err := c.store.FindCompletedByQuery(ctx, question)
	if err == nil {
		c.logger.Debug("question already answered", "question", question)
		return outcomeSkipped
	}
	if !errors.Is(err, store.ErrNotFound) {
		c.logger.Warn("dedup lookup failed", "question", question, "error", err)
		return outcomeFailed
	}

	res, err := study.GenerateAnswer(ctx, client, question)
	if res != nil && res.Chat != nil {
		c.recorder.Record(res.Chat, llmcall.RecordOptions{Operation: "answer", ParseSource: res.Source})
	}
	if err != nil {
		c.logger.Warn("answer generation failed", "question", question, "error", err)
		return outcomeFailed
	}

	for attempt := 0; attempt < 2; attempt++ {
		mu.Lock()
		slug := study.UniqueSlug(question, taken)
		taken[slug] = struct{}{}
		mu.Unlock()

		rec := &store.SearchRecord{
			Query:  question,
			Slug:   &slug,
			Result: datatypes.JSON(res.Raw),
			UserID: userID,
		}
		err = c.store.InsertCompleted(ctx, rec)
		if err == nil {
			c.logger.Info("question saved", "question", question, "slug", slug, "source", res.Source)
			return outcomeSaved
		}
		if !errors.Is(err, store.ErrDuplicateSlug) {
			break
		}
		// Another writer took the slug between allocation and insert;
		// one fresh allocation gets a new random suffix.
	}
	c.logger.Warn("failed to save answer", "question", question, "error", err)
	return outcomeFailed
}

// localMidnight returns the start of the day containing t, in t's location.
// The daily quota counts what was generated since then.
func localMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
