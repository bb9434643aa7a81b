// Package generation drives auto-generation runs: a persisted state machine
// (start, stop, reset) plus the tick that does one bounded batch of work.
// Run state lives only in the generation_status row so every process sees
// the same truth.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/berea-study/berea/internal/config"
	"github.com/berea-study/berea/internal/llmcall"
	"github.com/berea-study/berea/internal/providers"
	"github.com/berea-study/berea/internal/store"
)

// ErrInvalidTarget is returned by Start when the requested target is outside
// the accepted range.
var ErrInvalidTarget = errors.New("target out of range")

// Controller exposes the run state machine. All methods hit the store; the
// controller itself is stateless and safe for concurrent use.
type Controller struct {
	store    store.Store
	registry *providers.Registry
	recorder *llmcall.Recorder
	cfg      func() config.GenerationCfg
	logger   *slog.Logger
}

// NewController wires a controller. cfg is called per operation so config
// hot-reload takes effect without restarting.
func NewController(st store.Store, registry *providers.Registry, recorder *llmcall.Recorder, cfg func() config.GenerationCfg, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:    st,
		registry: registry,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

// StatusReport is the persisted status row plus derived progress fields.
type StatusReport struct {
	store.GenerationStatus
	Percent   float64 `json:"percent"`
	Remaining int     `json:"remaining"`
}

// Start begins a run. A zero target selects the configured default. Progress
// is preserved so a stopped run resumes where it left off.
func (c *Controller) Start(ctx context.Context, target int, userID string) error {
	cfg := c.cfg()
	if target == 0 {
		target = cfg.DefaultTarget
	}
	if target < 1 || target > cfg.MaxTarget {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidTarget, target, cfg.MaxTarget)
	}
	if userID == "" {
		userID = "system"
	}
	if err := c.store.StartRun(ctx, target, userID, time.Now()); err != nil {
		return err
	}
	c.logger.Info("generation started", "target", target, "user", userID)
	return nil
}

// Stop halts the active run. Progress is kept for a later resume.
func (c *Controller) Stop(ctx context.Context) error {
	if err := c.store.StopRun(ctx, time.Now()); err != nil {
		return err
	}
	c.logger.Info("generation stopped")
	return nil
}

// Reset clears run state back to defaults. It always succeeds, running or not.
func (c *Controller) Reset(ctx context.Context) error {
	if err := c.store.ResetRun(ctx, c.cfg().DefaultTarget); err != nil {
		return err
	}
	c.logger.Info("generation reset")
	return nil
}

// Status reads the current run state.
func (c *Controller) Status(ctx context.Context) (*StatusReport, error) {
	status, err := c.store.GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	report := &StatusReport{GenerationStatus: *status}
	if status.Target > 0 {
		report.Percent = float64(status.Progress) / float64(status.Target) * 100
		if report.Percent > 100 {
			report.Percent = 100
		}
	}
	if remaining := status.Target - status.Progress; remaining > 0 {
		report.Remaining = remaining
	}
	return report, nil
}
