package generation

import (
	"context"
	"log/slog"
	"time"
)

// Tick driver names accepted in config.
const (
	DriverCron = "cron"
	DriverLoop = "loop"
)

const defaultLoopInterval = time.Minute

// Runner is the in-process tick driver, used when the deployment has no
// external scheduler. It calls the same Tick the cron endpoint calls; the
// two drivers never run together.
type Runner struct {
	controller *Controller
	interval   time.Duration
	logger     *slog.Logger
}

// NewRunner creates a loop runner. A non-positive interval falls back to
// one minute.
func NewRunner(controller *Controller, interval time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = defaultLoopInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{controller: controller, interval: interval, logger: logger}
}

// Run ticks on the configured interval until ctx is cancelled. Tick errors
// are logged and the loop continues; only cancellation stops it.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("generation loop started", "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("generation loop stopped")
			return
		case <-ticker.C:
			if _, err := r.controller.Tick(ctx); err != nil {
				r.logger.Error("tick failed", "error", err)
			}
		}
	}
}
