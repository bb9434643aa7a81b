package endpoints

import (
	"crypto/subtle"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/generation"
	"github.com/berea-study/berea/internal/svcctx"
)

// TickResponse is the response for POST /api/cron/tick.
type TickResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SavedCount   int    `json:"savedCount"`
	SkippedCount int    `json:"skippedCount"`
	FailedCount  int    `json:"failedCount"`
	Progress     int    `json:"progress"`
	Target       int    `json:"target"`
	DurationMs   int64  `json:"durationMs"`
}

// CronTickEndpoint handles POST /api/cron/tick: the external scheduler's
// entry point into the generation loop.
type CronTickEndpoint struct{}

func (e *CronTickEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/cron/tick", e.handler
}

func (e *CronTickEndpoint) RequiresInit() bool { return true }

func (e *CronTickEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mgr := svcctx.ConfigFrom(ctx)
	if mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "configuration not loaded")
		return
	}
	cfg := mgr.Get()

	// Fail closed: without a shared secret nobody ticks.
	secret := cfg.CronSecret()
	if secret == "" {
		writeError(w, http.StatusServiceUnavailable, "cron secret not configured")
		return
	}
	got := bearerToken(r)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid cron token")
		return
	}

	// The loop runner owns ticking when configured; external ticks would
	// double the generation rate.
	if cfg.Generation.Driver == generation.DriverLoop {
		writeError(w, http.StatusConflict, "tick driver is the in-process loop")
		return
	}

	report, err := svcctx.ControllerFrom(ctx).Tick(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, TickResponse{
		Success:      true,
		Message:      tickMessage(report),
		SavedCount:   report.SavedCount,
		SkippedCount: report.SkippedCount,
		FailedCount:  report.FailedCount,
		Progress:     report.Progress,
		Target:       report.Target,
		DurationMs:   report.DurationMs,
	})
}

func tickMessage(report *generation.TickReport) string {
	switch {
	case report.Skipped != "":
		return "skipped: " + report.Skipped
	case report.AutoStopped:
		return "target reached, run stopped"
	default:
		return "tick complete"
	}
}

func (e *CronTickEndpoint) Command(getServerURL func() string) *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Trigger one generation tick",
		Long: `Trigger one generation tick.

Meant to be called by an external scheduler on an interval; each call does
one bounded batch of work and reports what happened.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithAuthToken(secret)
			var resp TickResponse
			if err := client.Post(cmd.Context(), "/api/cron/tick", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("BEREA_CRON_SECRET"), "cron bearer secret")
	return cmd
}
