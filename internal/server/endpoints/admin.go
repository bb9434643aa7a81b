package endpoints

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/generation"
	"github.com/berea-study/berea/internal/svcctx"
)

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

// requireAdmin authorizes an admin request. An unconfigured admin token
// fails closed: no request is ever let through.
func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	mgr := svcctx.ConfigFrom(r.Context())
	if mgr == nil {
		writeError(w, http.StatusUnauthorized, "admin access not configured")
		return false
	}
	want := mgr.Get().AdminToken()
	if want == "" {
		writeError(w, http.StatusUnauthorized, "admin access not configured")
		return false
	}
	got := bearerToken(r)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid admin token")
		return false
	}
	return true
}

// adminTokenFlag wires the shared --token flag, defaulting to the
// BEREA_ADMIN_TOKEN environment variable.
func adminTokenFlag(cmd *cobra.Command, token *string) {
	cmd.Flags().StringVar(token, "token", os.Getenv("BEREA_ADMIN_TOKEN"), "admin bearer token")
}

// AdminStatusEndpoint handles GET /api/admin/status.
type AdminStatusEndpoint struct{}

func (e *AdminStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/admin/status", e.handler
}

func (e *AdminStatusEndpoint) RequiresInit() bool { return true }

func (e *AdminStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	report, err := svcctx.ControllerFrom(r.Context()).Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (e *AdminStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show generation run status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithAuthToken(token)
			var resp generation.StatusReport
			if err := client.Get(cmd.Context(), "/api/admin/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	adminTokenFlag(cmd, &token)
	return cmd
}

// AdminStatsResponse aggregates store totals for the admin dashboard.
type AdminStatsResponse struct {
	TotalQuestions int64 `json:"totalQuestions"`
	TodayGenerated int64 `json:"todayGenerated"`
	DailyLimit     int   `json:"dailyLimit"`
	IsRunning      bool  `json:"isRunning"`
	Progress       int   `json:"progress"`
	Target         int   `json:"target"`
}

// AdminStatsEndpoint handles GET /api/admin/stats.
type AdminStatsEndpoint struct{}

func (e *AdminStatsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/admin/stats", e.handler
}

func (e *AdminStatsEndpoint) RequiresInit() bool { return true }

func (e *AdminStatsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	ctx := r.Context()
	st := svcctx.StoreFrom(ctx)

	total, err := st.CountCompleted(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := st.CountCompletedSince(ctx, midnight)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status, err := st.GetStatus(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := AdminStatsResponse{
		TotalQuestions: total,
		TodayGenerated: today,
		IsRunning:      status.IsGenerating,
		Progress:       status.Progress,
		Target:         status.Target,
	}
	if mgr := svcctx.ConfigFrom(ctx); mgr != nil {
		resp.DailyLimit = mgr.Get().Generation.DailyLimit
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *AdminStatsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store totals and generation counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithAuthToken(token)
			var resp AdminStatsResponse
			if err := client.Get(cmd.Context(), "/api/admin/stats", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	adminTokenFlag(cmd, &token)
	return cmd
}
