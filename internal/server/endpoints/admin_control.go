package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/generation"
	"github.com/berea-study/berea/internal/store"
	"github.com/berea-study/berea/internal/svcctx"
)

// ControlRequest is the body for POST /api/admin/control.
type ControlRequest struct {
	Action string `json:"action"`
	Target int    `json:"target,omitempty"`
}

// ControlResponse acknowledges a control action with the resulting state.
type ControlResponse struct {
	Action string                  `json:"action"`
	Status generation.StatusReport `json:"status"`
}

// AdminControlEndpoint handles POST /api/admin/control: start, stop, and
// reset the generation run.
type AdminControlEndpoint struct{}

func (e *AdminControlEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/admin/control", e.handler
}

func (e *AdminControlEndpoint) RequiresInit() bool { return true }

func (e *AdminControlEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	var req ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	controller := svcctx.ControllerFrom(ctx)

	var err error
	switch req.Action {
	case "start":
		userID := r.Header.Get("X-Admin-User")
		err = controller.Start(ctx, req.Target, userID)
	case "stop":
		err = controller.Stop(ctx)
	case "reset":
		err = controller.Reset(ctx)
	default:
		writeError(w, http.StatusBadRequest, "action must be start, stop, or reset")
		return
	}

	switch {
	case errors.Is(err, generation.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrAlreadyRunning), errors.Is(err, store.ErrNotRunning):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	report, err := controller.Status(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ControlResponse{Action: req.Action, Status: *report})
}

func (e *AdminControlEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token string
	var target int
	cmd := &cobra.Command{
		Use:   "control <start|stop|reset>",
		Short: "Control the generation run",
		Long: `Control the generation run.

start resumes from the persisted progress; stop pauses without losing
progress; reset returns everything to defaults.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithAuthToken(token)
			var resp ControlResponse
			req := ControlRequest{Action: args[0], Target: target}
			if err := client.Post(cmd.Context(), "/api/admin/control", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	adminTokenFlag(cmd, &token)
	cmd.Flags().IntVar(&target, "target", 0, "run target (start only; 0 uses the configured default)")
	return cmd
}
