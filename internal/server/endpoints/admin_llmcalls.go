package endpoints

import (
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/store"
	"github.com/berea-study/berea/internal/svcctx"
)

const defaultLLMCallLimit = 50

// LLMCallsResponse is the response for GET /api/admin/llmcalls.
type LLMCallsResponse struct {
	Calls []store.LLMCall `json:"calls"`
}

// AdminLLMCallsEndpoint handles GET /api/admin/llmcalls: the provider call
// audit log, newest first.
type AdminLLMCallsEndpoint struct{}

func (e *AdminLLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/admin/llmcalls", e.handler
}

func (e *AdminLLMCallsEndpoint) RequiresInit() bool { return true }

func (e *AdminLLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}

	limit := queryInt(r, "limit", defaultLLMCallLimit)
	if limit < 1 || limit > 500 {
		limit = defaultLLMCallLimit
	}

	calls, err := svcctx.StoreFrom(r.Context()).ListLLMCalls(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if calls == nil {
		calls = []store.LLMCall{}
	}
	writeJSON(w, http.StatusOK, LLMCallsResponse{Calls: calls})
}

func (e *AdminLLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var token string
	var limit int
	cmd := &cobra.Command{
		Use:   "llmcalls",
		Short: "List recent LLM call audit rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL()).WithAuthToken(token)
			var resp LLMCallsResponse
			if err := client.Get(cmd.Context(), "/api/admin/llmcalls?limit="+strconv.Itoa(limit), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	adminTokenFlag(cmd, &token)
	cmd.Flags().IntVar(&limit, "limit", defaultLLMCallLimit, "number of rows")
	return cmd
}
