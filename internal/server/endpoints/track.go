package endpoints

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/svcctx"
)

// TrackRequest is the body for POST /api/track.
type TrackRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId,omitempty"`
}

// TrackResponse acknowledges a tracked search.
type TrackResponse struct {
	Tracked bool   `json:"tracked"`
	ID      string `json:"id"`
}

// TrackEndpoint handles POST /api/track: it records that a query was asked
// without generating anything. A later CompleteSearch attaches the answer.
type TrackEndpoint struct{}

func (e *TrackEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/track", e.handler
}

func (e *TrackEndpoint) RequiresInit() bool { return true }

func (e *TrackEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	rec, err := svcctx.StoreFrom(r.Context()).TrackSearch(r.Context(), req.Query, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, TrackResponse{Tracked: true, ID: rec.ID.String()})
}

func (e *TrackEndpoint) Command(getServerURL func() string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "track <query>",
		Short: "Track a search without generating an answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TrackResponse
			err := client.Post(cmd.Context(), "/api/track", TrackRequest{Query: args[0], UserID: userID}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "opaque user id recorded on the search")
	return cmd
}
