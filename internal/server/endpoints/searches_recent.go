package endpoints

import (
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/svcctx"
)

const defaultRecentLimit = 10

// RecentSearch is one entry in the recent-searches feed.
type RecentSearch struct {
	Query     string    `json:"query"`
	Slug      string    `json:"slug"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecentSearchesResponse is the response for GET /api/searches/recent.
type RecentSearchesResponse struct {
	Searches []RecentSearch `json:"searches"`
}

// RecentSearchesEndpoint handles GET /api/searches/recent.
type RecentSearchesEndpoint struct{}

func (e *RecentSearchesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/searches/recent", e.handler
}

func (e *RecentSearchesEndpoint) RequiresInit() bool { return true }

func (e *RecentSearchesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultRecentLimit)
	if limit < 1 || limit > maxQuestionLimit {
		limit = defaultRecentLimit
	}

	recs, err := svcctx.StoreFrom(r.Context()).RecentSearches(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := RecentSearchesResponse{Searches: make([]RecentSearch, 0, len(recs))}
	for _, rec := range recs {
		resp.Searches = append(resp.Searches, RecentSearch{
			Query:     rec.Query,
			Slug:      rec.SlugValue(),
			UpdatedAt: rec.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *RecentSearchesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently answered searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RecentSearchesResponse
			if err := client.Get(cmd.Context(), "/api/searches/recent?limit="+strconv.Itoa(limit), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultRecentLimit, "number of searches")
	return cmd
}
