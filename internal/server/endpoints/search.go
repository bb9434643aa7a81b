package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/datatypes"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/llmcall"
	"github.com/berea-study/berea/internal/providers"
	"github.com/berea-study/berea/internal/store"
	"github.com/berea-study/berea/internal/study"
	"github.com/berea-study/berea/internal/svcctx"
)

// SearchRequest is the body for POST /api/search.
type SearchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId,omitempty"`
}

// SearchResponse carries the study answer, cached or freshly generated.
type SearchResponse struct {
	Query     string          `json:"query"`
	Slug      string          `json:"slug"`
	Cached    bool            `json:"cached"`
	Response  json.RawMessage `json:"response"`
	CreatedAt time.Time       `json:"created_at"`
}

// SearchEndpoint handles POST /api/search. It is cache-first: a completed
// row for the query short-circuits the provider entirely.
type SearchEndpoint struct{}

func (e *SearchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/search", e.handler
}

func (e *SearchEndpoint) RequiresInit() bool { return true }

func (e *SearchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
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

	ctx := r.Context()
	st := svcctx.StoreFrom(ctx)

	if rec, err := st.FindCompletedByQuery(ctx, req.Query); err == nil {
		writeJSON(w, http.StatusOK, SearchResponse{
			Query:     rec.Query,
			Slug:      rec.SlugValue(),
			Cached:    true,
			Response:  json.RawMessage(rec.Result),
			CreatedAt: rec.CreatedAt,
		})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	registry := svcctx.RegistryFrom(ctx)
	client, err := registry.Default()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "no LLM provider configured")
		return
	}

	res, err := study.GenerateAnswer(ctx, client, req.Query)
	if res != nil && res.Chat != nil {
		svcctx.RecorderFrom(ctx).Record(res.Chat, llmcall.RecordOptions{
			Operation:   "search",
			ParseSource: res.Source,
		})
	}
	if err != nil {
		if providers.IsRateLimit(err) {
			writeError(w, http.StatusTooManyRequests, "provider rate limit, try again shortly")
			return
		}
		writeError(w, http.StatusBadGateway, "answer generation failed")
		return
	}

	rec, err := persistAnswer(ctx, st, req.Query, req.UserID, res.Raw)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Query:     rec.Query,
		Slug:      rec.SlugValue(),
		Cached:    false,
		Response:  json.RawMessage(rec.Result),
		CreatedAt: rec.CreatedAt,
	})
}

// persistAnswer allocates a slug and completes the search row, retrying once
// when a concurrent writer claims the slug first.
func persistAnswer(ctx context.Context, st store.Store, query, userID string, raw json.RawMessage) (*store.SearchRecord, error) {
	slugs, err := st.ListSlugs(ctx)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		taken[s] = struct{}{}
	}

	var rec *store.SearchRecord
	for attempt := 0; attempt < 2; attempt++ {
		slug := study.UniqueSlug(query, taken)
		taken[slug] = struct{}{}
		rec, err = st.CompleteSearch(ctx, query, userID, slug, datatypes.JSON(raw))
		if !errors.Is(err, store.ErrDuplicateSlug) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (e *SearchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a study search",
		Long: `Run a study search against the server.

Returns the cached answer when the question has been answered before,
otherwise generates, persists, and returns a fresh one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SearchResponse
			err := client.Post(cmd.Context(), "/api/search", SearchRequest{Query: args[0], UserID: userID}, &resp)
			if err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "opaque user id recorded on the search")
	return cmd
}
