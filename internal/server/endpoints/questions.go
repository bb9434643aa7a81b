package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/store"
	"github.com/berea-study/berea/internal/svcctx"
)

const (
	defaultQuestionLimit = 50
	maxQuestionLimit     = 100
)

// QuestionSummary is one row in the questions listing.
type QuestionSummary struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// ListQuestionsResponse is the response for GET /api/questions.
type ListQuestionsResponse struct {
	Questions []QuestionSummary `json:"questions"`
	Total     int64             `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// ListQuestionsEndpoint handles GET /api/questions.
type ListQuestionsEndpoint struct{}

func (e *ListQuestionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/questions", e.handler
}

func (e *ListQuestionsEndpoint) RequiresInit() bool { return true }

func (e *ListQuestionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultQuestionLimit)
	if limit < 1 || limit > maxQuestionLimit {
		limit = defaultQuestionLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	ctx := r.Context()
	st := svcctx.StoreFrom(ctx)

	recs, err := st.ListCompleted(ctx, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := st.CountCompleted(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ListQuestionsResponse{
		Questions: make([]QuestionSummary, 0, len(recs)),
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	}
	for _, rec := range recs {
		resp.Questions = append(resp.Questions, QuestionSummary{
			ID:        rec.ID.String(),
			Query:     rec.Query,
			Slug:      rec.SlugValue(),
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListQuestionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List answered questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListQuestionsResponse
			path := "/api/questions?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultQuestionLimit, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	return cmd
}

// QuestionResponse is the full persisted answer for one question.
type QuestionResponse struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	Slug      string          `json:"slug"`
	Response  json.RawMessage `json:"response"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// GetQuestionEndpoint handles GET /api/questions/{slug}.
type GetQuestionEndpoint struct{}

func (e *GetQuestionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/questions/{slug}", e.handler
}

func (e *GetQuestionEndpoint) RequiresInit() bool { return true }

func (e *GetQuestionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "slug is required")
		return
	}

	rec, err := svcctx.StoreFrom(r.Context()).FindBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "question not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, QuestionResponse{
		ID:        rec.ID.String(),
		Query:     rec.Query,
		Slug:      rec.SlugValue(),
		Response:  json.RawMessage(rec.Result),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	})
}

func (e *GetQuestionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <slug>",
		Short: "Get an answered question by slug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp QuestionResponse
			if err := client.Get(cmd.Context(), "/api/questions/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// queryInt parses an integer query parameter, falling back on absence or
// garbage.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
