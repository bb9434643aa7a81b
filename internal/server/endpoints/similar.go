package endpoints

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/svcctx"
)

const (
	similarCandidatePool = 100
	similarTopicCount    = 5
)

// SimilarTopic is one suggested topic with its overlap score.
type SimilarTopic struct {
	Query string  `json:"query"`
	Slug  string  `json:"slug"`
	Score float64 `json:"score"`
}

// SimilarTopicsResponse is the response for GET /api/topics/similar.
type SimilarTopicsResponse struct {
	Topics []SimilarTopic `json:"topics"`
}

// SimilarTopicsEndpoint handles GET /api/topics/similar?q=. Suggestions are
// scored by word overlap against the most recent completed queries.
type SimilarTopicsEndpoint struct{}

func (e *SimilarTopicsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/topics/similar", e.handler
}

func (e *SimilarTopicsEndpoint) RequiresInit() bool { return true }

func (e *SimilarTopicsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	recs, err := svcctx.StoreFrom(r.Context()).ListCompleted(r.Context(), similarCandidatePool, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	queryTokens := tokenize(q)
	var topics []SimilarTopic
	for _, rec := range recs {
		if strings.EqualFold(rec.Query, q) {
			continue
		}
		score := overlapScore(queryTokens, tokenize(rec.Query))
		if score == 0 {
			continue
		}
		topics = append(topics, SimilarTopic{
			Query: rec.Query,
			Slug:  rec.SlugValue(),
			Score: score,
		})
	}

	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Score > topics[j].Score })
	if len(topics) > similarTopicCount {
		topics = topics[:similarTopicCount]
	}
	if topics == nil {
		topics = []SimilarTopic{}
	}
	writeJSON(w, http.StatusOK, SimilarTopicsResponse{Topics: topics})
}

// tokenize lowercases and splits a query into a word set.
func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) > 2 {
			tokens[word] = struct{}{}
		}
	}
	return tokens
}

// overlapScore is the Jaccard index of two token sets.
func overlapScore(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

func (e *SimilarTopicsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "similar <query>",
		Short: "Suggest topics similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SimilarTopicsResponse
			if err := client.Get(cmd.Context(), "/api/topics/similar?q="+url.QueryEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
