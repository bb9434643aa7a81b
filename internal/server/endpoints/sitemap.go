package endpoints

import (
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/svcctx"
)

const sitemapPageSize = 500

// SitemapEntry is one URL-worthy record.
type SitemapEntry struct {
	Slug      string    `json:"slug"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SitemapResponse is one page of the sitemap listing.
type SitemapResponse struct {
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int64          `json:"total"`
	Entries  []SitemapEntry `json:"entries"`
}

// SitemapEndpoint handles GET /api/sitemap?page=. Pages are zero-based.
type SitemapEndpoint struct{}

func (e *SitemapEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sitemap", e.handler
}

func (e *SitemapEndpoint) RequiresInit() bool { return true }

func (e *SitemapEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	if page < 0 {
		page = 0
	}

	ctx := r.Context()
	st := svcctx.StoreFrom(ctx)

	recs, err := st.ListCompleted(ctx, sitemapPageSize, page*sitemapPageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := st.CountCompleted(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := SitemapResponse{
		Page:     page,
		PageSize: sitemapPageSize,
		Total:    total,
		Entries:  make([]SitemapEntry, 0, len(recs)),
	}
	for _, rec := range recs {
		resp.Entries = append(resp.Entries, SitemapEntry{
			Slug:      rec.SlugValue(),
			UpdatedAt: rec.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *SitemapEndpoint) Command(getServerURL func() string) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "List slugs for sitemap assembly",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SitemapResponse
			if err := client.Get(cmd.Context(), "/api/sitemap?page="+strconv.Itoa(page), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page")
	return cmd
}
