package endpoints

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/internal/config"
	"github.com/berea-study/berea/internal/generation"
	"github.com/berea-study/berea/internal/llmcall"
	"github.com/berea-study/berea/internal/providers"
	"github.com/berea-study/berea/internal/store"
	"github.com/berea-study/berea/internal/svcctx"
)

const (
	testAdminToken = "test-admin-token"
	testCronSecret = "test-cron-secret"
)

func testCfg() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Admin.Token = testAdminToken
	cfg.Cron.Secret = testCronSecret
	cfg.Generation.MaxBatchRetries = 1
	cfg.Generation.Parallelism = 1
	return cfg
}

// newTestServer wires the endpoint stack on an in-memory store.
func newTestServer(t *testing.T, cfg *config.Config, st store.Store, client providers.LLMClient) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := providers.NewRegistry()
	registry.SetLogger(logger)
	if client != nil {
		registry.RegisterLLM("mock", client)
	}

	mgr := config.NewStaticManager(cfg)
	recorder := llmcall.NewRecorder(st, logger)
	controller := generation.NewController(st, registry, recorder,
		func() config.GenerationCfg { return mgr.Get().Generation }, logger)

	services := &svcctx.Services{
		Store:      st,
		Registry:   registry,
		Controller: controller,
		Recorder:   recorder,
		ConfigMgr:  mgr,
		Logger:     logger,
	}

	reg := api.NewRegistry()
	for _, ep := range All() {
		reg.Register(ep)
	}
	mux := http.NewServeMux()
	reg.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc { return next })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func seedCompleted(t *testing.T, st store.Store, query, slug string) {
	t.Helper()
	s := slug
	err := st.InsertCompleted(t.Context(), &store.SearchRecord{
		Query:  query,
		Slug:   &s,
		Result: datatypes.JSON(`{"isRelevant":true,"content":{"literalAnswer":"x"}}`),
		UserID: "system",
	})
	if err != nil {
		t.Fatalf("seed %q failed: %v", query, err)
	}
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAdminToken}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, testCfg(), store.NewMemoryStore(), nil)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/ready", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/ready status = %d: %s", resp.StatusCode, body)
	}
}

func TestStatusIncludesGeneration(t *testing.T) {
	st := store.NewMemoryStore()
	if err := st.StartRun(t.Context(), 42, "admin", time.Now()); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, testCfg(), st, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/status", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status status = %d", resp.StatusCode)
	}
	var status StatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if !status.Generation.IsGenerating || status.Generation.Target != 42 {
		t.Errorf("generation status = %+v", status.Generation)
	}
}

func TestSearchCachedHit(t *testing.T) {
	st := store.NewMemoryStore()
	seedCompleted(t, st, "Who was Boaz?", "who-was-boaz")
	mock := providers.NewMockClient()
	srv := newTestServer(t, testCfg(), st, mock)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/search",
		SearchRequest{Query: "who was boaz?"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var sr SearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		t.Fatal(err)
	}
	if !sr.Cached || sr.Slug != "who-was-boaz" {
		t.Errorf("response = %+v, want cached hit", sr)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("cached search made %d provider calls", mock.RequestCount())
	}
}

func TestSearchGeneratesAndPersists(t *testing.T) {
	st := store.NewMemoryStore()
	mock := providers.NewMockClient()
	mock.Enqueue(`{"isRelevant": false, "refusalMessage": "not biblical"}`)
	srv := newTestServer(t, testCfg(), st, mock)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/search",
		SearchRequest{Query: "Who was Boaz?", UserID: "u1"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var sr SearchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		t.Fatal(err)
	}
	if sr.Cached || sr.Slug == "" {
		t.Errorf("response = %+v, want fresh answer with slug", sr)
	}

	// Persisted: a second search is a cache hit.
	rec, err := st.FindCompletedByQuery(t.Context(), "Who was Boaz?")
	if err != nil {
		t.Fatalf("answer not persisted: %v", err)
	}
	if rec.UserID != "u1" {
		t.Errorf("user = %q", rec.UserID)
	}
}

func TestSearchValidation(t *testing.T) {
	srv := newTestServer(t, testCfg(), store.NewMemoryStore(), providers.NewMockClient())

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/search", SearchRequest{Query: "  "}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank query status = %d, want 400", resp.StatusCode)
	}
}

func TestSearchRateLimited(t *testing.T) {
	mock := providers.NewMockClient()
	mock.EnqueueError(&providers.RateLimitError{})
	srv := newTestServer(t, testCfg(), store.NewMemoryStore(), mock)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/search",
		SearchRequest{Query: "Who was Boaz?"}, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestTrackSearch(t *testing.T) {
	st := store.NewMemoryStore()
	srv := newTestServer(t, testCfg(), st, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/track",
		TrackRequest{Query: "Who was Boaz?"}, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	n, _ := st.CountCompleted(t.Context())
	if n != 0 {
		t.Error("tracked row must not count as completed")
	}
}

func TestQuestionsListAndGet(t *testing.T) {
	st := store.NewMemoryStore()
	seedCompleted(t, st, "Who was Boaz?", "who-was-boaz")
	seedCompleted(t, st, "What is the Sabbath?", "meaning-of-sabbath")
	srv := newTestServer(t, testCfg(), st, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/questions?limit=1", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list ListQuestionsResponse
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Questions) != 1 || list.Total != 2 {
		t.Errorf("list = %+v", list)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/questions/who-was-boaz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var q QuestionResponse
	if err := json.Unmarshal(body, &q); err != nil {
		t.Fatal(err)
	}
	if q.Query != "Who was Boaz?" || len(q.Response) == 0 {
		t.Errorf("question = %+v", q)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/questions/missing", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing slug status = %d, want 404", resp.StatusCode)
	}
}

func TestSimilarTopics(t *testing.T) {
	st := store.NewMemoryStore()
	seedCompleted(t, st, "Who was the prophet Elijah?", "who-was-prophet-elijah")
	seedCompleted(t, st, "Who was the prophet Elisha?", "who-was-prophet-elisha")
	seedCompleted(t, st, "What is the Sabbath?", "meaning-of-sabbath")
	srv := newTestServer(t, testCfg(), st, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/topics/similar?q=prophet+Elijah", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var topics SimilarTopicsResponse
	if err := json.Unmarshal(body, &topics); err != nil {
		t.Fatal(err)
	}
	if len(topics.Topics) == 0 {
		t.Fatal("no similar topics returned")
	}
	if topics.Topics[0].Query != "Who was the prophet Elijah?" {
		t.Errorf("top topic = %+v", topics.Topics[0])
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/topics/similar", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", resp.StatusCode)
	}
}

func TestSitemap(t *testing.T) {
	st := store.NewMemoryStore()
	seedCompleted(t, st, "Who was Boaz?", "who-was-boaz")
	srv := newTestServer(t, testCfg(), st, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/sitemap", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var sm SitemapResponse
	if err := json.Unmarshal(body, &sm); err != nil {
		t.Fatal(err)
	}
	if sm.Total != 1 || len(sm.Entries) != 1 || sm.Entries[0].Slug != "who-was-boaz" {
		t.Errorf("sitemap = %+v", sm)
	}
}

func TestAdminAuthFailClosed(t *testing.T) {
	srv := newTestServer(t, testCfg(), store.NewMemoryStore(), nil)

	// No token.
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/admin/status", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", resp.StatusCode)
	}

	// Wrong token.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/admin/status", nil,
		map[string]string{"Authorization": "Bearer wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", resp.StatusCode)
	}

	// Unconfigured token rejects even a matching guess.
	cfg := testCfg()
	cfg.Admin.Token = ""
	srv2 := newTestServer(t, cfg, store.NewMemoryStore(), nil)
	resp, _ = doJSON(t, http.MethodGet, srv2.URL+"/api/admin/status", nil,
		map[string]string{"Authorization": "Bearer "})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unconfigured token status = %d, want 401", resp.StatusCode)
	}
}

func TestAdminControlLifecycle(t *testing.T) {
	st := store.NewMemoryStore()
	srv := newTestServer(t, testCfg(), st, nil)

	headers := adminHeaders()
	headers["X-Admin-User"] = "operator-7"

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/admin/control",
		ControlRequest{Action: "start", Target: 100}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d: %s", resp.StatusCode, body)
	}

	status, _ := st.GetStatus(t.Context())
	if status.UserID == nil || *status.UserID != "operator-7" {
		t.Errorf("owner = %v, want operator-7", status.UserID)
	}

	// Double start conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/admin/control",
		ControlRequest{Action: "start"}, adminHeaders())
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double start status = %d, want 409", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/admin/control",
		ControlRequest{Action: "stop"}, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stop status = %d", resp.StatusCode)
	}

	// Stop again conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/admin/control",
		ControlRequest{Action: "stop"}, adminHeaders())
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double stop status = %d, want 409", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/admin/control",
		ControlRequest{Action: "reset"}, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Errorf("reset status = %d", resp.StatusCode)
	}

	// Bad action and bad target.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/admin/control",
		ControlRequest{Action: "bounce"}, adminHeaders())
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad action status = %d, want 400", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/admin/control",
		ControlRequest{Action: "start", Target: 999999}, adminHeaders())
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad target status = %d, want 400", resp.StatusCode)
	}
}

func TestAdminStats(t *testing.T) {
	st := store.NewMemoryStore()
	seedCompleted(t, st, "Who was Boaz?", "who-was-boaz")
	srv := newTestServer(t, testCfg(), st, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/admin/stats", nil, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var stats AdminStatsResponse
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalQuestions != 1 || stats.TodayGenerated != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.DailyLimit != testCfg().Generation.DailyLimit {
		t.Errorf("dailyLimit = %d", stats.DailyLimit)
	}
}

func TestAdminDeleteQuestion(t *testing.T) {
	st := store.NewMemoryStore()
	seedCompleted(t, st, "Who was Boaz?", "who-was-boaz")
	rec, err := st.FindBySlug(t.Context(), "who-was-boaz")
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, testCfg(), st, nil)

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/api/admin/questions/"+rec.ID.String(), nil, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/admin/questions/"+rec.ID.String(), nil, adminHeaders())
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/admin/questions/not-a-uuid", nil, adminHeaders())
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", resp.StatusCode)
	}
}

func TestAdminLLMCalls(t *testing.T) {
	st := store.NewMemoryStore()
	if err := st.InsertLLMCall(t.Context(), &store.LLMCall{
		Provider: "gemini", Model: "gemini-2.5-flash", Operation: "answer", Status: "success",
	}); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, testCfg(), st, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/admin/llmcalls", nil, adminHeaders())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var calls LLMCallsResponse
	if err := json.Unmarshal(body, &calls); err != nil {
		t.Fatal(err)
	}
	if len(calls.Calls) != 1 || calls.Calls[0].Operation != "answer" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestCronTickAuth(t *testing.T) {
	srv := newTestServer(t, testCfg(), store.NewMemoryStore(), nil)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/cron/tick", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no secret status = %d, want 401", resp.StatusCode)
	}

	// Unset secret fails closed with 503.
	cfg := testCfg()
	cfg.Cron.Secret = ""
	srv2 := newTestServer(t, cfg, store.NewMemoryStore(), nil)
	resp, _ = doJSON(t, http.MethodPost, srv2.URL+"/api/cron/tick", nil,
		map[string]string{"Authorization": "Bearer anything"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("unset secret status = %d, want 503", resp.StatusCode)
	}
}

func TestCronTickRejectedUnderLoopDriver(t *testing.T) {
	cfg := testCfg()
	cfg.Generation.Driver = generation.DriverLoop
	srv := newTestServer(t, cfg, store.NewMemoryStore(), nil)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/cron/tick", nil,
		map[string]string{"Authorization": "Bearer " + testCronSecret})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestCronTickRuns(t *testing.T) {
	st := store.NewMemoryStore()
	mock := providers.NewMockClient()
	srv := newTestServer(t, testCfg(), st, mock)

	// Idle run: tick reports the skip.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/cron/tick", nil,
		map[string]string{"Authorization": "Bearer " + testCronSecret})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var tick TickResponse
	if err := json.Unmarshal(body, &tick); err != nil {
		t.Fatal(err)
	}
	if !tick.Success || tick.Message != "skipped: "+generation.SkipNotGenerating {
		t.Errorf("tick = %+v", tick)
	}
}
