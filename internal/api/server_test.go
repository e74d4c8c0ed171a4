package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feedbrief/internal/cache"
	"feedbrief/internal/config"
	"feedbrief/internal/logging"
	"feedbrief/internal/models"
	"feedbrief/internal/pipeline"
	"feedbrief/internal/poller"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	result pipeline.Result
	err    error
	calls  int
}

func (r *fakeRunner) Run(ctx context.Context) (pipeline.Result, error) {
	r.calls++
	return r.result, r.err
}

type fakeReader struct {
	articles  []models.ProcessedArticle
	listErr   error
	pingErr   error
	listCalls int
	lastLimit int
}

func (f *fakeReader) ListRecent(ctx context.Context, limit int) ([]models.ProcessedArticle, error) {
	f.listCalls++
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.articles) {
		return f.articles[:limit], nil
	}
	return f.articles, nil
}

func (f *fakeReader) Count(ctx context.Context) (int, error) {
	return len(f.articles), nil
}

func (f *fakeReader) Ping(ctx context.Context) error {
	return f.pingErr
}

func testConfig() *config.Config {
	return &config.Config{
		Port:          8080,
		CronSecret:    "s3cret",
		FeedsCacheTTL: time.Minute,
		Pipeline:      config.PipelineConfig{MaxArticles: 200, MaxPerRun: 10},
		Sources:       config.DefaultSources(),
	}
}

func sampleArticles(n int) []models.ProcessedArticle {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	articles := make([]models.ProcessedArticle, n)
	for i := range articles {
		link := fmt.Sprintf("https://example.com/%d", i)
		articles[i] = models.ProcessedArticle{
			ID:              fmt.Sprintf("id-%d", i),
			OriginalTitle:   fmt.Sprintf("Title %d", i),
			TranslatedTitle: fmt.Sprintf("제목 %d", i),
			Link:            link,
			PublishedAt:     base.Add(-time.Duration(i) * time.Hour),
			SourceName:      "Wired",
			SummaryBullets:  []string{"one", "two", "three"},
			CreatedAt:       base,
		}
	}
	return articles
}

type harness struct {
	server *Server
	runner *fakeRunner
	reader *fakeReader
	cache  *cache.FeedsCache
}

func newHarness(cfg *config.Config, p *poller.Poller) *harness {
	h := &harness{
		runner: &fakeRunner{},
		reader: &fakeReader{articles: sampleArticles(3)},
		cache:  cache.NewFeedsCache(cfg.FeedsCacheTTL),
	}
	h.server = NewServer(h.runner, h.reader, p, h.cache, cfg, logging.Discard())
	return h
}

func (h *harness) do(method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(testConfig(), nil)

	w := h.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "feedbrief", body["service"])
	assert.Equal(t, "ok", body["store"])
	assert.Equal(t, false, body["poller_active"])
	assert.Equal(t, false, body["ai_configured"])
	assert.EqualValues(t, 3, body["articles"])
	assert.NotContains(t, body, "last_run")
}

func TestHealthCheck_StoreDown(t *testing.T) {
	h := newHarness(testConfig(), nil)
	h.reader.pingErr = errors.New("connection refused")

	w := h.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "connection refused", body["store"])
}

func TestHealthCheck_ReportsPoller(t *testing.T) {
	runner := &fakeRunner{result: pipeline.Result{Processed: 2, Total: 5}}
	p := poller.New(runner, time.Hour, nil, logging.Discard())
	p.Start()
	defer p.Stop()
	require.Eventually(t, func() bool {
		_, ok := p.LastRun()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	h := newHarness(testConfig(), p)
	body := decode[map[string]any](t, h.do(http.MethodGet, "/health", ""))

	assert.Equal(t, true, body["poller_active"])
	lastRun, ok := body["last_run"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, lastRun["processed"])
	assert.EqualValues(t, 5, lastRun["total"])
}

func TestRunIngestion(t *testing.T) {
	h := newHarness(testConfig(), nil)
	h.runner.result = pipeline.Result{Processed: 10, Total: 200, New: 15}

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := h.do(method, "/api/cron", "Bearer s3cret")
		require.Equal(t, http.StatusOK, w.Code, method)

		resp := decode[models.RunResponse](t, w)
		assert.Equal(t, "Cron completed", resp.Message)
		assert.Equal(t, 10, resp.Processed)
		assert.Equal(t, 200, resp.Total)
	}
	assert.Equal(t, 2, h.runner.calls)
}

func TestRunIngestion_NoNewArticles(t *testing.T) {
	h := newHarness(testConfig(), nil)
	h.runner.result = pipeline.Result{Total: 42, Stage: pipeline.StageDone}

	w := h.do(http.MethodGet, "/api/cron", "Bearer s3cret")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.RunResponse](t, w)
	assert.Equal(t, "No new articles", resp.Message)
	assert.Equal(t, 0, resp.Processed)
}

func TestRunIngestion_Unauthorized(t *testing.T) {
	h := newHarness(testConfig(), nil)

	for _, auth := range []string{"", "Bearer wrong", "s3cret"} {
		w := h.do(http.MethodGet, "/api/cron", auth)
		assert.Equal(t, http.StatusUnauthorized, w.Code, auth)
		assert.Equal(t, "Unauthorized", decode[models.ErrorResponse](t, w).Error)
	}
	assert.Zero(t, h.runner.calls, "rejected triggers never start a run")
}

func TestRunIngestion_NoSecretConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.CronSecret = ""
	h := newHarness(cfg, nil)

	w := h.do(http.MethodGet, "/api/cron", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, h.runner.calls)
}

func TestRunIngestion_Failure(t *testing.T) {
	h := newHarness(testConfig(), nil)
	h.runner.err = &pipeline.RunError{Stage: pipeline.StagePersisting, Err: errors.New("disk full")}

	w := h.do(http.MethodGet, "/api/cron", "Bearer s3cret")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decode[models.ErrorResponse](t, w)
	assert.Equal(t, "Cron failed", resp.Error)
	assert.Equal(t, "PERSISTING: disk full", resp.Details)
}

func TestGetFeeds(t *testing.T) {
	h := newHarness(testConfig(), nil)

	w := h.do(http.MethodGet, "/api/feeds", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))

	resp := decode[models.FeedsResponse](t, w)
	require.Len(t, resp.Articles, 3)
	assert.Equal(t, 3, resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.Processed)
	assert.False(t, resp.Meta.Timestamp.IsZero())
	assert.Equal(t, "id-0", resp.Articles[0].ID)
	assert.Equal(t, 200, h.reader.lastLimit)

	// the raw payload uses the client field names
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(mustField(t, w, "articles"), &raw))
	assert.Equal(t, "제목 0", raw[0]["titleKo"])
	assert.Contains(t, raw[0], "originalTitle")
	assert.Contains(t, raw[0], "pubDate")
}

func TestGetFeeds_Cached(t *testing.T) {
	h := newHarness(testConfig(), nil)

	h.do(http.MethodGet, "/api/feeds", "")
	h.do(http.MethodGet, "/api/feeds", "")
	assert.Equal(t, 1, h.reader.listCalls)

	// a run that stored articles drops the cached payload
	h.runner.result = pipeline.Result{Processed: 1, New: 1, Total: 4}
	h.do(http.MethodGet, "/api/cron", "Bearer s3cret")
	h.do(http.MethodGet, "/api/feeds", "")
	assert.Equal(t, 2, h.reader.listCalls)

	// a run with nothing new keeps it
	h.runner.result = pipeline.Result{Total: 4}
	h.do(http.MethodGet, "/api/cron", "Bearer s3cret")
	h.do(http.MethodGet, "/api/feeds", "")
	assert.Equal(t, 2, h.reader.listCalls)
}

func TestGetFeeds_CacheDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.FeedsCacheTTL = 0
	h := newHarness(cfg, nil)

	w := h.do(http.MethodGet, "/api/feeds", "")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	h.do(http.MethodGet, "/api/feeds", "")
	assert.Equal(t, 2, h.reader.listCalls)
}

func TestGetFeeds_Limit(t *testing.T) {
	h := newHarness(testConfig(), nil)

	w := h.do(http.MethodGet, "/api/feeds?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.FeedsResponse](t, w)
	assert.Len(t, resp.Articles, 2)
	assert.Equal(t, 2, resp.Meta.Total)

	// limits above the retention cap are clamped
	h.do(http.MethodGet, "/api/feeds?limit=5000", "")
	assert.Equal(t, 200, h.reader.lastLimit)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/feeds?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/feeds?limit=abc", "").Code)
}

func TestGetFeeds_EmptyStore(t *testing.T) {
	h := newHarness(testConfig(), nil)
	h.reader.articles = nil

	w := h.do(http.MethodGet, "/api/feeds", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(mustField(t, w, "articles")))
}

func TestGetFeeds_StoreFailure(t *testing.T) {
	h := newHarness(testConfig(), nil)
	h.reader.listErr = errors.New("relation does not exist")

	w := h.do(http.MethodGet, "/api/feeds", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch feeds"}`, w.Body.String())

	// failures are not cached
	h.reader.listErr = nil
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/feeds", "").Code)
}

func TestGetSources(t *testing.T) {
	h := newHarness(testConfig(), nil)

	w := h.do(http.MethodGet, "/api/sources", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Sources []models.FeedSource `json:"sources"`
		Count   int                 `json:"count"`
	}](t, w)
	assert.Len(t, body.Sources, 6)
	assert.Equal(t, 6, body.Count)
	assert.Equal(t, "TechCrunch", body.Sources[0].Name)
	assert.Equal(t, "startups", body.Sources[0].Category)
}

func TestSwaggerRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.EnableSwagger = true
	h := newHarness(cfg, nil)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/swagger/doc.json", "").Code)

	h = newHarness(testConfig(), nil)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/swagger/doc.json", "").Code)
}

// blockingRunner holds a run open until released
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) (pipeline.Result, error) {
	close(r.started)
	<-r.release
	return pipeline.Result{Processed: 1, New: 1, Total: 1}, nil
}

func TestShutdown_WaitsForIngestionRun(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	cfg := testConfig()
	cfg.CronSecret = ""
	server := NewServer(runner, &fakeReader{}, nil, cache.NewFeedsCache(time.Minute), cfg, logging.Discard())

	finished := make(chan int)
	go func() {
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cron", nil))
		finished <- w.Code
	}()
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, server.Shutdown(ctx), context.DeadlineExceeded, "a run is still in flight")

	close(runner.release)
	assert.NoError(t, server.Shutdown(context.Background()))
	assert.Equal(t, http.StatusOK, <-finished)
}

func TestShutdownBeforeStart(t *testing.T) {
	h := newHarness(testConfig(), nil)
	assert.NoError(t, h.server.Shutdown(context.Background()))
}

func mustField(t *testing.T, w *httptest.ResponseRecorder, name string) json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fields))
	return fields[name]
}
