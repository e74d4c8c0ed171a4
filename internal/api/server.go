package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	_ "feedbrief/docs"
	"feedbrief/internal/cache"
	"feedbrief/internal/config"
	"feedbrief/internal/models"
	"feedbrief/internal/pipeline"
	"feedbrief/internal/poller"
	"feedbrief/internal/security"
	"feedbrief/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	serviceName = "feedbrief"

	storeCheckTimeout = 5 * time.Second
)

// Runner performs one ingestion run
type Runner interface {
	Run(ctx context.Context) (pipeline.Result, error)
}

// ArticleReader is the read side of the store the API needs
type ArticleReader interface {
	ListRecent(ctx context.Context, limit int) ([]models.ProcessedArticle, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

type Server struct {
	router        *gin.Engine
	httpServer    *http.Server
	runner        Runner
	store         ArticleReader
	poller        *poller.Poller
	feedsCache    *cache.FeedsCache
	sources       []models.FeedSource
	maxArticles   int
	aiConfigured  bool
	port          int
	swaggerServer *web.SwaggerServer
	log           logrus.FieldLogger

	// ingestion runs started by the trigger endpoint
	runs sync.WaitGroup
}

// NewServer wires the HTTP routes. p may be nil when scheduled polling is off.
func NewServer(runner Runner, store ArticleReader, p *poller.Poller, feedsCache *cache.FeedsCache, cfg *config.Config, log logrus.FieldLogger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	security.SetupSecurityMiddleware(router, cfg.Security, log)

	maxArticles := cfg.Pipeline.MaxArticles
	if maxArticles <= 0 {
		maxArticles = pipeline.DefaultMaxArticles
	}

	server := &Server{
		router:        router,
		runner:        runner,
		store:         store,
		poller:        p,
		feedsCache:    feedsCache,
		sources:       cfg.Sources,
		maxArticles:   maxArticles,
		aiConfigured:  cfg.AI.APIKey != "",
		port:          cfg.Port,
		swaggerServer: web.NewSwaggerServer(cfg.EnableSwagger),
		log:           log.WithField("component", "api"),
	}

	server.setupRoutes(cfg.CronSecret)
	server.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

func (s *Server) setupRoutes(cronSecret string) {
	// Health check
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api")
	{
		cron := api.Group("/cron", security.CronAuth(cronSecret))
		cron.GET("", s.runIngestion)
		cron.POST("", s.runIngestion)

		api.GET("/feeds", s.getFeeds)
		api.GET("/sources", s.getSources)
	}

	s.swaggerServer.RegisterRoutes(s.router)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.WithField("port", s.port).Info("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then waits for in-flight ingestion
// runs, which outlive their request, until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storeCheckTimeout)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":        "healthy",
		"service":       serviceName,
		"store":         "ok",
		"ai_configured": s.aiConfigured,
		"poller_active": s.poller.IsPolling(),
	}

	if err := s.store.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["store"] = err.Error()
	} else if count, err := s.store.Count(ctx); err == nil {
		body["articles"] = count
	}

	if lastRun, ok := s.poller.LastRun(); ok {
		body["last_run"] = lastRun
	}

	c.JSON(status, body)
}

// runIngestion handles the scheduled trigger
func (s *Server) runIngestion(c *gin.Context) {
	// the run finishes even if the scheduler hangs up
	ctx := context.WithoutCancel(c.Request.Context())
	s.runs.Add(1)
	defer s.runs.Done()

	result, err := s.runner.Run(ctx)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Cron failed",
			Details: err.Error(),
		})
		return
	}

	if result.Processed > 0 {
		s.feedsCache.Invalidate()
	}

	message := "Cron completed"
	if result.New == 0 {
		message = "No new articles"
	}

	c.JSON(http.StatusOK, models.RunResponse{
		Message:   message,
		Processed: result.Processed,
		Total:     result.Total,
	})
}

func (s *Server) getFeeds(c *gin.Context) {
	limit := s.maxArticles
	custom := false
	if raw := c.Query("limit"); raw != "" {
		// the security middleware already rejected non-positive values
		if n, err := strconv.Atoi(raw); err == nil && n < limit {
			limit = n
			custom = true
		}
	}

	if !custom {
		if cached, found := s.feedsCache.Get(); found {
			s.setCacheHeaders(c)
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	articles, err := s.store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to fetch feeds"})
		return
	}
	if articles == nil {
		articles = []models.ProcessedArticle{}
	}

	resp := models.FeedsResponse{
		Articles: articles,
		Meta: models.FeedsMeta{
			Total:     len(articles),
			Processed: len(articles),
			Timestamp: time.Now().UTC(),
		},
	}

	if !custom {
		s.feedsCache.Set(resp)
	}

	s.setCacheHeaders(c)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sources": s.sources,
		"count":   len(s.sources),
	})
}

func (s *Server) setCacheHeaders(c *gin.Context) {
	if !s.feedsCache.Enabled() {
		c.Header("Cache-Control", "no-store")
		return
	}
	c.Header("Cache-Control", "public, max-age="+strconv.Itoa(int(s.feedsCache.TTL().Seconds())))
}
