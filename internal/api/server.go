package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"trading-engine/internal/backtest"
	"trading-engine/internal/confluence"
	"trading-engine/internal/database"
	"trading-engine/internal/events"
	"trading-engine/internal/learning"
	"trading-engine/internal/signal"
)

// RateLimiter provides simple in-memory rate limiting per client
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ProductionMode bool   `json:"production_mode"`
}

// Server exposes the analysis pipeline, backtests and the learning loop
// over HTTP. Persistence is optional; a nil repository disables it.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	confluence  *confluence.Engine
	generator   *signal.Generator
	backtester  *backtest.Engine
	learner     *learning.OnlineLearner
	mistakes    *learning.MistakeTracker
	performance *learning.PerformanceTracker
	repo        *database.Repository
	stateStore  *database.TrackerStateStore
	eventBus    *events.EventBus

	rateLimiter *RateLimiter
	config      ServerConfig
	logger      zerolog.Logger
}

// Deps bundles the collaborators the server dispatches to
type Deps struct {
	Confluence  *confluence.Engine
	Generator   *signal.Generator
	Backtester  *backtest.Engine
	Learner     *learning.OnlineLearner
	Mistakes    *learning.MistakeTracker
	Performance *learning.PerformanceTracker
	Repo        *database.Repository
	StateStore  *database.TrackerStateStore
	EventBus    *events.EventBus
}

// NewServer creates the HTTP server and wires the routes
func NewServer(config ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		confluence:  deps.Confluence,
		generator:   deps.Generator,
		backtester:  deps.Backtester,
		learner:     deps.Learner,
		mistakes:    deps.Mistakes,
		performance: deps.Performance,
		repo:        deps.Repo,
		stateStore:  deps.StateStore,
		eventBus:    deps.EventBus,
		rateLimiter: NewRateLimiter(120, time.Minute),
		config:      config,
		logger:      logger.With().Str("component", "api").Logger(),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(s.rateLimit())

	router.GET("/health", s.handleHealth)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/analyze", s.handleAnalyze)
		apiGroup.POST("/signal", s.handleSignal)
		apiGroup.POST("/backtest", s.handleBacktest)
		apiGroup.POST("/outcome", s.handleOutcome)
		apiGroup.GET("/performance", s.handlePerformance)
		apiGroup.POST("/performance/resume", s.handleResume)
		apiGroup.GET("/mistakes", s.handleMistakes)
		apiGroup.GET("/backtests", s.handleBacktestRuns)
	}

	s.router = router
	return s
}

// Start begins serving. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("api server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
