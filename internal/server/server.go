// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mbd888/amlscope/internal/config"
	"github.com/mbd888/amlscope/internal/features"
	"github.com/mbd888/amlscope/internal/health"
	"github.com/mbd888/amlscope/internal/history"
	"github.com/mbd888/amlscope/internal/logging"
	"github.com/mbd888/amlscope/internal/metrics"
	"github.com/mbd888/amlscope/internal/model"
	"github.com/mbd888/amlscope/internal/ratelimit"
	"github.com/mbd888/amlscope/internal/realtime"
	"github.com/mbd888/amlscope/internal/scoring"
	"github.com/mbd888/amlscope/internal/security"
	"github.com/mbd888/amlscope/internal/traces"
	"github.com/mbd888/amlscope/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg            *config.Config
	artifacts      *model.Artifacts
	classifier     model.Classifier
	engine         *scoring.Engine
	historyStore   history.Store
	mirror         *history.FileMirror
	realtimeHub    *realtime.Hub
	healthReg      *health.Registry
	rateLimiter    *ratelimit.Limiter
	db             *sql.DB // nil if using in-memory
	router         *gin.Engine
	httpSrv        *http.Server
	logger         *slog.Logger
	cancelRunCtx   context.CancelFunc         // cancels background goroutines started in Run
	shutdownTraces func(context.Context) error // nil until Run initializes tracing

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClassifier sets a custom classifier (for testing)
func WithClassifier(c model.Classifier) Option {
	return func(s *Server) {
		s.classifier = c
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set classifier/logger)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		pgStore := history.NewPostgresStore(db)
		if err := pgStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate history store", "error", err)
		}
		s.historyStore = pgStore
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.historyStore = history.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Optional CSV mirror of the prediction history
	if cfg.HistoryFile != "" {
		s.mirror = history.NewFileMirror(cfg.HistoryFile)

		// Reload prior sessions into the in-memory store. The Postgres
		// store already persists, so only demo mode preloads.
		if s.db == nil {
			records, err := s.mirror.ReadAll()
			if err != nil {
				s.logger.Warn("failed to read history file", "path", cfg.HistoryFile, "error", err)
			} else {
				for _, rec := range records {
					if err := s.historyStore.Append(ctx, rec); err != nil {
						s.logger.Warn("failed to preload history record", "id", rec.ID, "error", err)
						break
					}
				}
				s.logger.Info("history preloaded from file", "path", cfg.HistoryFile, "records", len(records))
			}
		}

		s.historyStore = history.NewMirroredStore(s.historyStore, s.mirror, func(err error) {
			s.logger.Warn("history file mirror error", "path", cfg.HistoryFile, "error", err)
		})
	}

	// Load model artifacts. A missing or malformed artifact is fatal:
	// the service must never score with a guessed configuration.
	dir := cfg.ModelDir
	if dir == "" {
		found, err := model.Discover()
		if err != nil {
			return nil, fmt.Errorf("failed to locate model artifacts: %w", err)
		}
		dir = found
	}
	artifacts, err := model.LoadArtifacts(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load model artifacts: %w", err)
	}
	s.artifacts = artifacts
	s.logger.Info("model artifacts loaded",
		"dir", dir,
		"model", artifacts.Config.ModelName,
		"version", artifacts.Config.ModelVersion,
		"threshold", artifacts.Config.OptimalThreshold,
	)

	// Classifier defaults to the HTTP inference sidecar
	if s.classifier == nil {
		s.classifier = model.NewHTTPClassifier(cfg.ModelEndpoint)
	}

	// Create realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(logging.Component(s.logger, "realtime"))

	// Scoring engine
	s.engine = scoring.NewEngine(s.artifacts, s.classifier, s.historyStore, logging.Component(s.logger, "scoring")).
		WithEmitter(&hubEmitter{s.realtimeHub})
	if cfg.Threshold > 0 {
		s.engine = s.engine.WithThreshold(cfg.Threshold)
		s.logger.Info("threshold override active",
			"threshold", cfg.Threshold,
			"optimal", artifacts.Config.OptimalThreshold,
		)
	}

	// Health checks
	s.healthReg = health.NewRegistry()
	s.healthReg.Register("model_endpoint", health.EndpointChecker("model_endpoint", cfg.ModelEndpoint))
	if s.db != nil {
		s.healthReg.Register("database", health.DatabaseChecker("database", s.db))
	}

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/healthz", s.healthHandler)
	s.router.GET("/readyz", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Service card
	s.router.GET("/", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	// Scoring
	scoringHandler := scoring.NewHandler(s.engine)
	scoringHandler.RegisterRoutes(v1)

	// Prediction history
	historyHandler := history.NewHandler(s.historyStore).
		WithEvents(s.realtimeHub.BroadcastHistoryCleared)
	historyHandler.RegisterRoutes(v1)

	// Model metadata
	modelHandler := model.NewHandler(s.artifacts, s.engine.Threshold())
	modelHandler.RegisterRoutes(v1)

	// WebSocket for real-time streaming
	v1.GET("/stream", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})
	v1.GET("/stream/stats", s.streamStatsHandler)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.healthReg.CheckAll(ctx)

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Amlscope",
		"description": "Transaction risk scoring for AML investigation",
		"model":       s.artifacts.Config.ModelName,
		"version":     s.artifacts.Config.ModelVersion,
		"threshold":   s.engine.Threshold(),
	})
}

func (s *Server) streamStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.realtimeHub.Stats())
}

// -----------------------------------------------------------------------------
// Realtime adapter
// -----------------------------------------------------------------------------

// hubEmitter forwards completed assessments to WebSocket subscribers.
type hubEmitter struct {
	hub *realtime.Hub
}

func (e *hubEmitter) ScoreEvaluated(a *scoring.Assessment, tx *features.Transaction) {
	e.hub.BroadcastScore(map[string]interface{}{
		"id":            a.ID,
		"scoredAt":      a.ScoredAt,
		"verdict":       string(a.Verdict),
		"probability":   a.Probability,
		"threshold":     a.Threshold,
		"amount":        tx.Amount,
		"currency":      string(tx.PaymentCurrency),
		"paymentFormat": string(tx.PaymentFormat),
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op when OTEL_EXPORTER_OTLP_ENDPOINT is unset)
	shutdownTraces, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.shutdownTraces = shutdownTraces
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"model_endpoint", s.cfg.ModelEndpoint,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Export connection pool gauges
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, collectors)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	if s.cfg.IsProduction() {
		time.Sleep(5 * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	// Flush traces
	if s.shutdownTraces != nil {
		if err := s.shutdownTraces(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
