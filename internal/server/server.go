package server

import (
	"time"

	"claimsync/internal/auth"
	"claimsync/internal/config"
	"claimsync/internal/handlers"
	"claimsync/internal/ingest"
	"claimsync/internal/nightly"
	"claimsync/internal/review"
	"claimsync/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Server represents the application server
type Server struct {
	echo    *echo.Echo
	db      *sqlx.DB
	config  *config.Config
	logger  zerolog.Logger
	store   *store.Store
	runner  *ingest.Orchestrator
	router  *review.Router
	trigger nightly.Trigger
	auth    *auth.Manager
}

// New creates a new server instance
func New(cfg *config.Config, db *sqlx.DB, st *store.Store, runner *ingest.Orchestrator, router *review.Router, trigger nightly.Trigger, logger zerolog.Logger) *Server {
	return &Server{
		config:  cfg,
		db:      db,
		logger:  logger,
		store:   st,
		runner:  runner,
		router:  router,
		trigger: trigger,
		auth:    auth.NewManager(cfg),
	}
}

// zerologMiddleware creates a zerolog-based logging middleware for Echo
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			s.logger.Info().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	// Middleware
	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	// Hide Echo banner
	s.echo.HideBanner = true

	// Setup routes
	s.setupRoutes()
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	// API group with /api prefix
	api := s.echo.Group("/api")

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Health endpoints (keep at root level for monitoring)
	s.echo.GET("/healthz", handlers.HealthHandler(s.config.Version))
	s.echo.GET("/healthz/db", handlers.DBHealthHandler(s.db))

	// API endpoints under /api prefix
	api.GET("/", handlers.RootHandler(s.config.Version))

	// Ingestion runs
	api.POST("/claims/:claimID/ingestion-runs", handlers.TriggerIngestionRunHandler(s.runner))
	api.GET("/claims/:claimID/ingestion-runs", handlers.ListIngestionRunsHandler(s.store))

	// Timeline and evidence
	api.GET("/claims/:claimID/timeline", handlers.TimelineHandler(s.store))
	api.GET("/claims/:claimID/evidence", handlers.EvidenceHandler(s.store))

	// Review queue
	api.GET("/claims/:claimID/review-queue", handlers.ReviewQueueHandler(s.store))
	api.POST("/review-queue/:itemID/resolve", handlers.ResolveReviewHandler(s.router))

	// Admin endpoints behind token auth
	api.POST("/admin/login", handlers.AdminLoginHandler(s.auth))
	admin := api.Group("/admin", auth.Middleware(s.auth))
	admin.POST("/trigger-nightly-sync", handlers.TriggerNightlySyncHandler(s.trigger))
	admin.GET("/sync-status/:jobName", handlers.NightlySyncJobStatusHandler(s.config.KubernetesNamespace))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")
	return s.echo.Start(":" + s.config.Port)
}
