// Package api exposes the scoring and transfer operations over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clingen-curation-server/internal/audit"
	"github.com/clingen-curation-server/internal/domain"
	"github.com/clingen-curation-server/internal/middleware"
	"github.com/clingen-curation-server/internal/transfer"
)

// requestTimeout bounds each API request end to end, including the registry
// round trips a transfer fans out into.
const requestTimeout = 60 * time.Second

// HealthChecker reports the liveness of a downstream dependency.
type HealthChecker func(ctx context.Context) error

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	engine        *transfer.Engine
	auditStore    audit.Store
	healthChecks  map[string]HealthChecker
	log           *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(
	configManager domain.ConfigManager,
	engine *transfer.Engine,
	auditStore audit.Store,
	healthChecks map[string]HealthChecker,
	log *logrus.Logger,
) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(requestTimeout))
	router.Use(requestLogger(log))

	server := &Server{
		configManager: configManager,
		engine:        engine,
		auditStore:    auditStore,
		healthChecks:  healthChecks,
		log:           log,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	apiKey := s.configManager.GetServerConfig().APIKey

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(apiKey))
	{
		v1.POST("/scores/derive", s.handleDeriveScore)
		v1.POST("/scores/experimental/derive", s.handleDeriveExperimentalScore)
		v1.POST("/scores/aggregate", s.handleAggregateScores)
		v1.POST("/transfers/plan", s.handlePlanTransfer)
		v1.POST("/transfers", s.handleTransfer)
		v1.GET("/transfers/audit", s.handleListAudit)
	}
}

// handleHealth reports service and dependency health.
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}
	for name, check := range s.healthChecks {
		if err := check(c.Request.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks[name] = "ok"
		}
	}

	healthy := "healthy"
	if status != http.StatusOK {
		healthy = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    healthy,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
	})
}

// requestLogger emits one structured line per request.
func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"status":         c.Writer.Status(),
			"latency":        time.Since(start).String(),
			"client_ip":      c.ClientIP(),
			"correlation_id": c.GetString("correlation_id"),
		}).Info("Request handled")
	}
}
