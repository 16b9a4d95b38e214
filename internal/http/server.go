// Package http provides the status server: health and readiness probes, Prometheus metrics
// and the key rotation status.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	"github.com/allisson/fieldcrypt/internal/httputil"
	"github.com/allisson/fieldcrypt/internal/metrics"
	rotationUseCase "github.com/allisson/fieldcrypt/internal/rotation/usecase"
)

// Server represents the status HTTP server.
type Server struct {
	db       *sql.DB
	server   *http.Server
	router   *gin.Engine
	logger   *slog.Logger
	keyStore cryptoService.KeyStore
	rotation rotationUseCase.RotationUseCase
	keys     rotationUseCase.KeyMetadataRepository
}

// NewServer creates a new status server. db may be nil when no record store is configured.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter registers every route. rotation, keys and metricsProvider may be nil; their
// routes are then not registered.
func (s *Server) SetupRouter(
	keyStore cryptoService.KeyStore,
	rotation rotationUseCase.RotationUseCase,
	keys rotationUseCase.KeyMetadataRepository,
	metricsProvider *metrics.Provider,
	metricsNamespace string,
) {
	s.keyStore = keyStore
	s.rotation = rotation
	s.keys = keys

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if metricsProvider != nil {
		router.Use(metrics.StatusServerMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
		router.GET(metrics.ScrapeRoute, gin.WrapH(metricsProvider.Handler()))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	if rotation != nil {
		group := router.Group("/rotation")
		group.GET("/status", s.rotationStatusHandler)
		group.GET("/due", s.rotationDueHandler)
	}

	if keys != nil {
		router.GET("/keys", s.listKeysHandler)
		router.GET("/keys/:id", s.getKeyHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server. SetupRouter must be called first.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not configured")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready when the database answers and an active key is loaded.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{"database": "ok", "key_store": "ok"}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("database ping failed", slog.Any("error", err))
			components["database"] = "error"
			ready = false
		}
	}

	if s.keyStore == nil {
		components["key_store"] = "error"
		ready = false
	} else if _, err := s.keyStore.Active(); err != nil {
		components["key_store"] = "error"
		ready = false
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}

func (s *Server) rotationStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.rotation.Status())
}

func (s *Server) rotationDueHandler(c *gin.Context) {
	due, reason := s.rotation.ShouldRotate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"should_rotate": due, "reason": reason})
}

// listKeysHandler returns the persisted metadata of every known key. Secrets are never stored.
func (s *Server) listKeysHandler(c *gin.Context) {
	keys, err := s.keys.List(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, s.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": keys})
}

func (s *Server) getKeyHandler(c *gin.Context) {
	md, err := s.keys.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, s.logger)
		return
	}
	c.JSON(http.StatusOK, md)
}
