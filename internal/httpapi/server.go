// Package httpapi provides the HTTP API for leadlensd.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sablelabs/leadlens/internal/chat"
	"github.com/sablelabs/leadlens/internal/contacts"
	"github.com/sablelabs/leadlens/internal/rag"
)

// Server provides HTTP endpoints for the retrieval pipeline.
type Server struct {
	echo     *echo.Echo
	rag      *rag.Service
	indexer  *rag.Indexer
	contacts *contacts.Service
	source   chat.Source
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server. source may be nil; ingestion
// endpoints then report 503.
func NewServer(ragSvc *rag.Service, indexer *rag.Indexer, contactSvc *contacts.Service, source chat.Source, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ragSvc == nil {
		return nil, fmt.Errorf("rag service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		rag:      ragSvc,
		indexer:  indexer,
		contacts: contactSvc,
		source:   source,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and metrics
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")

	ragGroup := api.Group("/rag")
	ragGroup.GET("/sources", s.handleSources)
	ragGroup.GET("/stats", s.handleStats)
	ragGroup.POST("/search", s.handleSearch)
	ragGroup.POST("/answer", s.handleAnswer)
	ragGroup.DELETE("/sources/:id", s.handleDeleteSource)

	messages := api.Group("/messages")
	messages.POST("/index", s.handleIndex)

	contactGroup := api.Group("/contacts")
	contactGroup.GET("/:id", s.handleContactLookup)
	contactGroup.POST("/search", s.handleContactSearch)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
