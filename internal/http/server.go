// Package http provides the HTTP API for supportd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/supportd/internal/config"
	"github.com/fyrsmithlabs/supportd/internal/orchestrator"
	"github.com/fyrsmithlabs/supportd/internal/vectorstore"
)

// Server exposes the turn and ingestion endpoints, health check, and
// metrics.
type Server struct {
	echo     *echo.Echo
	turns    TurnHandler
	ingester DocumentIngester
	logger   *zap.Logger
	config   config.ServerConfig
}

// TurnHandler is the orchestration surface the server calls into.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID, userID, input string) (*orchestrator.TurnResult, error)
}

// DocumentIngester writes support documents into the knowledge base.
type DocumentIngester interface {
	AddDocuments(ctx context.Context, docs []vectorstore.Document) ([]string, error)
}

// NewServer creates the HTTP server.
func NewServer(turns TurnHandler, ingester DocumentIngester, logger *zap.Logger, cfg config.ServerConfig) (*Server, error) {
	if turns == nil {
		return nil, fmt.Errorf("turn handler cannot be nil")
	}
	if ingester == nil {
		return nil, fmt.Errorf("document ingester cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

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
		turns:    turns,
		ingester: ingester,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/turns", s.handleTurn)
	v1.POST("/documents", s.handleIngest)
}

// TurnRequest is the request body for POST /api/v1/turns.
type TurnRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Input     string `json:"input"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleTurn runs one conversational turn. The request context follows
// the client connection, so a disconnect cancels the turn at the next
// step boundary.
func (s *Server) handleTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid turn request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id field is required")
	}
	if req.Input == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "input field is required")
	}

	result, err := s.turns.HandleTurn(c.Request().Context(), req.SessionID, req.UserID, req.Input)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The client is usually gone already; the status is for
			// proxies and logs.
			return echo.NewHTTPError(http.StatusRequestTimeout, "turn cancelled")
		}
		s.logger.Error("turn handling failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "turn handling failed")
	}

	return c.JSON(http.StatusOK, result)
}

// IngestRequest is the request body for POST /api/v1/documents.
type IngestRequest struct {
	Documents []IngestDocument `json:"documents"`
}

// IngestDocument is one knowledge-base document to store. ID is optional;
// a missing ID is generated server-side.
type IngestDocument struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// IngestResponse lists the stored document IDs in request order.
type IngestResponse struct {
	IDs []string `json:"ids"`
}

// handleIngest embeds and stores knowledge-base documents.
func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "documents field is required")
	}

	docs := make([]vectorstore.Document, len(req.Documents))
	for i, d := range req.Documents {
		if d.Content == "" {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("document %d has no content", i))
		}
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		docs[i] = vectorstore.Document{ID: id, Content: d.Content, Metadata: d.Metadata}
	}

	ids, err := s.ingester.AddDocuments(c.Request().Context(), docs)
	if err != nil {
		s.logger.Error("document ingestion failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "document ingestion failed")
	}

	s.logger.Info("documents ingested", zap.Int("count", len(ids)))
	return c.JSON(http.StatusCreated, IngestResponse{IDs: ids})
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
