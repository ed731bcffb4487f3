package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/ogi/internal/batch"
	"github.com/ashita-ai/ogi/internal/ratelimit"
)

// Server is the ogi HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
type ServerConfig struct {
	// Required dependencies.
	BatchSvc *batch.Service
	Logger   *slog.Logger

	// Optional: serve the MCP server over StreamableHTTP at /mcp.
	MCPServer *mcpserver.MCPServer

	// Optional: rate limit batch routes per client IP (nil = disabled).
	RateLimiter ratelimit.Limiter

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	VenueName           string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		BatchSvc:            cfg.BatchSvc,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		VenueName:           cfg.VenueName,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	rl := ratelimit.Middleware(cfg.RateLimiter, ratelimit.IPKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Batch lifecycle (rate limited by client IP).
	mux.Handle("POST /v1/batches", rl(http.HandlerFunc(h.HandleCreateBatch)))
	mux.Handle("GET /v1/batches/{batch_id}", rl(http.HandlerFunc(h.HandleGetBatch)))
	mux.Handle("POST /v1/batches/{batch_id}/collect", rl(http.HandlerFunc(h.HandleCollectBatch)))

	// Archived verdicts (read-only, not rate limited).
	mux.HandleFunc("GET /v1/archive", h.HandleListArchive)
	mux.HandleFunc("GET /v1/archive/{batch_id}", h.HandleGetArchived)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", mcpHTTP)
	}

	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
