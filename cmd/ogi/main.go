package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/ogi/internal/archive"
	"github.com/ashita-ai/ogi/internal/batch"
	"github.com/ashita-ai/ogi/internal/config"
	"github.com/ashita-ai/ogi/internal/mcp"
	"github.com/ashita-ai/ogi/internal/ratelimit"
	"github.com/ashita-ai/ogi/internal/server"
	"github.com/ashita-ai/ogi/internal/telemetry"
	"github.com/ashita-ai/ogi/internal/venue"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("OGI_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("ogi starting", "version", version, "port", cfg.Port, "venue", cfg.Venue)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Open the result archive (optional — disabled when no path is set).
	var store *archive.Store
	if cfg.ArchivePath != "" {
		store, err = archive.Open(ctx, cfg.ArchivePath, logger)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		defer func() { _ = store.Close() }()
		logger.Info("archive: enabled", "path", cfg.ArchivePath)
	} else {
		logger.Info("archive: disabled (no OGI_ARCHIVE_PATH)")
	}

	// Pick the execution backend.
	var exec venue.Executor
	switch cfg.Venue {
	case "openai":
		exec = venue.NewOpenAIExecutor(cfg.VenueBaseURL, cfg.VenueAPIKey, cfg.VenueModel)
	default:
		exec = &venue.MockExecutor{}
	}

	// Create batch service (shared by HTTP and MCP handlers).
	batchSvc := batch.New(batch.NewRegistry(), exec, store, batch.Defaults{
		CollectTimeout:  cfg.CollectTimeout,
		PerQueryTimeout: cfg.PerQueryTimeout,
		QuorumFraction:  cfg.QuorumFraction,
		InboxSize:       cfg.InboxSize,
		Concurrency:     cfg.VenueConcurrency,
	}, logger)

	// Create MCP server.
	mcpSrv := mcp.New(batchSvc, version, logger)

	// Create rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer func() { _ = limiter.Close() }()
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		logger.Info("rate limiting: disabled")
	}

	// Create and start HTTP server (MCP mounted at /mcp).
	srv := server.New(server.ServerConfig{
		BatchSvc:            batchSvc,
		Logger:              logger,
		MCPServer:           mcpSrv.MCPServer(),
		RateLimiter:         limiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		VenueName:           exec.Name(),
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Graceful shutdown: stop accepting new requests and drain in-flight
	// collections. Dispatch goroutines die with the process.
	slog.Info("ogi shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("ogi stopped")
	return nil
}
