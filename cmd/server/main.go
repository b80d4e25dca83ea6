package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"posterlab/internal/config"
	"posterlab/internal/deck"
	"posterlab/internal/domain/services"
	"posterlab/internal/handler"
	"posterlab/internal/llm"
	"posterlab/internal/middleware"
	"posterlab/internal/preview"
	"posterlab/internal/repository/postgres"
	posterservice "posterlab/internal/service/poster"
	"posterlab/internal/task"
	"posterlab/internal/upload"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Ensure artifact directories exist before anything writes to them
	for _, dir := range []string{cfg.UploadDir, cfg.DeckDir, cfg.PreviewDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	// Sweep generated files left over from previous runs
	upload.SweepStale(logger, cfg.DeckDir, cfg.TempFileMaxAge)
	upload.SweepStale(logger, cfg.PreviewDir, cfg.TempFileMaxAge)

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Create repositories
	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	txManager := postgres.NewTransactionManager(pool, logger)
	posterRepo := postgres.NewPosterRepository(repoConfig, txManager)

	// Managed upload root for section images
	uploads, err := upload.NewStore(cfg.UploadDir, cfg.MaxUploadBytes, logger)
	if err != nil {
		log.Fatalf("Failed to create upload store: %v", err)
	}

	// LLM collaborator
	var completer services.Completer
	switch cfg.LLMProvider {
	case "lorem":
		completer = llm.NewLoremCompleter()
		logger.Warn("using lorem LLM provider (dev only)")
	default:
		completer, err = llm.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.LLMModel)
		if err != nil {
			log.Fatalf("Failed to create LLM completer: %v", err)
		}
	}

	// Deck rendering and preview pipeline
	renderer := deck.NewRenderer(logger, uploads.ResolvePath, cfg.ImageFetchTimeout)
	rasterizer := preview.NewSofficeRasterizer(cfg.SofficeCommand, cfg.RasterizeTimeout, logger)
	runner := task.NewRunner(logger, cfg.JobTimeout)

	// Create services
	posterService := posterservice.NewService(posterRepo, uploads, logger)
	updateService := posterservice.NewReconciler(posterRepo, completer, uploads, logger)
	previewService := posterservice.NewPreviewController(
		posterRepo, renderer, rasterizer, runner,
		cfg.DeckDir, cfg.PreviewDir, logger,
	)

	logger.Info("services initialized", "llm_provider", cfg.LLMProvider)

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	posterHandler := handler.NewPosterHandler(posterService, updateService, previewService, logger)
	handler.RegisterRoutes(mux, posterHandler)

	// Build middleware chain: CORS → Recovery → Routes
	var root http.Handler = mux
	root = middleware.Recovery(logger)(root)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server and wait for a shutdown signal
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
		// Let queued preview jobs finish recording their status
		if err := runner.Shutdown(shutdownCtx); err != nil {
			logger.Warn("background jobs did not drain", "error", err)
		}
	}
}
