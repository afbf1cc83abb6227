package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/Skufu/medassist/internal/assistant"
	"github.com/Skufu/medassist/internal/config"
	"github.com/Skufu/medassist/internal/extract"
	"github.com/Skufu/medassist/internal/history"
	"github.com/Skufu/medassist/internal/llm"
	"github.com/Skufu/medassist/internal/logging"
	"github.com/Skufu/medassist/internal/metrics"
	"github.com/Skufu/medassist/internal/report"
	"github.com/Skufu/medassist/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()
	backend, pool, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.HistoryBackend).Msg("history backend unavailable")
	}
	var db server.HealthChecker
	if pool != nil {
		db = pool
		defer pool.Close()
	}

	// Each process starts with a clean slate.
	if err := backend.Purge(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to clear conversation history")
	}

	model, err := newModel(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("model setup failed")
	}

	m := metrics.DefaultMetrics
	sessions := assistant.NewSessionsWithLimit(backend, cfg.SessionLimit)
	sessions.OnChange(func(n int) { m.ActiveSessions.Set(float64(n)) })
	gateway := assistant.NewGateway(model, m)

	router := server.NewRouter(server.Deps{
		Sessions:       sessions,
		Gateway:        gateway,
		Reports:        report.NewService(extract.NewExtractor(), gateway, m),
		DB:             db,
		OnSentinel:     m.SentinelHits.Inc,
		MaxUploadBytes: cfg.MaxUploadBytes,
		UploadDir:      cfg.UploadDir,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.ModelTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	logStartup(cfg, model)
	waitForShutdown(srv)
}

func logStartup(cfg *config.Config, model llm.Model) {
	log.Info().
		Str("port", cfg.Port).
		Str("provider", model.Name()).
		Str("instruction_version", assistant.InstructionVersion).
		Str("history", cfg.HistoryBackend).
		Int("session_limit", cfg.SessionLimit).
		Msg("server listening")
}

// openBackend returns the configured history backend, and the pool backing it
// when history lives in Postgres.
func openBackend(ctx context.Context, cfg *config.Config) (history.Backend, *pgxpool.Pool, error) {
	switch cfg.HistoryBackend {
	case config.BackendPostgres:
		pool, err := history.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		backend, err := history.NewPostgresBackend(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return backend, pool, nil
	default:
		file := cfg.HistoryFile
		if !filepath.IsAbs(file) {
			file = filepath.Join(cfg.HistoryDir, file)
		}
		return &history.FileBackend{DefaultFile: file, Dir: cfg.HistoryDir}, nil, nil
	}
}

func newModel(cfg *config.Config) (llm.Model, error) {
	switch cfg.ModelProvider {
	case config.ProviderOllama:
		return llm.NewOllama("", cfg.OllamaModel, cfg.ModelTimeout)
	default:
		return llm.NewGemini(llm.GeminiOptions{
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			APIKey:  cfg.GeminiAPIKey,
			Timeout: cfg.ModelTimeout,
		})
	}
}

func waitForShutdown(srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
