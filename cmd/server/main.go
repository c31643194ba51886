package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linguaprep/examroom-backend/internal/config"
	"github.com/linguaprep/examroom-backend/internal/database"
	"github.com/linguaprep/examroom-backend/internal/engine"
	"github.com/linguaprep/examroom-backend/internal/handler"
	"github.com/linguaprep/examroom-backend/internal/logger"
	"github.com/linguaprep/examroom-backend/internal/repository"
	"github.com/linguaprep/examroom-backend/internal/router"
	"github.com/linguaprep/examroom-backend/internal/service"
	"github.com/linguaprep/examroom-backend/internal/validator"
	"github.com/linguaprep/examroom-backend/internal/worker"
	"github.com/rs/zerolog"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExamRoom Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	examService := service.NewExamService(examRepo, rdb, log)
	sessionService := service.NewSessionService(sessionRepo, answerRepo, examService, rdb, log)
	mediaService := service.NewMediaService(cfg)
	speechService := service.NewSpeechService(cfg.RecognizerURL, log)
	persister := service.NewAnswerPersister(rdb, log)

	// One live engine per open session, shared across reconnects.
	registry := engine.NewRegistry()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		StudentPortal: handler.NewStudentPortalHandler(sessionService, examService, registry, persister),
		Media:         handler.NewMediaHandler(mediaService),
		WS: handler.NewWSHandler(
			registry, examService, sessionService, persister,
			mediaService, speechService, log, cfg.AllowedOrigins,
		),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(answerRepo, rdb, log)
	deadlineWorker := worker.NewDeadlineWorker(sessionService, cfg.DeadlineSweepInterval, log)

	go autosaveWorker.Start(workerCtx)
	go deadlineWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published exams into Redis BEFORE accepting traffic.
	// This avoids race conditions from lazy loading under thundering herd.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain. Live
	// engines are not submitted: sessions resume or the sweep finishes
	// them after restart.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
