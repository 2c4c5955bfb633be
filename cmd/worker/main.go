package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/refacto-hq/refacto/internal/config"
	"github.com/refacto-hq/refacto/internal/db"
	"github.com/refacto-hq/refacto/internal/llm"
	refactonats "github.com/refacto-hq/refacto/internal/nats"
	"github.com/refacto-hq/refacto/internal/worker"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Determine worker type from env or args
	workerType := os.Getenv("WORKER_TYPE")
	if workerType == "" {
		workerType = "all" // Run all worker types
	}

	// Connect to database (optional)
	var jobDB *sql.DB
	var store *db.Store
	if cfg.DatabaseURL != "" {
		jobDB, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to database, workers will run in limited mode")
		} else if err := jobDB.Ping(); err != nil {
			log.Warn().Err(err).Msg("database ping failed, workers will run in limited mode")
			jobDB.Close()
			jobDB = nil
		} else {
			log.Info().Msg("connected to database")
			defer jobDB.Close()
		}

		// Results are persisted through the pgx-backed store
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		database, err := db.New(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("failed to open result store")
		} else {
			defer database.Close()
			store = db.NewStore(database)
		}
	}

	// Connect to NATS (optional)
	var natsClient *refactonats.Client
	if cfg.NATSURL != "" {
		natsClient, err = refactonats.NewClient(cfg.NATSURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, workers will poll database")
		} else {
			log.Info().Str("url", cfg.NATSURL).Msg("connected to NATS")
			defer natsClient.Close()
		}
	}

	// LLM router for the verification workers
	llmRouter, err := llm.NewRouter(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("LLM router unavailable, verification jobs cannot generate candidates")
		llmRouter = nil
	}

	// Create worker pool
	poolCfg := worker.PoolConfig{
		Config:     cfg,
		WorkerType: workerType,
		DB:         jobDB,
		NATS:       natsClient,
		Store:      store,
		LLMRouter:  llmRouter,
	}

	pool, err := worker.NewPool(poolCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create worker pool")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("worker pool is shutting down...")
		cancel()
	}()

	log.Info().Str("type", workerType).Msg("starting worker pool")
	if err := pool.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker pool error")
	}

	log.Info().Msg("worker pool stopped")
}
