package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/refacto-hq/refacto/internal/api"
	"github.com/refacto-hq/refacto/internal/config"
	"github.com/refacto-hq/refacto/internal/db"
	"github.com/refacto-hq/refacto/internal/githost"
	"github.com/refacto-hq/refacto/internal/jobs"
	refactonats "github.com/refacto-hq/refacto/internal/nats"
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

	serverCfg := api.ServerConfig{Config: cfg}

	// Connect to the database (optional; affected routes 503 without it)
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		database, err := db.New(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to database, storage routes disabled")
		} else {
			defer database.Close()
			serverCfg.Store = db.NewStore(database)
		}

		// The job queue uses database/sql for its optimistic locking
		jobDB, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to open job database, job routes disabled")
		} else if err := jobDB.Ping(); err != nil {
			log.Warn().Err(err).Msg("job database ping failed, job routes disabled")
			jobDB.Close()
		} else {
			defer jobDB.Close()
			repo := jobs.NewRepository(jobDB)
			serverCfg.JobRepo = repo

			// Connect to NATS (optional; pipeline falls back to DB polling)
			var natsClient *refactonats.Client
			if cfg.NATSURL != "" {
				natsClient, err = refactonats.NewClient(cfg.NATSURL)
				if err != nil {
					log.Warn().Err(err).Msg("failed to connect to NATS, jobs dispatch via database")
					natsClient = nil
				} else {
					defer natsClient.Close()
					serverCfg.NATS = natsClient
				}
			}
			serverCfg.Pipeline = jobs.NewPipeline(repo, natsClient)
		}
	}

	if cfg.GitHubToken != "" {
		serverCfg.PR = githost.NewPRService(cfg.GitHubToken)
	}

	// Create server
	srv, err := api.NewServer(serverCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	// Start server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not gracefully shutdown the server")
		}
		close(done)
	}()

	log.Info().Int("port", cfg.Port).Msg("starting API server")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("could not listen on port")
	}

	<-done
	log.Info().Msg("server stopped")
}
