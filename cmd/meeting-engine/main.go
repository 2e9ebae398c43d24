package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/meeting-engine/internal/api"
	"github.com/snarg/meeting-engine/internal/broker"
	"github.com/snarg/meeting-engine/internal/chat"
	"github.com/snarg/meeting-engine/internal/config"
	"github.com/snarg/meeting-engine/internal/database"
	"github.com/snarg/meeting-engine/internal/hub"
	"github.com/snarg/meeting-engine/internal/llm"
	"github.com/snarg/meeting-engine/internal/reaper"
	"github.com/snarg/meeting-engine/internal/store"
	"github.com/snarg/meeting-engine/internal/summary"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection string")
	flag.StringVar(&overrides.BrokerURL, "broker-url", "", "MQTT broker URL")
	flag.StringVar(&overrides.AudioDir, "audio-dir", "", "shared audio directory")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("meeting-engine starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Broker
	bk, err := broker.Connect(broker.Options{
		BrokerURL: cfg.BrokerURL,
		ClientID:  cfg.BrokerClientID,
		Username:  cfg.BrokerUsername,
		Password:  cfg.BrokerPassword,
		Log:       log.With().Str("component", "broker").Logger(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to broker")
	}
	defer bk.Close()

	// Shared audio storage
	jobStore := store.New(cfg.AudioDir)
	if err := jobStore.EnsureRoot(); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare audio directory")
	}

	// Update fan-out to websocket clients
	h := hub.New(log.With().Str("component", "hub").Logger())
	go h.Listen(ctx, bk)

	// LLM-backed services
	lc, err := llm.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build llm client")
	}
	summaries := summary.NewService(db, lc, cfg.LocalTimezone, log.With().Str("component", "summary").Logger())
	chatEngine := chat.NewEngine(db, lc, cfg.ChatHistoryLimit, log.With().Str("component", "chat").Logger())

	// Stale-job reaper
	go reaper.New(db, cfg.ReaperInterval, cfg.StaleAfter, log).Run(ctx)

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		DB:        db,
		Broker:    bk,
		Hub:       h,
		Store:     jobStore,
		Summaries: summaries,
		Chat:      chatEngine,
	}, startTime, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("meeting-engine stopped")
}
