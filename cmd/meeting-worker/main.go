package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/snarg/meeting-engine/internal/broker"
	"github.com/snarg/meeting-engine/internal/config"
	"github.com/snarg/meeting-engine/internal/database"
	"github.com/snarg/meeting-engine/internal/pipeline"
	"github.com/snarg/meeting-engine/internal/store"
)

var version = "dev"

func main() {
	var overrides config.Overrides
	var queueName string
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL connection string")
	flag.StringVar(&overrides.BrokerURL, "broker-url", "", "MQTT broker URL")
	flag.StringVar(&overrides.AudioDir, "audio-dir", "", "shared audio directory")
	flag.StringVar(&queueName, "queue", broker.QueueGPU, "task queue to consume (gpu_tasks or cpu_tasks)")
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
	log.Info().Str("version", version).Str("queue", queueName).Msg("meeting-worker starting")

	if queueName != broker.QueueGPU && queueName != broker.QueueCPU {
		log.Fatal().Str("queue", queueName).Msg("unknown queue")
	}

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

	// Broker. Each worker needs its own client id or the broker will boot
	// the other session.
	bk, err := broker.Connect(broker.Options{
		BrokerURL: cfg.BrokerURL,
		ClientID:  cfg.BrokerClientID + "-worker-" + queueName,
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

	if err := pipeline.CheckSox(); err != nil {
		log.Warn().Msg("sox not found on PATH, audio will be stitched without re-encoding")
	}

	runner := pipeline.NewRunner(pipeline.Options{
		Config: cfg,
		DB:     db,
		Broker: bk,
		Store:  jobStore,
		Queue:  queueName,
		Log:    log,
	})
	runner.Start(ctx)

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")
	runner.Wait()
	log.Info().Msg("meeting-worker stopped")
}
