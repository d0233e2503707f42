package main

import (
	"context"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/bootstrap"
	"github.com/noah-isme/hackathon-judge/internal/config"
	"github.com/noah-isme/hackathon-judge/internal/database"
	"github.com/noah-isme/hackathon-judge/internal/repository"
	"github.com/noah-isme/hackathon-judge/internal/worker"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.RedisURL == "" {
		logger.Fatal().Msg("redis url must be provided")
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("database url must be provided")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName+" worker")
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	pipeline, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{
		Repo:      repository.NewEvaluationRepository(db),
		Redis:     redisClient,
		NATS:      natsConn,
		Validator: validator.New(validator.WithRequiredStructEnabled()),
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build judging pipeline")
	}
	defer pipeline.Close()

	srv, err := worker.NewServer(worker.ServerConfig{
		RedisURL:    cfg.RedisURL,
		Queue:       cfg.QueueName,
		Concurrency: cfg.WorkerConcurrency,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create worker server")
	}

	logger.Info().Str("queue", cfg.QueueName).Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	// Run blocks until SIGINT or SIGTERM.
	if err := srv.Run(worker.NewHandler(pipeline.Evaluations, logger).Mux()); err != nil {
		logger.Error().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker stopped")
}
