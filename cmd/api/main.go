package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/hackathon-judge/internal/bootstrap"
	"github.com/noah-isme/hackathon-judge/internal/config"
	"github.com/noah-isme/hackathon-judge/internal/database"
	"github.com/noah-isme/hackathon-judge/internal/handler"
	"github.com/noah-isme/hackathon-judge/internal/middleware"
	"github.com/noah-isme/hackathon-judge/internal/queue"
	"github.com/noah-isme/hackathon-judge/internal/repository"
	"github.com/noah-isme/hackathon-judge/internal/router"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName+" api")
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		Repo:      repository.NewEvaluationRepository(db),
		Redis:     redisClient,
		NATS:      natsConn,
		Validator: validate,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build judging pipeline")
	}
	defer pipeline.Close()
	pipeline.Events.Start(ctx)

	var enqueuer queue.Enqueuer
	if cfg.RedisURL != "" {
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid redis url for queue")
		}
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		enqueuer = queue.NewAsynqEnqueuer(client, cfg.QueueName, cfg.AnalysisTimeout+cfg.CloneTimeout+cfg.ProviderTimeout)
	} else {
		logger.Warn().Msg("no redis url configured; batch enqueueing disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.MaxUploadBytes),
	})

	middleware.Register(app, middleware.Config{
		Logger:      &logger,
		AllowOrigin: cfg.AllowOrigins,
		AccessLog:   cfg.AccessLog,
	})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler:  handler.NewEvaluationHandler(pipeline.Evaluations, enqueuer, validate, cfg.MaxUploadBytes, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(pipeline.Leaderboard, pipeline.Events, logger),
		HealthProbes:       healthProbes(db, redisClient),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		SubmitLimiter:      middleware.RateLimit("submit", cfg.SubmitRateLimit, cfg.SubmitRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func healthProbes(db *gorm.DB, redisClient *redis.Client) map[string]handler.Probe {
	probes := map[string]handler.Probe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return probes
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
