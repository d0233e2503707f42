package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/artifacts"
	"github.com/noah-isme/hackathon-judge/internal/batch"
	"github.com/noah-isme/hackathon-judge/internal/middleware"
	"github.com/noah-isme/hackathon-judge/internal/queue"
	"github.com/noah-isme/hackathon-judge/internal/service"
)

// ErrPathsWithoutBaseDir rejects a task naming local files without the
// manifest directory they belong to. Only CLI manifests carry one.
var ErrPathsWithoutBaseDir = errors.New("task names local paths but no manifest directory")

// Handler runs queued evaluations.
type Handler struct {
	evaluations service.EvaluationService
	logger      zerolog.Logger
}

// NewHandler constructs the task handler.
func NewHandler(evaluations service.EvaluationService, logger zerolog.Logger) *Handler {
	return &Handler{
		evaluations: evaluations,
		logger:      logger.With().Str("component", "evaluation_worker").Logger(),
	}
}

// Mux routes task types to handlers.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeEvaluationRun, h.HandleEvaluation)
	return mux
}

// HandleEvaluation evaluates one manifest entry. Errors that a retry cannot
// fix are wrapped with asynq.SkipRetry.
func (h *Handler) HandleEvaluation(ctx context.Context, task *asynq.Task) error {
	logger := h.logger
	if id, ok := asynq.GetTaskID(ctx); ok {
		ctx = middleware.ContextWithCorrelation(ctx, id)
		logger = logger.With().Str("correlation_id", id).Logger()
	}

	payload, err := queue.ParseEvaluationPayload(task)
	if err != nil {
		logger.Error().Err(err).Msg("dropping malformed task")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	logger = logger.With().Str("project", payload.Entry.Name).Logger()

	if payload.BaseDir == "" {
		if fields := payload.Entry.LocalPaths(); len(fields) > 0 {
			err := fmt.Errorf("%w: %s", ErrPathsWithoutBaseDir, strings.Join(fields, ", "))
			logger.Warn().Err(err).Msg("dropping task")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
	}

	req, err := batch.ToRequest(payload.Entry, payload.BaseDir)
	if err != nil {
		logger.Error().Err(err).Msg("unreadable submission files")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	req.SubmittedBy = payload.SubmittedBy

	start := time.Now()
	evaluation, err := h.evaluations.Evaluate(ctx, req)
	if err != nil {
		if permanent(err) {
			logger.Warn().Err(err).Msg("submission rejected")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger.Error().Err(err).Msg("evaluation failed")
		return err
	}

	logger.Info().
		Uint("evaluation_id", evaluation.ID).
		Float64("final_score", evaluation.FinalScore).
		Dur("duration", time.Since(start)).
		Msg("queued evaluation completed")
	return nil
}

func permanent(err error) bool {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return true
	case errors.Is(err, service.ErrMissingArtifact),
		errors.Is(err, artifacts.ErrUnsupportedCodeSource),
		errors.Is(err, artifacts.ErrInvalidRepositoryURL),
		errors.Is(err, artifacts.ErrUnsupportedVideo),
		errors.Is(err, artifacts.ErrUploadTooLarge),
		errors.Is(err, artifacts.ErrUnsafeArchive):
		return true
	default:
		return false
	}
}

// ServerConfig tunes the asynq server.
type ServerConfig struct {
	RedisURL    string
	Queue       string
	Concurrency int
}

// NewServer builds an asynq server consuming cfg.Queue.
func NewServer(cfg ServerConfig, logger zerolog.Logger) (*asynq.Server, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	queueName := cfg.Queue
	if queueName == "" {
		queueName = queue.DefaultQueue
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}

	workerLogger := logger.With().Str("component", "asynq").Logger()
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
		Logger:      asynqLogger{logger: workerLogger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			workerLogger.Warn().Err(err).
				Str("task_type", task.Type()).
				Int("retry", retried).
				Int("max_retry", maxRetry).
				Msg("task failed")
		}),
	}), nil
}

// asynqLogger forwards asynq's internal logs to zerolog.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
