// Package bootstrap assembles the judging pipeline from configuration. The
// API, the worker and the CLI share it so every entry point scores the same
// way.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/artifacts"
	"github.com/noah-isme/hackathon-judge/internal/claims"
	"github.com/noah-isme/hackathon-judge/internal/config"
	"github.com/noah-isme/hackathon-judge/internal/evidence"
	"github.com/noah-isme/hackathon-judge/internal/report"
	"github.com/noah-isme/hackathon-judge/internal/repository"
	"github.com/noah-isme/hackathon-judge/internal/scoring"
	"github.com/noah-isme/hackathon-judge/internal/service"
	"github.com/noah-isme/hackathon-judge/pkg/ai"
	cloud "github.com/noah-isme/hackathon-judge/pkg/cloudinary"
	"github.com/noah-isme/hackathon-judge/pkg/docker"
)

// Options carries the connections owned by the caller.
type Options struct {
	Repo      repository.EvaluationRepository
	Redis     *redis.Client
	NATS      *nats.Conn
	Validator *validator.Validate
	// OutputDir overrides cfg.OutputDir for the local artifact store.
	OutputDir string
	Logger    zerolog.Logger
}

// Pipeline is the assembled judging pipeline.
type Pipeline struct {
	Evaluations service.EvaluationService
	Leaderboard service.LeaderboardService
	Events      service.EventBroadcaster
	Store       report.ArtifactStore

	closers []func() error
}

// Close releases the sandbox client.
func (p *Pipeline) Close() error {
	var errs []error
	for _, closeFn := range p.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build wires providers, storage and events from cfg.
func Build(ctx context.Context, cfg config.Config, opts Options) (*Pipeline, error) {
	if err := scoring.ValidateWeights(scoring.DefaultWeights()); err != nil {
		return nil, fmt.Errorf("scoring weights: %w", err)
	}
	if opts.Repo == nil {
		return nil, errors.New("evaluation repository is required")
	}
	if opts.Validator == nil {
		opts.Validator = validator.New(validator.WithRequiredStructEnabled())
	}
	logger := opts.Logger

	pipeline := &Pipeline{}

	sandbox, err := docker.NewSandbox(docker.Config{
		Host:          cfg.DockerHost,
		Timeout:       cfg.AnalysisTimeout,
		MemoryLimitMB: int64(cfg.SandboxMemoryMB),
		CPUShares:     int64(cfg.SandboxCPUShares),
		PullImages:    cfg.PullImages,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	pipeline.closers = append(pipeline.closers, sandbox.Close)

	hosted, err := buildModels(cfg, logger)
	if err != nil {
		_ = pipeline.Close()
		return nil, err
	}

	toolchain := evidence.NewPythonToolchain(sandbox, cfg.ToolImage, sandbox.MountPath(), cfg.AnalysisTimeout)
	providers := []evidence.Provider{
		evidence.NewOriginality(hosted.originality, logger),
		evidence.NewConcept(hosted.client, logger),
		evidence.NewPresentation(hosted.client, logger),
		evidence.NewCodeQuality(toolchain, toolchain, toolchain, logger),
	}
	for i, p := range providers {
		providers[i] = evidence.Timed(p, cfg.ProviderTimeout)
	}

	store, err := buildStore(ctx, cfg, opts.OutputDir)
	if err != nil {
		_ = pipeline.Close()
		return nil, err
	}
	pipeline.Store = store

	var archive service.VideoArchiver
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryFolder,
	}
	if cloudCfg.Enabled() {
		videoArchive, err := cloud.New(cloudCfg, logger)
		if err != nil {
			_ = pipeline.Close()
			return nil, err
		}
		archive = videoArchive
	}

	pipeline.Leaderboard = service.NewLeaderboardService(opts.Repo, opts.Redis, cfg.LeaderboardCacheTTL, logger)
	pipeline.Events = service.NewEventBroadcaster(opts.Redis, opts.NATS, cfg.EventChannel, logger)

	deps := service.EvaluationDeps{
		Repo:           opts.Repo,
		Providers:      providers,
		Extractor:      hosted.extractor,
		Transcriber:    hosted.transcriber,
		Cloner:         artifacts.NewGitCloner(sandbox, cfg.GitImage, sandbox.MountPath(), cfg.CloneTimeout),
		Archive:        archive,
		Store:          store,
		Events:         pipeline.Events,
		Leaderboard:    pipeline.Leaderboard,
		Validator:      opts.Validator,
		Logger:         logger,
		WorkDir:        cfg.WorkDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		ModelTimeout:   cfg.ProviderTimeout,
	}
	pipeline.Evaluations = service.NewEvaluationService(deps)

	logger.Info().
		Bool("model", cfg.ModelEnabled()).
		Bool("s3", cfg.S3Enabled()).
		Bool("video_archive", archive != nil).
		Str("tool_image", cfg.ToolImage).
		Msg("judging pipeline ready")

	return pipeline, nil
}

type modelSet struct {
	client      ai.Client
	originality ai.Client
	transcriber ai.Transcriber
	extractor   claims.Extractor
}

// buildModels returns the hosted model collaborators, or stand-ins that keep
// providers on their default scores when no API key is configured.
func buildModels(cfg config.Config, logger zerolog.Logger) (modelSet, error) {
	if !cfg.ModelEnabled() {
		logger.Warn().Msg("no model api key configured; model-backed criteria will score 0")
		return modelSet{client: ai.Disabled{}, extractor: claims.HeuristicExtractor{}}, nil
	}

	client, err := ai.NewOpenAIClient(ai.OpenAIConfig{
		APIKey:             cfg.OpenAIAPIKey,
		BaseURL:            cfg.OpenAIBaseURL,
		Model:              cfg.OpenAIModel,
		TranscriptionModel: cfg.TranscriptionModel,
		Temperature:        0.2,
		Logger:             logger,
	})
	if err != nil {
		return modelSet{}, err
	}
	return modelSet{
		client:      client,
		originality: client,
		transcriber: client,
		extractor:   claims.NewModelExtractor(client, logger),
	}, nil
}

func buildStore(ctx context.Context, cfg config.Config, outputDir string) (report.ArtifactStore, error) {
	if cfg.S3Enabled() {
		return report.NewS3Store(ctx, report.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		})
	}
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}
	return report.NewFileStore(outputDir)
}
