package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/hackathon-judge/internal/artifacts"
	"github.com/noah-isme/hackathon-judge/internal/claims"
	"github.com/noah-isme/hackathon-judge/internal/evidence"
	"github.com/noah-isme/hackathon-judge/internal/middleware"
	"github.com/noah-isme/hackathon-judge/internal/models"
	"github.com/noah-isme/hackathon-judge/internal/observability"
	"github.com/noah-isme/hackathon-judge/internal/report"
	"github.com/noah-isme/hackathon-judge/internal/repository"
	"github.com/noah-isme/hackathon-judge/internal/scoring"
	"github.com/noah-isme/hackathon-judge/pkg/ai"
)

const (
	defaultCodeTextLimit = 2 << 20
	defaultModelTimeout  = time.Minute
)

var (
	// ErrMissingArtifact is returned before the pipeline starts when a
	// required piece of the submission is absent.
	ErrMissingArtifact = errors.New("missing required artifact")
	// ErrEvaluationNotFound indicates an unknown evaluation id.
	ErrEvaluationNotFound = errors.New("evaluation not found")
	// ErrCodeUnavailable indicates the referenced code could not be fetched.
	ErrCodeUnavailable = errors.New("code could not be retrieved")
)

// SubmissionRequest is one submission as received from the API, the CLI or
// the queue. Exactly one code source is used; when CodeSource is empty it is
// inferred from the populated field.
type SubmissionRequest struct {
	ProjectName string               `validate:"max=255"`
	Description string               `validate:"max=20000"`
	CodeSource  artifacts.CodeSource `validate:"omitempty,oneof=github manual file directory"`
	GitHubURL   string               `validate:"omitempty,url"`
	ManualCode  string
	CodeDir     string
	CodeFiles   []artifacts.File
	Video       *artifacts.File
	// VideoPath points at a recording already on disk.
	VideoPath   string
	Transcript  string
	SubmittedBy string `validate:"max=64"`
}

// VideoArchiver keeps presentation recordings after the workspace is removed.
type VideoArchiver interface {
	ArchiveRecording(ctx context.Context, projectName, path string) (string, error)
}

// EvaluationService runs submissions through the judging pipeline.
type EvaluationService interface {
	Evaluate(ctx context.Context, req SubmissionRequest) (models.Evaluation, error)
	Get(ctx context.Context, id uint) (models.Evaluation, error)
	List(ctx context.Context) ([]models.Evaluation, error)
	Report(ctx context.Context, id uint) (string, error)
}

// EvaluationDeps wires the pipeline. Repo, Providers and Extractor are
// required; every other collaborator is optional.
type EvaluationDeps struct {
	Repo        repository.EvaluationRepository
	Providers   []evidence.Provider
	Extractor   claims.Extractor
	Transcriber ai.Transcriber
	Cloner      artifacts.Cloner
	Archive     VideoArchiver
	Store       report.ArtifactStore
	Events      EventBroadcaster
	Leaderboard LeaderboardService
	Validator   *validator.Validate
	Logger      zerolog.Logger

	WorkDir        string
	MaxUploadBytes int64
	CodeTextLimit  int
	Now            func() time.Time

	// ModelTimeout bounds each claim extraction and transcription call.
	ModelTimeout time.Duration
}

type evaluationService struct {
	deps      EvaluationDeps
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	tracer    trace.Tracer
	logger    zerolog.Logger
}

// NewEvaluationService constructs the pipeline.
func NewEvaluationService(deps EvaluationDeps) EvaluationService {
	if deps.Validator == nil {
		deps.Validator = validator.New(validator.WithRequiredStructEnabled())
	}
	if deps.Extractor == nil {
		deps.Extractor = claims.HeuristicExtractor{}
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 200 << 20
	}
	if deps.CodeTextLimit <= 0 {
		deps.CodeTextLimit = defaultCodeTextLimit
	}
	if deps.ModelTimeout <= 0 {
		deps.ModelTimeout = defaultModelTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &evaluationService{
		deps:      deps,
		validator: deps.Validator,
		sanitizer: bluemonday.StrictPolicy(),
		tracer:    otel.Tracer("github.com/noah-isme/hackathon-judge/internal/service/evaluation"),
		logger:    deps.Logger.With().Str("component", "evaluation_service").Logger(),
	}
}

func (s *evaluationService) Evaluate(ctx context.Context, req SubmissionRequest) (models.Evaluation, error) {
	req.ProjectName = strings.TrimSpace(s.sanitizer.Sanitize(req.ProjectName))
	req.Description = strings.TrimSpace(s.sanitizer.Sanitize(req.Description))
	req.Transcript = strings.TrimSpace(req.Transcript)

	source, err := s.validate(req)
	if err != nil {
		observability.EvaluationsRejected().WithLabelValues(rejectReason(err)).Inc()
		return models.Evaluation{}, err
	}
	req.CodeSource = source

	logger := s.logger.With().Str("project", req.ProjectName).Logger()
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		logger = logger.With().Str("correlation_id", correlation).Logger()
	}

	spanCtx, span := s.tracer.Start(ctx, "evaluations.run", trace.WithAttributes(
		attribute.String("evaluation.project", req.ProjectName),
		attribute.String("evaluation.code_source", string(source)),
	))
	defer span.End()

	start := time.Now()
	evaluation, err := s.run(spanCtx, req, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Evaluation{}, err
	}

	observability.EvaluationDuration().Observe(time.Since(start).Seconds())
	observability.EvaluationsTotal().WithLabelValues(evaluation.Rating).Inc()
	span.SetAttributes(attribute.Float64("evaluation.final_score", evaluation.FinalScore))

	logger.Info().
		Uint("evaluation_id", evaluation.ID).
		Float64("final_score", evaluation.FinalScore).
		Str("rating", evaluation.Rating).
		Dur("duration", time.Since(start)).
		Msg("submission evaluated")

	return evaluation, nil
}

func (s *evaluationService) run(ctx context.Context, req SubmissionRequest, logger zerolog.Logger) (models.Evaluation, error) {
	ws, err := artifacts.NewWorkspace(s.deps.WorkDir, req.ProjectName)
	if err != nil {
		return models.Evaluation{}, err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			logger.Warn().Err(err).Msg("failed to remove workspace")
		}
	}()

	location, err := s.placeCode(ctx, ws, req)
	if err != nil {
		return models.Evaluation{}, err
	}

	transcript, videoURL, err := s.preparePresentation(ctx, ws, req, logger)
	if err != nil {
		return models.Evaluation{}, err
	}

	sources, err := artifacts.CollectSourceFiles(ws.CodeDir)
	if err != nil {
		logger.Warn().Err(err).Str("code_dir", ws.CodeDir).Msg("failed to list source files")
		sources = nil
	}

	input := evidence.Artifacts{
		ProjectName:      req.ProjectName,
		Description:      req.Description,
		PresentationText: transcript,
		CodeDir:          ws.CodeDir,
		SourceFiles:      sources,
	}

	scores, signals := s.assess(ctx, input)
	verification := s.verifyClaims(ctx, req.Description, artifacts.ReadCodeText(ws.CodeDir, sources, s.deps.CodeTextLimit), logger)

	result := scoring.Aggregate(scoring.Input{
		Submission: scoring.Submission{
			ProjectName:      req.ProjectName,
			Description:      req.Description,
			CodeLocation:     location,
			PresentationText: transcript,
			Timestamp:        s.deps.Now().UTC(),
		},
		Scores:       scores,
		Verification: verification,
		Signals:      signals,
	})

	evaluation := models.NewEvaluation(result)
	evaluation.VideoURL = videoURL
	evaluation.SubmittedBy = req.SubmittedBy
	if err := s.deps.Repo.Create(ctx, &evaluation); err != nil {
		return models.Evaluation{}, fmt.Errorf("store evaluation: %w", err)
	}

	s.persistArtifacts(ctx, evaluation.ID, result, logger)
	if s.deps.Leaderboard != nil {
		s.deps.Leaderboard.Invalidate(ctx)
	}
	if s.deps.Events != nil {
		s.deps.Events.Publish(ctx, EvaluationEvent{
			ID:          evaluation.ID,
			ProjectName: evaluation.ProjectName,
			FinalScore:  evaluation.FinalScore,
			Rating:      evaluation.Rating,
			SubmittedAt: evaluation.SubmittedAt,
		})
	}

	return evaluation, nil
}

// assess runs every provider concurrently and joins their outcomes in
// provider order.
func (s *evaluationService) assess(ctx context.Context, input evidence.Artifacts) ([]scoring.CriterionScore, scoring.Signals) {
	outcomes := make([]evidence.Outcome, len(s.deps.Providers))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, provider := range s.deps.Providers {
		group.Go(func() error {
			outcomes[i] = provider.Assess(groupCtx, input)
			return nil
		})
	}
	_ = group.Wait()

	scores := make([]scoring.CriterionScore, 0, len(scoring.Criteria))
	var signals scoring.Signals
	for _, outcome := range outcomes {
		scores = append(scores, outcome.Scores...)
		signals = signals.Merge(outcome.Signals)
	}
	return scores, signals
}

func (s *evaluationService) verifyClaims(ctx context.Context, description, codeText string, logger zerolog.Logger) claims.Verification {
	callCtx, cancel := context.WithTimeout(ctx, s.deps.ModelTimeout)
	defer cancel()

	extracted, err := s.deps.Extractor.Extract(callCtx, description)
	if err != nil {
		logger.Warn().Err(err).Msg("claim extraction failed, using heuristic")
		extracted, _ = claims.HeuristicExtractor{}.Extract(ctx, description)
	}
	return claims.Verify(extracted, codeText)
}

func (s *evaluationService) transcribe(ctx context.Context, recording string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.deps.ModelTimeout)
	defer cancel()
	return s.deps.Transcriber.Transcribe(callCtx, recording)
}

func (s *evaluationService) placeCode(ctx context.Context, ws *artifacts.Workspace, req SubmissionRequest) (string, error) {
	switch req.CodeSource {
	case artifacts.SourceGitHub:
		if s.deps.Cloner == nil {
			return "", fmt.Errorf("%w: repository cloning is disabled", artifacts.ErrUnsupportedCodeSource)
		}
		if err := ws.CloneInto(ctx, s.deps.Cloner, req.GitHubURL); err != nil {
			if errors.Is(err, artifacts.ErrInvalidRepositoryURL) {
				return "", err
			}
			return "", fmt.Errorf("%w: %v", ErrCodeUnavailable, err)
		}
		return req.GitHubURL, nil
	case artifacts.SourceManual:
		if err := ws.WriteManualCode(req.ManualCode); err != nil {
			return "", err
		}
		return artifacts.ManualCodeFile, nil
	case artifacts.SourceFiles:
		if err := ws.AddCodeFiles(req.CodeFiles, s.deps.MaxUploadBytes); err != nil {
			return "", err
		}
		names := make([]string, 0, len(req.CodeFiles))
		for _, f := range req.CodeFiles {
			names = append(names, f.Name)
		}
		return strings.Join(names, ", "), nil
	case artifacts.SourceDirectory:
		ws.UseDirectory(req.CodeDir)
		return req.CodeDir, nil
	default:
		return "", fmt.Errorf("%w: %q", artifacts.ErrUnsupportedCodeSource, req.CodeSource)
	}
}

// preparePresentation returns the transcript to assess and, when a recording
// was archived, its URL. A failed transcription or archive is logged and the
// pipeline continues with what it has.
func (s *evaluationService) preparePresentation(ctx context.Context, ws *artifacts.Workspace, req SubmissionRequest, logger zerolog.Logger) (string, string, error) {
	recording := req.VideoPath
	if req.Video != nil {
		path, mime, err := ws.SaveRecording(*req.Video, s.deps.MaxUploadBytes)
		if err != nil {
			return "", "", err
		}
		logger.Debug().Str("mime", mime).Msg("recording stored")
		recording = path
	}

	transcript := req.Transcript
	if transcript == "" && recording != "" {
		if s.deps.Transcriber == nil {
			logger.Warn().Msg("recording submitted without a transcriber; presentation scored from the description")
		} else if text, err := s.transcribe(ctx, recording); err != nil {
			logger.Warn().Err(err).Msg("transcription failed")
		} else {
			transcript = strings.TrimSpace(text)
		}
	}

	var videoURL string
	if recording != "" && s.deps.Archive != nil {
		url, err := s.deps.Archive.ArchiveRecording(ctx, req.ProjectName, recording)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to archive recording")
		} else {
			videoURL = url
		}
	}

	return transcript, videoURL, nil
}

func (s *evaluationService) persistArtifacts(ctx context.Context, id uint, result scoring.Result, logger zerolog.Logger) {
	if s.deps.Store == nil {
		return
	}

	base := fmt.Sprintf("%s_%d", artifacts.SafeName(result.Submission.ProjectName), id)
	if _, err := s.deps.Store.Put(ctx, base+"_report.txt", []byte(report.Render(result)), "text/plain; charset=utf-8"); err != nil {
		logger.Warn().Err(err).Msg("failed to store report")
	}

	payload, err := report.MarshalResult(result)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to encode scores")
		return
	}
	if _, err := s.deps.Store.Put(ctx, base+"_scores.json", payload, "application/json"); err != nil {
		logger.Warn().Err(err).Msg("failed to store scores")
	}
}

// validate checks the request and resolves the code source.
func (s *evaluationService) validate(req SubmissionRequest) (artifacts.CodeSource, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", err
	}
	if req.ProjectName == "" {
		return "", fmt.Errorf("%w: project name", ErrMissingArtifact)
	}
	if req.Description == "" {
		return "", fmt.Errorf("%w: description", ErrMissingArtifact)
	}

	source := req.CodeSource
	if source == "" {
		source = inferCodeSource(req)
	}
	present := false
	switch source {
	case artifacts.SourceGitHub:
		present = strings.TrimSpace(req.GitHubURL) != ""
	case artifacts.SourceManual:
		present = strings.TrimSpace(req.ManualCode) != ""
	case artifacts.SourceFiles:
		present = len(req.CodeFiles) > 0
	case artifacts.SourceDirectory:
		present = strings.TrimSpace(req.CodeDir) != ""
	}
	if !present {
		return "", fmt.Errorf("%w: code", ErrMissingArtifact)
	}

	if req.Video == nil && req.VideoPath == "" && req.Transcript == "" {
		return "", fmt.Errorf("%w: presentation", ErrMissingArtifact)
	}
	return source, nil
}

func inferCodeSource(req SubmissionRequest) artifacts.CodeSource {
	switch {
	case req.CodeDir != "":
		return artifacts.SourceDirectory
	case req.GitHubURL != "":
		return artifacts.SourceGitHub
	case req.ManualCode != "":
		return artifacts.SourceManual
	case len(req.CodeFiles) > 0:
		return artifacts.SourceFiles
	default:
		return ""
	}
}

func rejectReason(err error) string {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		return "invalid"
	case errors.Is(err, ErrMissingArtifact):
		return strings.TrimSpace(strings.TrimPrefix(err.Error(), ErrMissingArtifact.Error()+":"))
	default:
		return "other"
	}
}

func (s *evaluationService) Get(ctx context.Context, id uint) (models.Evaluation, error) {
	evaluation, err := s.deps.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Evaluation{}, ErrEvaluationNotFound
		}
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (s *evaluationService) List(ctx context.Context) ([]models.Evaluation, error) {
	return s.deps.Repo.List(ctx)
}

func (s *evaluationService) Report(ctx context.Context, id uint) (string, error) {
	evaluation, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return report.Render(evaluation.Result()), nil
}
