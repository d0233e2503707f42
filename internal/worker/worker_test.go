package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hackathon-judge/internal/artifacts"
	"github.com/noah-isme/hackathon-judge/internal/dto"
	"github.com/noah-isme/hackathon-judge/internal/middleware"
	"github.com/noah-isme/hackathon-judge/internal/models"
	"github.com/noah-isme/hackathon-judge/internal/queue"
	"github.com/noah-isme/hackathon-judge/internal/service"
)

type stubEvaluations struct {
	err      error
	requests []service.SubmissionRequest
	ctx      context.Context
}

func (s *stubEvaluations) Evaluate(ctx context.Context, req service.SubmissionRequest) (models.Evaluation, error) {
	s.ctx = ctx
	s.requests = append(s.requests, req)
	if s.err != nil {
		return models.Evaluation{}, s.err
	}
	return models.Evaluation{ID: 1, ProjectName: req.ProjectName, FinalScore: 70, Rating: "Good"}, nil
}

func (s *stubEvaluations) Get(context.Context, uint) (models.Evaluation, error) {
	return models.Evaluation{}, service.ErrEvaluationNotFound
}

func (s *stubEvaluations) List(context.Context) ([]models.Evaluation, error) { return nil, nil }

func (s *stubEvaluations) Report(context.Context, uint) (string, error) { return "", nil }

func newTask(t *testing.T, entry dto.BatchEntry) *asynq.Task {
	return newTaskIn(t, entry, "")
}

func newTaskIn(t *testing.T, entry dto.BatchEntry, baseDir string) *asynq.Task {
	t.Helper()
	task, err := queue.NewEvaluationTask(queue.EvaluationPayload{Entry: entry, BaseDir: baseDir, SubmittedBy: "ada"})
	require.NoError(t, err)
	return task
}

func TestHandleEvaluationRunsPipeline(t *testing.T) {
	evaluations := &stubEvaluations{}
	handler := NewHandler(evaluations, zerolog.Nop())

	err := handler.HandleEvaluation(context.Background(), newTaskIn(t, dto.BatchEntry{
		Name:        "Alpha",
		Description: "A planner.",
		CodeDir:     "/srv/alpha",
	}, "/srv"))
	require.NoError(t, err)
	require.Len(t, evaluations.requests, 1)
	require.Equal(t, "ada", evaluations.requests[0].SubmittedBy)
	require.Equal(t, artifacts.SourceDirectory, evaluations.requests[0].CodeSource)
	require.Empty(t, middleware.CorrelationIDFromContext(evaluations.ctx))
}

func TestHandleEvaluationSkipsRetryForPermanentErrors(t *testing.T) {
	cases := map[string]error{
		"missing artifact": fmt.Errorf("%w: code", service.ErrMissingArtifact),
		"bad repository":   artifacts.ErrInvalidRepositoryURL,
		"not a video":      artifacts.ErrUnsupportedVideo,
	}
	for name, cause := range cases {
		t.Run(name, func(t *testing.T) {
			handler := NewHandler(&stubEvaluations{err: cause}, zerolog.Nop())
			err := handler.HandleEvaluation(context.Background(), newTask(t, dto.BatchEntry{Name: "Alpha", Description: "x"}))
			require.ErrorIs(t, err, asynq.SkipRetry)
		})
	}
}

func TestHandleEvaluationRetriesTransientErrors(t *testing.T) {
	transient := errors.New("database unavailable")
	handler := NewHandler(&stubEvaluations{err: transient}, zerolog.Nop())

	err := handler.HandleEvaluation(context.Background(), newTask(t, dto.BatchEntry{Name: "Alpha", Description: "x"}))
	require.ErrorIs(t, err, transient)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleEvaluationRejectsMalformedPayloads(t *testing.T) {
	evaluations := &stubEvaluations{}
	handler := NewHandler(evaluations, zerolog.Nop())

	err := handler.HandleEvaluation(context.Background(), asynq.NewTask(queue.TypeEvaluationRun, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = handler.HandleEvaluation(context.Background(), newTaskIn(t, dto.BatchEntry{Name: "Alpha", DescriptionFile: "/missing/description.txt"}, "/missing"))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, evaluations.requests)
}

func TestHandleEvaluationRejectsPathsWithoutBaseDir(t *testing.T) {
	entries := map[string]dto.BatchEntry{
		"description file": {Name: "Alpha", DescriptionFile: "/etc/hostname"},
		"code dir":         {Name: "Alpha", Description: "x", CodeDir: "/"},
		"code file":        {Name: "Alpha", Description: "x", CodeFile: "/etc/passwd"},
		"video":            {Name: "Alpha", Description: "x", GitHubURL: "https://github.com/acme/alpha", Video: "/tmp/pitch.mp4"},
		"transcript file":  {Name: "Alpha", Description: "x", GitHubURL: "https://github.com/acme/alpha", TranscriptFile: "/etc/hostname"},
	}
	for name, entry := range entries {
		t.Run(name, func(t *testing.T) {
			evaluations := &stubEvaluations{}
			handler := NewHandler(evaluations, zerolog.Nop())

			err := handler.HandleEvaluation(context.Background(), newTask(t, entry))
			require.ErrorIs(t, err, asynq.SkipRetry)
			require.ErrorContains(t, err, ErrPathsWithoutBaseDir.Error())
			require.Empty(t, evaluations.requests)
		})
	}
}

func TestHandleEvaluationAcceptsInlineContent(t *testing.T) {
	evaluations := &stubEvaluations{}
	handler := NewHandler(evaluations, zerolog.Nop())

	err := handler.HandleEvaluation(context.Background(), newTask(t, dto.BatchEntry{
		Name:        "Beta",
		Description: "A planner.",
		Code:        "def plan():\n    return []\n",
		Transcript:  "We plan trips.",
	}))
	require.NoError(t, err)
	require.Len(t, evaluations.requests, 1)
	require.Equal(t, artifacts.SourceManual, evaluations.requests[0].CodeSource)
	require.Equal(t, "def plan():\n    return []\n", evaluations.requests[0].ManualCode)
	require.Equal(t, "We plan trips.", evaluations.requests[0].Transcript)
}

func TestNewServerRejectsBadRedisURL(t *testing.T) {
	_, err := NewServer(ServerConfig{RedisURL: "http://localhost:6379"}, zerolog.Nop())
	require.Error(t, err)

	srv, err := NewServer(ServerConfig{RedisURL: "redis://localhost:6379/0"}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, srv)
}
