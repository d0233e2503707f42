package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hackathon-judge/internal/artifacts"
	"github.com/noah-isme/hackathon-judge/internal/claims"
	"github.com/noah-isme/hackathon-judge/internal/dto"
	"github.com/noah-isme/hackathon-judge/internal/models"
	"github.com/noah-isme/hackathon-judge/internal/queue"
	"github.com/noah-isme/hackathon-judge/internal/report"
	"github.com/noah-isme/hackathon-judge/internal/scoring"
	"github.com/noah-isme/hackathon-judge/internal/service"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "submissions.yaml", `
submissions:
  - name: Alpha
    description_file: alpha/description.txt
    code_dir: alpha/src
    transcript_file: alpha/transcript.txt
  - name: Beta
    description: Inline pitch.
    github_url: https://github.com/acme/beta
    video: beta/pitch.mp4
`)

	manifest, err := LoadManifest(path, nil)
	require.NoError(t, err)
	require.Len(t, manifest.Submissions, 2)
	require.Equal(t, "alpha/src", manifest.Submissions[0].CodeDir)
	require.Equal(t, "https://github.com/acme/beta", manifest.Submissions[1].GitHubURL)
}

func TestLoadManifestRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"unknown key":  "submissions:\n  - name: Alpha\n    slides: deck.pdf\n",
		"missing name": "submissions:\n  - description: No name here.\n",
		"bad url":      "submissions:\n  - name: Alpha\n    github_url: not a url\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, name+".yaml", body)
			_, err := LoadManifest(path, nil)
			require.Error(t, err)
		})
	}

	empty := writeFile(t, dir, "empty.yaml", "submissions: []\n")
	_, err := LoadManifest(empty, nil)
	require.ErrorIs(t, err, ErrEmptyManifest)

	_, err = LoadManifest(filepath.Join(dir, "missing.yaml"), nil)
	require.Error(t, err)
}

func TestToRequestResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "alpha/description.txt", "  A study planner.\n")
	writeFile(t, dir, "alpha/transcript.txt", "Hello judges.\n")
	writeFile(t, dir, "alpha/main.py", "print('hi')\n")

	req, err := ToRequest(dto.BatchEntry{
		Name:            "Alpha",
		DescriptionFile: "alpha/description.txt",
		CodeFile:        "alpha/main.py",
		TranscriptFile:  "alpha/transcript.txt",
		Video:           "alpha/pitch.mp4",
	}, dir)
	require.NoError(t, err)
	require.Equal(t, "A study planner.", req.Description)
	require.Equal(t, artifacts.SourceManual, req.CodeSource)
	require.Equal(t, "print('hi')", req.ManualCode)
	require.Equal(t, "Hello judges.", req.Transcript)
	require.Equal(t, filepath.Join(dir, "alpha/pitch.mp4"), req.VideoPath)

	req, err = ToRequest(dto.BatchEntry{Name: "Beta", Description: "x", CodeDir: "/abs/beta"}, dir)
	require.NoError(t, err)
	require.Equal(t, artifacts.SourceDirectory, req.CodeSource)
	require.Equal(t, "/abs/beta", req.CodeDir)

	_, err = ToRequest(dto.BatchEntry{Name: "Gamma", DescriptionFile: "nope.txt"}, dir)
	require.ErrorContains(t, err, "description")
}

func TestToRequestUsesInlineContent(t *testing.T) {
	entry := dto.BatchEntry{Name: "Delta", Description: "A tutor.", Code: "print('hi')", Transcript: "Hello judges."}
	require.Empty(t, entry.LocalPaths())

	req, err := ToRequest(entry, "")
	require.NoError(t, err)
	require.Equal(t, artifacts.SourceManual, req.CodeSource)
	require.Equal(t, "print('hi')", req.ManualCode)
	require.Equal(t, "Hello judges.", req.Transcript)

	entry.CodeDir = "/srv/delta"
	entry.Video = "pitch.mp4"
	require.Equal(t, []string{"code_dir", "video"}, entry.LocalPaths())
}

type stubEvaluations struct {
	calls []string
}

func (s *stubEvaluations) Evaluate(_ context.Context, req service.SubmissionRequest) (models.Evaluation, error) {
	s.calls = append(s.calls, req.ProjectName)
	if req.ProjectName == "Broken" {
		return models.Evaluation{}, service.ErrMissingArtifact
	}

	value := 70.0
	if req.ProjectName == "Beta" {
		value = 90
	}
	scores := make([]scoring.CriterionScore, 0, len(scoring.Criteria))
	for _, c := range scoring.Criteria {
		scores = append(scores, scoring.CriterionScore{Criterion: c, Value: value, Evidence: "stub"})
	}
	result := scoring.Aggregate(scoring.Input{
		Submission:   scoring.Submission{ProjectName: req.ProjectName, Description: req.Description, Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		Scores:       scores,
		Verification: claims.Verify(nil, ""),
	})
	return models.NewEvaluation(result), nil
}

func (s *stubEvaluations) Get(context.Context, uint) (models.Evaluation, error) {
	return models.Evaluation{}, service.ErrEvaluationNotFound
}

func (s *stubEvaluations) List(context.Context) ([]models.Evaluation, error) { return nil, nil }

func (s *stubEvaluations) Report(context.Context, uint) (string, error) { return "", nil }

func TestRunnerSkipsFailuresAndWritesExports(t *testing.T) {
	out := t.TempDir()
	store, err := report.NewFileStore(out)
	require.NoError(t, err)

	evaluations := &stubEvaluations{}
	runner := NewRunner(evaluations, store, zerolog.Nop())

	outcome, err := runner.Run(context.Background(), Manifest{Submissions: []dto.BatchEntry{
		{Name: "Alpha", Description: "a"},
		{Name: "Broken", Description: "b"},
		{Name: "Beta", Description: "c"},
	}}, "")
	require.NoError(t, err)

	require.Equal(t, []string{"Alpha", "Broken", "Beta"}, evaluations.calls)
	require.Len(t, outcome.Results, 2)
	require.Len(t, outcome.Failures, 1)
	require.Equal(t, "Broken", outcome.Failures[0].Name)
	require.ErrorIs(t, outcome.Failures[0].Err, service.ErrMissingArtifact)
	require.Len(t, outcome.Written, 4)

	for _, name := range []string{ResultsJSON, LeaderboardText, ResultsCSV, SummaryReport} {
		require.FileExists(t, filepath.Join(out, name))
	}

	board, err := os.ReadFile(filepath.Join(out, LeaderboardText))
	require.NoError(t, err)
	require.Contains(t, string(board), "Beta")
	require.Contains(t, string(board), "Total Projects Evaluated: 2")
}

func TestRunnerStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	evaluations := &stubEvaluations{}
	_, err := NewRunner(evaluations, nil, zerolog.Nop()).Run(ctx, Manifest{Submissions: []dto.BatchEntry{{Name: "Alpha"}}}, "")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, evaluations.calls)
}

type fakeEnqueuer struct {
	payloads []queue.EvaluationPayload
	failOn   string
}

func (f *fakeEnqueuer) EnqueueEvaluation(_ context.Context, payload queue.EvaluationPayload) (string, error) {
	if payload.Entry.Name == f.failOn {
		return "", errors.New("queue unavailable")
	}
	f.payloads = append(f.payloads, payload)
	return "task-" + payload.Entry.Name, nil
}

func TestEnqueue(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	ids, err := Enqueue(context.Background(), enqueuer, []dto.BatchEntry{{Name: "Alpha"}, {Name: "Beta"}}, "/data", "ada")
	require.NoError(t, err)
	require.Equal(t, []string{"task-Alpha", "task-Beta"}, ids)
	require.Equal(t, "/data", enqueuer.payloads[1].BaseDir)
	require.Equal(t, "ada", enqueuer.payloads[0].SubmittedBy)

	enqueuer = &fakeEnqueuer{failOn: "Beta"}
	ids, err = Enqueue(context.Background(), enqueuer, []dto.BatchEntry{{Name: "Alpha"}, {Name: "Beta"}}, "", "")
	require.Error(t, err)
	require.Equal(t, []string{"task-Alpha"}, ids)
}
