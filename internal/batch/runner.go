package batch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/dto"
	"github.com/noah-isme/hackathon-judge/internal/queue"
	"github.com/noah-isme/hackathon-judge/internal/report"
	"github.com/noah-isme/hackathon-judge/internal/scoring"
	"github.com/noah-isme/hackathon-judge/internal/service"
)

// Output artifact names written after a batch run.
const (
	ResultsJSON     = "results.json"
	LeaderboardText = "leaderboard.txt"
	ResultsCSV      = "results.csv"
	SummaryReport   = "summary_report.txt"
)

// Failure records an entry that could not be evaluated.
type Failure struct {
	Name string
	Err  error
}

// Outcome is what a batch run produced.
type Outcome struct {
	Results  []scoring.Result
	Failures []Failure
	Written  []string
}

// Runner evaluates manifest entries one after the other.
type Runner struct {
	evaluations service.EvaluationService
	store       report.ArtifactStore
	logger      zerolog.Logger
	now         func() time.Time
}

// NewRunner returns a runner writing its exports to store.
func NewRunner(evaluations service.EvaluationService, store report.ArtifactStore, logger zerolog.Logger) *Runner {
	return &Runner{
		evaluations: evaluations,
		store:       store,
		logger:      logger.With().Str("component", "batch_runner").Logger(),
		now:         time.Now,
	}
}

// Run evaluates every entry. A failing entry is logged and skipped; the
// exports cover the entries that were scored.
func (r *Runner) Run(ctx context.Context, manifest Manifest, baseDir string) (Outcome, error) {
	var outcome Outcome

	for i, entry := range manifest.Submissions {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		logger := r.logger.With().Int("entry", i+1).Str("project", entry.Name).Logger()
		logger.Info().Msgf("evaluating %d/%d", i+1, len(manifest.Submissions))

		result, err := r.evaluate(ctx, entry, baseDir)
		if err != nil {
			logger.Error().Err(err).Msg("entry skipped")
			outcome.Failures = append(outcome.Failures, Failure{Name: entry.Name, Err: err})
			continue
		}
		outcome.Results = append(outcome.Results, result)
		logger.Info().Float64("final_score", result.FinalScore).Str("rating", result.Rating).Msg("entry evaluated")
	}

	written, err := r.export(ctx, outcome.Results)
	outcome.Written = written
	return outcome, err
}

func (r *Runner) evaluate(ctx context.Context, entry dto.BatchEntry, baseDir string) (scoring.Result, error) {
	req, err := ToRequest(entry, baseDir)
	if err != nil {
		return scoring.Result{}, err
	}
	evaluation, err := r.evaluations.Evaluate(ctx, req)
	if err != nil {
		return scoring.Result{}, err
	}
	return evaluation.Result(), nil
}

func (r *Runner) export(ctx context.Context, results []scoring.Result) ([]string, error) {
	if r.store == nil {
		return nil, nil
	}
	generatedAt := r.now().UTC()

	payload, err := report.MarshalResults(results, generatedAt)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	var csvBuf bytes.Buffer
	if err := report.WriteCSV(&csvBuf, results); err != nil {
		return nil, err
	}

	exports := []struct {
		name        string
		body        []byte
		contentType string
	}{
		{ResultsJSON, payload, "application/json"},
		{LeaderboardText, []byte(report.Leaderboard(results)), "text/plain; charset=utf-8"},
		{ResultsCSV, csvBuf.Bytes(), "text/csv"},
		{SummaryReport, []byte(report.Summary(results, generatedAt)), "text/plain; charset=utf-8"},
	}

	written := make([]string, 0, len(exports))
	for _, e := range exports {
		location, err := r.store.Put(ctx, e.name, e.body, e.contentType)
		if err != nil {
			return written, fmt.Errorf("write %s: %w", e.name, err)
		}
		written = append(written, location)
	}
	return written, nil
}

// Enqueue pushes every entry to the worker queue and returns the task ids in
// manifest order.
func Enqueue(ctx context.Context, enqueuer queue.Enqueuer, entries []dto.BatchEntry, baseDir, submittedBy string) ([]string, error) {
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		id, err := enqueuer.EnqueueEvaluation(ctx, queue.EvaluationPayload{
			Entry:       entry,
			BaseDir:     baseDir,
			SubmittedBy: submittedBy,
		})
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
