package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/noah-isme/hackathon-judge/internal/scoring"
)

var (
	providerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "judge",
		Subsystem: "evidence",
		Name:      "provider_duration_seconds",
		Help:      "Duration of evidence provider assessments",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"provider"})

	providerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judge",
		Subsystem: "evidence",
		Name:      "provider_failures_total",
		Help:      "Number of assessments that fell back to a default score",
	}, []string{"provider", "stage"})
)

// Artifacts is the read-only material a provider assesses.
type Artifacts struct {
	ProjectName      string
	Description      string
	PresentationText string
	// CodeDir is empty when no code was submitted.
	CodeDir string
	// SourceFiles are paths relative to CodeDir.
	SourceFiles []string
}

// PresentationInput joins the description and transcript the way the
// presentation and concept providers read them.
func (a Artifacts) PresentationInput() string {
	switch {
	case a.Description == "":
		return a.PresentationText
	case a.PresentationText == "":
		return a.Description
	default:
		return a.Description + "\n\n" + a.PresentationText
	}
}

// Outcome is what a provider contributes to the aggregate.
type Outcome struct {
	Scores  []scoring.CriterionScore
	Signals scoring.Signals
}

// Provider assesses one facet of a submission. Assess never fails: a broken
// collaborator yields a default score with evidence naming the failure.
type Provider interface {
	Name() string
	Assess(ctx context.Context, artifacts Artifacts) Outcome
}

// Timed bounds every assessment of the wrapped provider by timeout.
func Timed(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return timed{inner: p, timeout: timeout}
}

type timed struct {
	inner   Provider
	timeout time.Duration
}

func (t timed) Name() string { return t.inner.Name() }

func (t timed) Assess(ctx context.Context, artifacts Artifacts) Outcome {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	outcome := t.inner.Assess(ctx, artifacts)
	providerDuration.WithLabelValues(t.inner.Name()).Observe(time.Since(start).Seconds())
	return outcome
}

func score(c scoring.Criterion, value float64, evidence string) scoring.CriterionScore {
	return scoring.CriterionScore{Criterion: c, Value: scoring.Clamp(value), Evidence: evidence}
}

func failureEvidence(err error) string {
	return fmt.Sprintf("An error occurred: %v", err)
}
