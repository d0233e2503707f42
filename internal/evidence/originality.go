package evidence

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/scoring"
	"github.com/noah-isme/hackathon-judge/pkg/ai"
)

// BoilerplatePhrases are pitch clichés that cost originality points.
var BoilerplatePhrases = []string{
	"built with react",
	"powered by ai",
	"a decentralized application",
	"on the blockchain",
}

const (
	boilerplatePenalty = 25.0
	originalityPrompt  = "Rate the originality of the following hackathon project idea compared with typical " +
		"hackathon entries. Penalise generic ideas and buzzword-driven pitches. Provide a score from 0 to 100 " +
		"and a brief reasoning.\n\nProject description:\n"
)

// Originality combines a boilerplate detector with an optional model opinion.
type Originality struct {
	client ai.Client
	logger zerolog.Logger
}

// NewOriginality wires the originality provider. client may be nil, in which
// case only the boilerplate heuristic is used.
func NewOriginality(client ai.Client, logger zerolog.Logger) *Originality {
	return &Originality{client: client, logger: logger.With().Str("component", "originality").Logger()}
}

// Name identifies the provider in logs and metrics.
func (p *Originality) Name() string { return "originality" }

// Assess scores the description's originality.
func (p *Originality) Assess(ctx context.Context, artifacts Artifacts) Outcome {
	heuristic, found := BoilerplateScore(artifacts.Description)
	evidence := fmt.Sprintf("Found %d generic boilerplate phrase(s).", len(found))
	if len(found) > 0 {
		evidence = fmt.Sprintf("Found %d generic boilerplate phrase(s): %s.", len(found), strings.Join(found, ", "))
	}

	value := heuristic
	if p.client != nil && strings.TrimSpace(artifacts.Description) != "" {
		result, err := p.client.ScoreText(ctx, originalityPrompt+artifacts.Description)
		if err != nil {
			providerFailures.WithLabelValues(p.Name(), "model").Inc()
			p.logger.Warn().Err(err).Str("project", artifacts.ProjectName).Msg("model originality failed, using heuristic")
		} else {
			value = (heuristic + float64(result.Score)) / 2
			evidence += fmt.Sprintf(" Model rated originality %d/100: %s", result.Score, strings.TrimSpace(result.Reasoning))
		}
	}

	return Outcome{Scores: []scoring.CriterionScore{score(scoring.CriterionOriginality, value, evidence)}}
}

// BoilerplateScore returns 100 minus 25 per boilerplate phrase found, and the
// phrases that matched.
func BoilerplateScore(description string) (float64, []string) {
	lower := strings.ToLower(description)
	found := make([]string, 0)
	for _, phrase := range BoilerplatePhrases {
		if strings.Contains(lower, phrase) {
			found = append(found, phrase)
		}
	}
	return math.Max(0, 100-float64(len(found))*boilerplatePenalty), found
}
