package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/scoring"
	"github.com/noah-isme/hackathon-judge/pkg/ai"
)

const (
	impactPrompt = "Analyze the following hackathon project description for its potential real-world impact. " +
		"Consider the problem's significance, the target audience, and the scalability of the solution. " +
		"Provide a score from 0 to 100 and a brief reasoning.\n\nProject description:\n"
	feasibilityPrompt = "Analyze the following hackathon project description for its technical feasibility. " +
		"Consider whether the proposed technology is realistic to build, whether the scope fits the team and " +
		"timeframe, and whether the claims are technically sound. Provide a score from 0 to 100 and a brief " +
		"reasoning.\n\nProject description:\n"
)

// Concept scores impact and feasibility with two model prompts.
type Concept struct {
	client ai.Client
	logger zerolog.Logger
}

// NewConcept wires the concept provider.
func NewConcept(client ai.Client, logger zerolog.Logger) *Concept {
	return &Concept{client: client, logger: logger.With().Str("component", "concept").Logger()}
}

// Name identifies the provider in logs and metrics.
func (p *Concept) Name() string { return "concept" }

// Assess produces the impact and feasibility scores. Each prompt fails
// independently.
func (p *Concept) Assess(ctx context.Context, artifacts Artifacts) Outcome {
	description := strings.TrimSpace(artifacts.Description)
	if description == "" {
		return Outcome{Scores: []scoring.CriterionScore{
			score(scoring.CriterionImpact, 0, "No project description provided."),
			score(scoring.CriterionFeasibility, 0, "No project description provided."),
		}}
	}

	return Outcome{Scores: []scoring.CriterionScore{
		p.ask(ctx, scoring.CriterionImpact, impactPrompt+description, artifacts.ProjectName),
		p.ask(ctx, scoring.CriterionFeasibility, feasibilityPrompt+description, artifacts.ProjectName),
	}}
}

func (p *Concept) ask(ctx context.Context, c scoring.Criterion, prompt, project string) scoring.CriterionScore {
	result, err := p.client.ScoreText(ctx, prompt)
	if err != nil {
		providerFailures.WithLabelValues(p.Name(), string(c)).Inc()
		p.logger.Warn().Err(err).Str("project", project).Str("criterion", string(c)).Msg("model scoring failed")
		return score(c, 0, failureEvidence(err))
	}
	return score(c, float64(result.Score), fmt.Sprintf("Model reasoning: %s", strings.TrimSpace(result.Reasoning)))
}
