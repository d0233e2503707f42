package claims

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/hackathon-judge/pkg/ai"
)

// MaxClaims caps how many claims are taken from one description.
const MaxClaims = 10

// Extractor pulls factual claims out of a project description.
type Extractor interface {
	Extract(ctx context.Context, description string) ([]Claim, error)
}

var (
	sentenceSplit = regexp.MustCompile(`[.!?\n]+`)
	claimCue      = regexp.MustCompile(`(?i)(\d|%|\b(uses?|using|built|powered|implements?|achieves?|supports?|integrates?|leverages?|based on|trained|detects?|predicts?|accuracy|real-time|scalable|secure)\b)`)
)

// HeuristicExtractor keeps sentences that carry a claim cue such as a number
// or a verb like "uses" or "achieves".
type HeuristicExtractor struct{}

// Extract never fails.
func (HeuristicExtractor) Extract(_ context.Context, description string) ([]Claim, error) {
	out := make([]Claim, 0)
	seen := make(map[string]struct{})
	for _, sentence := range sentenceSplit.Split(description, -1) {
		text := strings.TrimSpace(sentence)
		if text == "" || !claimCue.MatchString(text) {
			continue
		}
		key := strings.ToLower(text)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Claim{Text: text})
		if len(out) == MaxClaims {
			break
		}
	}
	return out, nil
}

var claimsSchema = jsonschema.MustCompileString("claims.schema.json", `{
	"type": "object",
	"required": ["claims"],
	"properties": {
		"claims": {"type": "array", "items": {"type": "string"}}
	}
}`)

const extractionSystemPrompt = "You extract verifiable technical claims from hackathon project descriptions. " +
	"Respond with a JSON object {\"claims\": [\"...\"]} listing at most 10 short factual claims about what the " +
	"software does or how it is built. Return an empty list when there are none."

// ModelExtractor asks a hosted model for the claims and falls back to the
// heuristic when the model fails or answers malformed JSON.
type ModelExtractor struct {
	client   ai.Client
	fallback Extractor
	logger   zerolog.Logger
}

// NewModelExtractor wires a model-backed extractor.
func NewModelExtractor(client ai.Client, logger zerolog.Logger) *ModelExtractor {
	return &ModelExtractor{
		client:   client,
		fallback: HeuristicExtractor{},
		logger:   logger.With().Str("component", "claim_extractor").Logger(),
	}
}

// Extract returns the model's claims, or the heuristic ones on failure.
func (e *ModelExtractor) Extract(ctx context.Context, description string) ([]Claim, error) {
	if strings.TrimSpace(description) == "" {
		return []Claim{}, nil
	}

	claims, err := e.extract(ctx, description)
	if err != nil {
		e.logger.Warn().Err(err).Msg("model claim extraction failed, using heuristic")
		return e.fallback.Extract(ctx, description)
	}
	return claims, nil
}

func (e *ModelExtractor) extract(ctx context.Context, description string) ([]Claim, error) {
	content, err := e.client.CompleteJSON(ctx, extractionSystemPrompt, "Project description:\n"+description)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	var payload struct {
		Claims []string `json:"claims"`
	}
	if err := ai.DecodeJSON(content, claimsSchema, &payload); err != nil {
		return nil, err
	}

	out := make([]Claim, 0, len(payload.Claims))
	for _, text := range payload.Claims {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out = append(out, Claim{Text: text})
		if len(out) == MaxClaims {
			break
		}
	}
	return out, nil
}
