package evidence

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/hackathon-judge/internal/scoring"
	"github.com/noah-isme/hackathon-judge/pkg/ai"
)

const (
	grammarWeight      = 0.4
	sentimentWeight    = 0.3
	humanWrittenWeight = 0.3

	// Each grammar issue per 100 words costs this many points.
	grammarPenaltyPer100Words = 10.0
	maxPresentationChars      = 6000
)

var presentationSchema = jsonschema.MustCompileString("presentation.schema.json", `{
	"type": "object",
	"required": ["grammar_issues", "sentiment_label", "sentiment_confidence", "human_written_score"],
	"properties": {
		"grammar_issues": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"mistake": {"type": "string"},
					"correction": {"type": "string"}
				}
			}
		},
		"sentiment_label": {"type": "string", "enum": ["POSITIVE", "NEGATIVE", "positive", "negative"]},
		"sentiment_confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"human_written_score": {"type": "number", "minimum": 0, "maximum": 100},
		"suggestion": {"type": "string"}
	}
}`)

const presentationSystemPrompt = "You review hackathon pitch text. Respond with a JSON object: " +
	"grammar_issues (array of {mistake, correction}), sentiment_label (POSITIVE or NEGATIVE), " +
	"sentiment_confidence (0 to 1), human_written_score (0 to 100, the probability the text was written by a human) " +
	"and suggestion (one sentence on how to improve the pitch)."

// GrammarIssue is one mistake the model flagged.
type GrammarIssue struct {
	Mistake    string `json:"mistake"`
	Correction string `json:"correction"`
}

// TextAnalysis is the structured reading of the pitch text.
type TextAnalysis struct {
	GrammarIssues       []GrammarIssue `json:"grammar_issues"`
	SentimentLabel      string         `json:"sentiment_label"`
	SentimentConfidence float64        `json:"sentiment_confidence"`
	HumanWrittenScore   float64        `json:"human_written_score"`
	Suggestion          string         `json:"suggestion"`
}

// Presentation scores grammar, tone and authorship of the pitch.
type Presentation struct {
	client ai.Client
	logger zerolog.Logger
}

// NewPresentation wires the presentation provider.
func NewPresentation(client ai.Client, logger zerolog.Logger) *Presentation {
	return &Presentation{client: client, logger: logger.With().Str("component", "presentation").Logger()}
}

// Name identifies the provider in logs and metrics.
func (p *Presentation) Name() string { return "presentation" }

// Assess analyses the description and transcript together.
func (p *Presentation) Assess(ctx context.Context, artifacts Artifacts) Outcome {
	text := strings.TrimSpace(artifacts.PresentationInput())
	if text == "" {
		return Outcome{Scores: []scoring.CriterionScore{
			score(scoring.CriterionPresentation, 0, "No presentation text available."),
		}}
	}

	analysis, err := p.analyse(ctx, text)
	if err != nil {
		providerFailures.WithLabelValues(p.Name(), "model").Inc()
		p.logger.Warn().Err(err).Str("project", artifacts.ProjectName).Msg("text analysis failed")
		return Outcome{Scores: []scoring.CriterionScore{
			score(scoring.CriterionPresentation, 0, fmt.Sprintf("Text analysis failed: %v", err)),
		}}
	}

	words := len(strings.Fields(text))
	grammar := GrammarScore(len(analysis.GrammarIssues), words)
	sentiment := SentimentScore(analysis.SentimentLabel, analysis.SentimentConfidence)
	human := scoring.Clamp(analysis.HumanWrittenScore)
	value := grammar*grammarWeight + sentiment*sentimentWeight + human*humanWrittenWeight

	evidence := fmt.Sprintf(
		"Grammar: %d potential issue(s) (%.1f/100). Sentiment: %s (%.1f/100). Human-written probability: %.1f%%.",
		len(analysis.GrammarIssues), grammar, strings.ToUpper(analysis.SentimentLabel), sentiment, human,
	)
	if s := strings.TrimSpace(analysis.Suggestion); s != "" {
		evidence += " Suggestion: " + s
	}

	return Outcome{
		Scores:  []scoring.CriterionScore{score(scoring.CriterionPresentation, value, evidence)},
		Signals: scoring.Signals{HumanWritten: &human},
	}
}

func (p *Presentation) analyse(ctx context.Context, text string) (TextAnalysis, error) {
	text = truncateRunes(text, maxPresentationChars)

	content, err := p.client.CompleteJSON(ctx, presentationSystemPrompt, "Pitch text:\n"+text)
	if err != nil {
		return TextAnalysis{}, err
	}

	var analysis TextAnalysis
	if err := ai.DecodeJSON(content, presentationSchema, &analysis); err != nil {
		return TextAnalysis{}, err
	}
	return analysis, nil
}

// truncateRunes keeps at most limit runes of text.
func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}

// GrammarScore deducts points per grammar issue per 100 words.
func GrammarScore(issues, words int) float64 {
	if words <= 0 {
		return 100
	}
	per100 := float64(issues) / float64(words) * 100
	return math.Max(0, 100-per100*grammarPenaltyPer100Words)
}

// SentimentScore maps a sentiment label and its confidence onto 0-100:
// confident positive text approaches 100, confident negative text 0.
func SentimentScore(label string, confidence float64) float64 {
	confidence = math.Max(0, math.Min(1, confidence))
	if strings.EqualFold(label, "POSITIVE") {
		return 50 + confidence*50
	}
	return 50 - confidence*50
}
