package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var scoreSchema = jsonschema.MustCompileString("score.schema.json", `{
	"type": "object",
	"required": ["score"],
	"properties": {
		"score": {"type": "number"},
		"reasoning": {"type": "string"}
	}
}`)

// StripFences removes a surrounding markdown code fence, which some models
// emit even when asked for bare JSON.
func StripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		trimmed = trimmed[newline+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "json")
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// DecodeJSON validates content against schema and unmarshals it into out.
func DecodeJSON(content string, schema *jsonschema.Schema, out any) error {
	raw := StripFences(content)

	if schema != nil {
		var doc interface{}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return fmt.Errorf("parse model json: %w", err)
		}
		if err := schema.Validate(doc); err != nil {
			return fmt.Errorf("model json does not match schema: %w", err)
		}
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}

func parseScoreResponse(content string) (ScoreResult, error) {
	var payload struct {
		Score     float64 `json:"score"`
		Reasoning string  `json:"reasoning"`
	}
	if err := DecodeJSON(content, scoreSchema, &payload); err != nil {
		return ScoreResult{}, err
	}

	// Clamp before converting so huge values cannot overflow the int.
	score := math.Round(math.Max(0, math.Min(100, payload.Score)))

	return ScoreResult{Score: int(score), Reasoning: payload.Reasoning}, nil
}
