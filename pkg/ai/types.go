package ai

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when the model produced no usable choice.
	ErrEmptyResponse = errors.New("model returned no choices")
	// ErrDisabled is returned by Disabled for every call.
	ErrDisabled = errors.New("no hosted model configured")
)

// ScoreResult is the structured answer of a scoring prompt.
type ScoreResult struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// Client describes a hosted language model that answers in JSON.
type Client interface {
	// ScoreText asks the model to grade prompt on a 0-100 scale.
	ScoreText(ctx context.Context, prompt string) (ScoreResult, error)
	// CompleteJSON returns the raw JSON object the model produced for prompt.
	CompleteJSON(ctx context.Context, system, prompt string) (string, error)
}

// Transcriber converts the audio track of a recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Disabled stands in for a model when no API key is configured. Providers
// that depend on it fall back to their default scores.
type Disabled struct{}

func (Disabled) ScoreText(context.Context, string) (ScoreResult, error) {
	return ScoreResult{}, ErrDisabled
}

func (Disabled) CompleteJSON(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}
