package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "judge",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of hosted model requests",
	}, []string{"model", "operation"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judge",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of failed hosted model requests",
	}, []string{"model", "operation"})
)

const scoringSystemPrompt = "You are an expert hackathon judge. Respond with a JSON object containing an integer " +
	"score from 0 to 100 and a short reasoning string, for example {\"score\": 75, \"reasoning\": \"...\"}."

// OpenAIConfig defines configuration options for the OpenAI client.
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	TranscriptionModel string
	MaxTokens          int
	Temperature        float32
	Logger             zerolog.Logger
}

// OpenAIClient implements Client and Transcriber against the OpenAI API or
// any endpoint that speaks the same protocol.
type OpenAIClient struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIClient builds a new client using the provided configuration.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = openai.Whisper1
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/noah-isme/hackathon-judge/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: tracer,
		logger: logger.With().Str("component", "openai").Logger(),
	}, nil
}

// ScoreText grades prompt and parses the {score, reasoning} answer.
func (c *OpenAIClient) ScoreText(ctx context.Context, prompt string) (ScoreResult, error) {
	content, err := c.complete(ctx, "score", scoringSystemPrompt, prompt)
	if err != nil {
		return ScoreResult{}, err
	}

	result, err := parseScoreResponse(content)
	if err != nil {
		aiFailures.WithLabelValues(c.cfg.Model, "score").Inc()
		return ScoreResult{}, err
	}
	return result, nil
}

// CompleteJSON returns the JSON object produced for prompt.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	content, err := c.complete(ctx, "complete", system, prompt)
	if err != nil {
		return "", err
	}
	return StripFences(content), nil
}

func (c *OpenAIClient) complete(parent context.Context, operation, system, prompt string) (string, error) {
	ctx, span := c.tracer.Start(parent, "openai."+operation, trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(c.cfg.Model, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(c.cfg.Model, operation).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai %s: %w", operation, err)
	}

	if len(resp.Choices) == 0 {
		aiFailures.WithLabelValues(c.cfg.Model, operation).Inc()
		span.RecordError(ErrEmptyResponse)
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", ErrEmptyResponse
	}

	c.logger.Debug().
		Str("operation", operation).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("model request completed")

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Transcribe sends the recording at path to the speech-to-text endpoint.
func (c *OpenAIClient) Transcribe(parent context.Context, path string) (string, error) {
	ctx, span := c.tracer.Start(parent, "openai.transcribe", trace.WithAttributes(
		attribute.String("model", c.cfg.TranscriptionModel),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.TranscriptionModel,
		FilePath: path,
	})
	aiDuration.WithLabelValues(c.cfg.TranscriptionModel, "transcribe").Observe(time.Since(start).Seconds())
	if err != nil {
		aiFailures.WithLabelValues(c.cfg.TranscriptionModel, "transcribe").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai transcribe: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}
