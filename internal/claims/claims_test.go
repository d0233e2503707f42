package claims

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hackathon-judge/pkg/ai"
)

func TestVerifyWithoutClaimsScoresFullMarks(t *testing.T) {
	result := Verify(nil, "print('hi')")
	require.Equal(t, 100.0, result.Score)
	require.False(t, result.HasClaims())
}

func TestVerifyMatchesKeywordsCaseInsensitively(t *testing.T) {
	code := "import tensorflow as tf\nmodel = NeuralNetwork()\n"
	claims := []Claim{
		{Text: "Uses a neural network"},
		{Text: "Achieves 95% accuracy"},
	}

	result := Verify(claims, code)

	require.Equal(t, []Claim{{Text: "Uses a neural network"}}, result.Verified)
	require.Equal(t, []Claim{{Text: "Achieves 95% accuracy"}}, result.Unverified)
	require.Equal(t, 50.0, result.Score)
}

func TestVerifyEndToEndNeuralNetworkScenario(t *testing.T) {
	code := "# neural network training\naccuracy = evaluate(model)\n"
	claims := []Claim{
		{Text: "uses a neural network"},
		{Text: "achieves 95% accuracy"},
	}

	result := Verify(claims, code)
	require.Equal(t, 100.0, result.Score)
	require.Empty(t, result.Unverified)
}

func TestVerifyIgnoresShortWords(t *testing.T) {
	result := Verify([]Claim{{Text: "an AI app"}}, "an ai app")
	require.Equal(t, 0.0, result.Score)
	require.Len(t, result.Unverified, 1)
}

func TestVerifyEmptyCodeLeavesClaimsUnverified(t *testing.T) {
	result := Verify([]Claim{{Text: "Built with React"}}, "")
	require.Equal(t, 0.0, result.Score)
}

func TestVerifyScoreIsMonotonicInVerifiedClaims(t *testing.T) {
	claims := []Claim{{Text: "alpha feature"}, {Text: "bravo feature"}, {Text: "charlie module"}}
	codes := []string{"", "alpha", "alpha bravo", "alpha bravo charlie"}

	previous := -1.0
	for _, code := range codes {
		result := Verify(claims, code)
		require.GreaterOrEqual(t, result.Score, previous)
		previous = result.Score
	}
	require.Equal(t, 100.0, previous)
}

func TestKeywordsTrimPunctuation(t *testing.T) {
	require.Equal(t, []string{"uses", "redis,postgres", "caching"}, Keywords("Uses (redis,postgres) for caching."))
}

func TestHeuristicExtractorKeepsClaimSentences(t *testing.T) {
	description := "Welcome to our project. It uses a neural network to classify images! Achieves 95% accuracy. We had fun."

	claims, err := HeuristicExtractor{}.Extract(context.Background(), description)
	require.NoError(t, err)
	require.Equal(t, []Claim{
		{Text: "It uses a neural network to classify images"},
		{Text: "Achieves 95% accuracy"},
	}, claims)
}

type stubClient struct {
	content string
	err     error
}

func (s stubClient) ScoreText(context.Context, string) (ai.ScoreResult, error) {
	return ai.ScoreResult{}, errors.New("not used")
}

func (s stubClient) CompleteJSON(context.Context, string, string) (string, error) {
	return s.content, s.err
}

func TestModelExtractorParsesClaims(t *testing.T) {
	extractor := NewModelExtractor(stubClient{content: "```json\n{\"claims\": [\"Uses OpenCV\", \" \", \"Runs offline\"]}\n```"}, zerolog.Nop())

	claims, err := extractor.Extract(context.Background(), "Some description")
	require.NoError(t, err)
	require.Equal(t, []Claim{{Text: "Uses OpenCV"}, {Text: "Runs offline"}}, claims)
}

func TestModelExtractorFallsBackToHeuristic(t *testing.T) {
	cases := []stubClient{
		{err: errors.New("rate limited")},
		{content: `{"claims": "not a list"}`},
		{content: `not json`},
	}

	for _, client := range cases {
		extractor := NewModelExtractor(client, zerolog.Nop())
		claims, err := extractor.Extract(context.Background(), "It uses Redis for caching.")
		require.NoError(t, err)
		require.Equal(t, []Claim{{Text: "It uses Redis for caching"}}, claims)
	}
}
