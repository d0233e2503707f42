package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hackathon-judge/internal/claims"
	"github.com/noah-isme/hackathon-judge/internal/scoring"
)

func resultFor(name string, value float64, verification claims.Verification) scoring.Result {
	scores := make([]scoring.CriterionScore, 0, len(scoring.Criteria))
	for _, c := range scoring.Criteria {
		scores = append(scores, scoring.CriterionScore{Criterion: c, Value: value, Evidence: "Evidence for " + string(c)})
	}
	return scoring.Aggregate(scoring.Input{
		Submission:   scoring.Submission{ProjectName: name, Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		Scores:       scores,
		Verification: verification,
	})
}

func withFinal(name string, final float64) scoring.Result {
	r := resultFor(name, 50, claims.Verify(nil, ""))
	r.FinalScore = final
	r.Rating = scoring.Rate(final)
	return r
}

func TestRenderIsIdempotent(t *testing.T) {
	result := resultFor("Eco Tracker", 75, claims.Verify([]claims.Claim{{Text: "uses tensorflow"}}, "import tensorflow"))

	first := Render(result)
	second := Render(result)

	require.Equal(t, first, second)
	require.Contains(t, first, "Project: Eco Tracker")
	require.Contains(t, first, "Evaluated: 2026-03-01 12:00:00 UTC")
	require.Contains(t, first, "Final Score: 75.00/100")
	require.Contains(t, first, "Rating: Good")
	require.Contains(t, first, "2. TECHNICAL FEASIBILITY (Weight: 25%)")
	require.Contains(t, first, "CLAIM VERIFICATION")
	require.Contains(t, first, "[verified]   uses tensorflow")
	require.NotContains(t, first, "WARNINGS")
}

func TestRenderOmitsClaimBlockWithoutClaims(t *testing.T) {
	out := Render(resultFor("Quiet", 4, claims.Verify(nil, "")))

	require.NotContains(t, out, "CLAIM VERIFICATION")
	require.Contains(t, out, "WARNINGS")
	require.Contains(t, out, "Rating: Needs Improvement")
}

func TestRenderShowsClaimPenalty(t *testing.T) {
	out := Render(resultFor("Bold", 80, claims.Verify([]claims.Claim{{Text: "quantum blockchain"}}, "print(1)")))

	require.Contains(t, out, "Claim penalty applied: -15.00")
	require.Contains(t, out, "[unverified] quantum blockchain")
}

func TestRankKeepsInsertionOrderForTies(t *testing.T) {
	results := []scoring.Result{
		withFinal("first", 72.5),
		withFinal("second", 91.0),
		withFinal("third", 91.0),
		withFinal("fourth", 40.0),
	}

	entries := Rank(results)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Result.Submission.ProjectName)
	}
	require.Equal(t, []string{"second", "third", "first", "fourth"}, names)
	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, 4, entries[3].Rank)
	require.Equal(t, []int{1, 2, 0, 3}, []int{entries[0].Position, entries[1].Position, entries[2].Position, entries[3].Position})
	require.Equal(t, "first", results[0].Submission.ProjectName)
}

func TestLeaderboard(t *testing.T) {
	require.Equal(t, "No submissions to rank.\n", Leaderboard(nil))

	out := Leaderboard([]scoring.Result{withFinal("Alpha", 72.5), withFinal("Beta", 91)})
	require.Contains(t, out, "Total Projects Evaluated: 2")
	require.Less(t, strings.Index(out, "Beta"), strings.Index(out, "Alpha"))
	require.Contains(t, out, "Average Score: 81.75/100")
	require.Contains(t, out, "Score Range: 18.50")
	require.Equal(t, out, Leaderboard([]scoring.Result{withFinal("Alpha", 72.5), withFinal("Beta", 91)}))
}

func TestComputeStats(t *testing.T) {
	require.Equal(t, Stats{}, ComputeStats(nil))

	stats := ComputeStats([]scoring.Result{withFinal("a", 10), withFinal("b", 30), withFinal("c", 20)})
	require.Equal(t, Stats{Count: 3, Average: 20, Highest: 30, Lowest: 10, Range: 20}, stats)
}

func TestSummary(t *testing.T) {
	results := []scoring.Result{
		resultFor("Strong", 85, claims.Verify(nil, "")),
		resultFor("Weak", 40, claims.Verify(nil, "")),
	}

	out := Summary(results, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))

	require.Contains(t, out, "Total Projects: 2")
	require.Contains(t, out, "1. Strong - 85.00/100")
	require.Contains(t, out, "Strengths: Originality (85.00/100)")
	require.Contains(t, out, "- Originality: 1 project(s) scored below 60/100")
	require.Contains(t, out, "Average Score: 62.50/100")

	require.Contains(t, Summary(nil, time.Now()), "No submissions to rank.")
}

func TestWriteCSV(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	require.NoError(t, WriteCSV(buf, []scoring.Result{withFinal("Alpha, Inc", 72.5), withFinal("Beta", 91)}))

	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"Rank", "Project Name", "Final Score", "Rating", "Originality", "Feasibility", "Impact", "Presentation", "Code Quality", "Verification Score", "Warnings"}, rows[0])
	require.Equal(t, "Beta", rows[1][1])
	require.Equal(t, "Alpha, Inc", rows[2][1])
	require.Equal(t, "72.50", rows[2][2])
}

func TestMarshalResultsMatchesSchema(t *testing.T) {
	schema, err := jsonschema.CompileString("results.schema.json", ResultsSchema)
	require.NoError(t, err)

	payload, err := MarshalResults([]scoring.Result{
		resultFor("Alpha", 72.5, claims.Verify([]claims.Claim{{Text: "uses redis"}}, "")),
		resultFor("Beta", 91, claims.Verify(nil, "")),
	}, time.Now())
	require.NoError(t, err)

	var doc interface{}
	require.NoError(t, json.Unmarshal(payload, &doc))
	require.NoError(t, schema.Validate(doc))

	single, err := MarshalResult(resultFor("Gamma", 10, claims.Verify(nil, "")))
	require.NoError(t, err)
	require.Contains(t, string(single), `"schema_version": 1`)
}

func TestFileStoreIsWriteOnce(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	location, err := store.Put(context.Background(), "alpha_report.txt", []byte("report"), "text/plain")
	require.NoError(t, err)
	content, err := os.ReadFile(location)
	require.NoError(t, err)
	require.Equal(t, "report", string(content))

	_, err = store.Put(context.Background(), "alpha_report.txt", []byte("other"), "text/plain")
	require.ErrorIs(t, err, ErrArtifactExists)

	escaped, err := store.Put(context.Background(), "../../escape.txt", []byte("x"), "text/plain")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(escaped, "escape.txt"))
	require.NotContains(t, escaped, "..")
}

type fakeS3 struct {
	keys map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if _, ok := f.keys[*in.Key]; ok && in.IfNoneMatch != nil {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.keys[*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreIsWriteOnce(t *testing.T) {
	client := &fakeS3{keys: map[string][]byte{}}
	store := newS3Store(client, "judging", "/runs/2026/")

	location, err := store.Put(context.Background(), "alpha_scores.json", []byte("{}"), "application/json")
	require.NoError(t, err)
	require.Equal(t, "s3://judging/runs/2026/alpha_scores.json", location)
	require.Equal(t, []byte("{}"), client.keys["runs/2026/alpha_scores.json"])

	_, err = store.Put(context.Background(), "alpha_scores.json", []byte("{}"), "application/json")
	require.True(t, errors.Is(err, ErrArtifactExists))
}
