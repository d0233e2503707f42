package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/hackathon-judge/internal/claims"
)

const (
	// MaxClaimPenalty is the most originality points unverified claims can cost.
	MaxClaimPenalty = 15.0
	// LowCodeQualityThreshold marks code quality at or below which a critical warning is raised.
	LowCodeQualityThreshold = 5.0
	// LowHumanWrittenThreshold marks a human-written probability below which a warning is raised.
	LowHumanWrittenThreshold = 50.0

	maxListedClaims = 3
	missingEvidence = "No score was produced for this criterion."
)

// Input gathers everything the aggregator combines into a result.
type Input struct {
	Submission   Submission
	Scores       []CriterionScore
	Verification claims.Verification
	Signals      Signals
}

// Result is the immutable outcome of judging one submission.
type Result struct {
	Submission   Submission          `json:"submission"`
	Scores       []CriterionScore    `json:"scores"`
	Verification claims.Verification `json:"verification"`
	Warnings     []string            `json:"warnings"`
	ClaimPenalty float64             `json:"claim_penalty"`
	FinalScore   float64             `json:"final_score"`
	Rating       string              `json:"rating"`
}

// Score returns the score for c. Results from Aggregate always hold one.
func (r Result) Score(c Criterion) (CriterionScore, bool) {
	for _, s := range r.Scores {
		if s.Criterion == c {
			return s, true
		}
	}
	return CriterionScore{}, false
}

// Aggregate combines per-criterion scores into the weighted final score.
//
// Unverified claims reduce originality by up to MaxClaimPenalty points before
// weighting, never below zero. A criterion without a score counts as zero and
// adds a warning. The final score is rounded to two decimals and rated after
// rounding.
func Aggregate(in Input) Result {
	weights := DefaultWeights()
	warnings := make([]string, 0)

	byCriterion := make(map[Criterion]CriterionScore, len(in.Scores))
	for _, s := range in.Scores {
		if !s.Criterion.Valid() {
			continue
		}
		if _, dup := byCriterion[s.Criterion]; dup {
			continue
		}
		s.Value = Clamp(s.Value)
		byCriterion[s.Criterion] = s
	}

	scores := make([]CriterionScore, 0, len(Criteria))
	for _, c := range Criteria {
		s, ok := byCriterion[c]
		if !ok {
			s = CriterionScore{Criterion: c, Value: 0, Evidence: missingEvidence}
			warnings = append(warnings, fmt.Sprintf("Missing %s score; defaulted to 0.", c))
		}
		scores = append(scores, s)
	}

	penalty := 0.0
	if len(in.Verification.Unverified) > 0 {
		penalty = ClaimPenalty(in.Verification.Score)
		for i := range scores {
			if scores[i].Criterion != CriterionOriginality {
				continue
			}
			before := scores[i].Value
			scores[i].Value = math.Max(0, before-penalty)
			penalty = before - scores[i].Value
		}
	}

	var total float64
	for _, s := range scores {
		total += weights[s.Criterion] * s.Value
	}
	final := Round2(Clamp(total))

	warnings = append(warnings, detectWarnings(scores, in.Verification, in.Signals)...)

	return Result{
		Submission:   in.Submission,
		Scores:       scores,
		Verification: in.Verification,
		Warnings:     warnings,
		ClaimPenalty: Round2(penalty),
		FinalScore:   final,
		Rating:       Rate(final),
	}
}

// ClaimPenalty returns the originality points lost for a verification score.
func ClaimPenalty(verificationScore float64) float64 {
	vs := Clamp(verificationScore)
	return (1 - vs/100) * MaxClaimPenalty
}

func detectWarnings(scores []CriterionScore, verification claims.Verification, signals Signals) []string {
	out := make([]string, 0)

	for _, s := range scores {
		if s.Criterion != CriterionCodeQuality {
			continue
		}
		switch {
		case signals.CodeMissing:
			out = append(out, "No code submitted or code directory not found.")
		case s.Value <= LowCodeQualityThreshold:
			out = append(out, fmt.Sprintf("Critical code quality issues detected (score %.1f/100).", s.Value))
		}
	}

	if signals.HumanWritten != nil && *signals.HumanWritten < LowHumanWrittenThreshold {
		out = append(out, fmt.Sprintf("Low probability of human-written text (%.1f%%).", *signals.HumanWritten))
	}

	if n := len(verification.Unverified); n > 0 {
		listed := make([]string, 0, maxListedClaims)
		for i, c := range verification.Unverified {
			if i == maxListedClaims {
				break
			}
			listed = append(listed, c.Text)
		}
		msg := fmt.Sprintf("%d claim(s) could not be verified in the code: %s", n, strings.Join(listed, "; "))
		if n > maxListedClaims {
			msg += fmt.Sprintf(" (and %d more)", n-maxListedClaims)
		}
		out = append(out, msg)
	}

	return out
}

// Clamp bounds v to [0, 100]; NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
