package report

import (
	"fmt"
	"strings"

	"github.com/noah-isme/hackathon-judge/internal/scoring"
)

const (
	rule         = "================================================================================"
	thinRule     = "--------------------------------------------------------------------------------"
	timeLayout   = "2006-01-02 15:04:05 MST"
	noSubmission = "No submissions to rank."
)

// Render produces the textual report for one result. The output depends
// only on the result, so rendering twice yields identical text.
func Render(result scoring.Result) string {
	var b strings.Builder
	weights := scoring.DefaultWeights()

	fmt.Fprintf(&b, "%s\nHACKATHON EVALUATION REPORT\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Project: %s\n", result.Submission.ProjectName)
	if !result.Submission.Timestamp.IsZero() {
		fmt.Fprintf(&b, "Evaluated: %s\n", result.Submission.Timestamp.UTC().Format(timeLayout))
	}
	fmt.Fprintf(&b, "Final Score: %.2f/100\n", result.FinalScore)
	fmt.Fprintf(&b, "Rating: %s\n\n", result.Rating)

	fmt.Fprintf(&b, "%s\nDETAILED SCORES\n%s\n", rule, rule)
	for i, s := range result.Scores {
		fmt.Fprintf(&b, "\n%d. %s (Weight: %.0f%%)\n", i+1, s.Criterion.Label(), weights[s.Criterion]*100)
		fmt.Fprintf(&b, "   Score: %.2f/100\n", s.Value)
		if s.Criterion == scoring.CriterionOriginality && result.ClaimPenalty > 0 {
			fmt.Fprintf(&b, "   Claim penalty applied: -%.2f\n", result.ClaimPenalty)
		}
		fmt.Fprintf(&b, "   Evidence: %s\n", oneLine(s.Evidence))
	}

	if v := result.Verification; v.HasClaims() {
		fmt.Fprintf(&b, "\n%s\nCLAIM VERIFICATION\n%s\n", rule, rule)
		fmt.Fprintf(&b, "Verification Score: %.2f/100 (%d of %d claims verified)\n", v.Score, len(v.Verified), v.Total())
		for _, c := range v.Verified {
			fmt.Fprintf(&b, "   [verified]   %s\n", oneLine(c.Text))
		}
		for _, c := range v.Unverified {
			fmt.Fprintf(&b, "   [unverified] %s\n", oneLine(c.Text))
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(&b, "\n%s\nWARNINGS\n%s\n", rule, rule)
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "   ! %s\n", w)
		}
	}

	fmt.Fprintf(&b, "\n%s\n", rule)
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
