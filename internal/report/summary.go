package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/hackathon-judge/internal/scoring"
)

const (
	strengthThreshold = 80.0
	weaknessThreshold = 60.0
	topProjects       = 3
)

// Summary renders category averages, the top projects with their strengths,
// and the criteria most projects struggled with.
func Summary(results []scoring.Result, generatedAt time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nHACKATHON EVALUATION SUMMARY REPORT\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Total Projects: %d\n", len(results))
	fmt.Fprintf(&b, "Generated: %s\n\n", generatedAt.UTC().Format(timeLayout))

	if len(results) == 0 {
		b.WriteString(noSubmission + "\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%s\nCATEGORY AVERAGES\n%s\n\n", rule, rule)
	for _, c := range scoring.Criteria {
		var sum float64
		var n int
		for _, r := range results {
			if s, ok := r.Score(c); ok {
				sum += s.Value
				n++
			}
		}
		if n == 0 {
			continue
		}
		label := c.Title() + " "
		fmt.Fprintf(&b, "%s%s %.2f/100\n", label, strings.Repeat(".", max(1, 40-len(label))), sum/float64(n))
	}

	fmt.Fprintf(&b, "\n%s\nTOP %d PROJECTS\n%s\n\n", rule, topProjects, rule)
	for _, e := range Rank(results) {
		if e.Rank > topProjects {
			break
		}
		fmt.Fprintf(&b, "%d. %s - %.2f/100\n", e.Rank, e.Result.Submission.ProjectName, e.Result.FinalScore)
		strengths := make([]string, 0)
		for _, s := range e.Result.Scores {
			if s.Value >= strengthThreshold {
				strengths = append(strengths, fmt.Sprintf("%s (%.2f/100)", s.Criterion.Title(), s.Value))
			}
		}
		if len(strengths) > 0 {
			fmt.Fprintf(&b, "   Strengths: %s\n", strings.Join(strengths, ", "))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s\nAREAS FOR IMPROVEMENT\n%s\n\n", rule, rule)
	weak := weakCriteria(results)
	if len(weak) == 0 {
		b.WriteString("All projects performed well across all categories!\n")
	}
	for _, w := range weak {
		fmt.Fprintf(&b, "- %s: %d project(s) scored below %.0f/100\n", w.criterion.Title(), w.count, weaknessThreshold)
	}

	stats := ComputeStats(results)
	fmt.Fprintf(&b, "\n%s\nSTATISTICS\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Average Score: %.2f/100\n", stats.Average)
	fmt.Fprintf(&b, "Highest Score: %.2f/100\n", stats.Highest)
	fmt.Fprintf(&b, "Lowest Score: %.2f/100\n", stats.Lowest)
	fmt.Fprintf(&b, "Score Range: %.2f\n", stats.Range)
	fmt.Fprintf(&b, "\n%s\n", rule)

	return b.String()
}

type weakness struct {
	criterion scoring.Criterion
	count     int
}

func weakCriteria(results []scoring.Result) []weakness {
	out := make([]weakness, 0)
	for _, c := range scoring.Criteria {
		count := 0
		for _, r := range results {
			if s, ok := r.Score(c); ok && s.Value < weaknessThreshold {
				count++
			}
		}
		if count > 0 {
			out = append(out, weakness{criterion: c, count: count})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].count > out[j].count })
	return out
}
