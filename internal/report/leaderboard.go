package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/hackathon-judge/internal/scoring"
)

const nameColumn = 35

// Entry is one ranked position on the leaderboard.
type Entry struct {
	Rank   int            `json:"rank"`
	Result scoring.Result `json:"result"`
	// Position is the index of Result in the slice passed to Rank.
	Position int `json:"-"`
}

// Rank orders results by final score, highest first. Equal scores keep the
// order in which they were submitted.
func Rank(results []scoring.Result) []Entry {
	entries := make([]Entry, 0, len(results))
	for i, r := range results {
		entries = append(entries, Entry{Result: r, Position: i})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Result.FinalScore > entries[j].Result.FinalScore
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Stats summarises the spread of final scores.
type Stats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Highest float64 `json:"highest"`
	Lowest  float64 `json:"lowest"`
	Range   float64 `json:"range"`
}

// ComputeStats returns score statistics; all zero when results is empty.
func ComputeStats(results []scoring.Result) Stats {
	if len(results) == 0 {
		return Stats{}
	}
	stats := Stats{Count: len(results), Highest: results[0].FinalScore, Lowest: results[0].FinalScore}
	var sum float64
	for _, r := range results {
		sum += r.FinalScore
		if r.FinalScore > stats.Highest {
			stats.Highest = r.FinalScore
		}
		if r.FinalScore < stats.Lowest {
			stats.Lowest = r.FinalScore
		}
	}
	stats.Average = scoring.Round2(sum / float64(len(results)))
	stats.Range = scoring.Round2(stats.Highest - stats.Lowest)
	return stats
}

// Leaderboard renders the ranking, a per-criterion breakdown and statistics.
func Leaderboard(results []scoring.Result) string {
	if len(results) == 0 {
		return noSubmission + "\n"
	}

	entries := Rank(results)
	var b strings.Builder

	fmt.Fprintf(&b, "%s\nHACKATHON LEADERBOARD\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Total Projects Evaluated: %d\n\n", len(entries))
	fmt.Fprintf(&b, "Rank | %-*s | %7s | %s\n%s\n", nameColumn, "Project Name", "Score", "Rating", thinRule)
	for _, e := range entries {
		fmt.Fprintf(&b, "%4d | %-*s | %7.2f | %s\n", e.Rank, nameColumn, truncate(e.Result.Submission.ProjectName, nameColumn), e.Result.FinalScore, e.Result.Rating)
	}

	fmt.Fprintf(&b, "\n%s\nDETAILED SCORE BREAKDOWN\n%s\n\n", rule, rule)
	for _, e := range entries {
		fmt.Fprintf(&b, "%d. %s - %.2f/100 (%s)\n", e.Rank, e.Result.Submission.ProjectName, e.Result.FinalScore, e.Result.Rating)
		for _, c := range scoring.Criteria {
			if s, ok := e.Result.Score(c); ok {
				fmt.Fprintf(&b, "   - %s: %.2f/100\n", c.Title(), s.Value)
			}
		}
		b.WriteString("\n")
	}

	stats := ComputeStats(results)
	fmt.Fprintf(&b, "%s\nSTATISTICS\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Average Score: %.2f/100\n", stats.Average)
	fmt.Fprintf(&b, "Highest Score: %.2f/100\n", stats.Highest)
	fmt.Fprintf(&b, "Lowest Score: %.2f/100\n", stats.Lowest)
	fmt.Fprintf(&b, "Score Range: %.2f\n", stats.Range)

	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
