package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/noah-isme/hackathon-judge/internal/scoring"
)

// SchemaVersion is stamped on every JSON export.
const SchemaVersion = 1

// ResultDocument is the persisted JSON form of one result.
type ResultDocument struct {
	SchemaVersion int            `json:"schema_version"`
	Result        scoring.Result `json:"result"`
}

// ResultsDocument is the persisted JSON form of a ranked batch.
type ResultsDocument struct {
	SchemaVersion int       `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Stats         Stats     `json:"stats"`
	Entries       []Entry   `json:"entries"`
}

// MarshalResult encodes one result as indented JSON.
func MarshalResult(result scoring.Result) ([]byte, error) {
	return json.MarshalIndent(ResultDocument{SchemaVersion: SchemaVersion, Result: result}, "", "  ")
}

// MarshalResults encodes a ranked batch as indented JSON.
func MarshalResults(results []scoring.Result, generatedAt time.Time) ([]byte, error) {
	return json.MarshalIndent(ResultsDocument{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   generatedAt.UTC(),
		Stats:         ComputeStats(results),
		Entries:       Rank(results),
	}, "", "  ")
}

// WriteCSV writes one ranked row per result.
func WriteCSV(w io.Writer, results []scoring.Result) error {
	writer := csv.NewWriter(w)

	header := []string{"Rank", "Project Name", "Final Score", "Rating"}
	for _, c := range scoring.Criteria {
		header = append(header, c.Title())
	}
	header = append(header, "Verification Score", "Warnings")
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range Rank(results) {
		row := []string{
			strconv.Itoa(e.Rank),
			e.Result.Submission.ProjectName,
			formatScore(e.Result.FinalScore),
			e.Result.Rating,
		}
		for _, c := range scoring.Criteria {
			value := "N/A"
			if s, ok := e.Result.Score(c); ok {
				value = formatScore(s.Value)
			}
			row = append(row, value)
		}
		row = append(row, formatScore(e.Result.Verification.Score), strconv.Itoa(len(e.Result.Warnings)))
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ResultsSchema is the JSON schema of ResultsDocument.
const ResultsSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["schema_version", "generated_at", "stats", "entries"],
	"properties": {
		"schema_version": {"const": 1},
		"generated_at": {"type": "string"},
		"stats": {
			"type": "object",
			"required": ["count", "average", "highest", "lowest", "range"]
		},
		"entries": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["rank", "result"],
				"properties": {
					"rank": {"type": "number", "minimum": 1},
					"result": {
						"type": "object",
						"required": ["submission", "scores", "verification", "warnings", "final_score", "rating"],
						"properties": {
							"final_score": {"type": "number", "minimum": 0, "maximum": 100},
							"rating": {"enum": ["Excellent", "Very Good", "Good", "Fair", "Average", "Needs Improvement"]},
							"scores": {
								"type": "array",
								"minItems": 5,
								"maxItems": 5,
								"items": {
									"type": "object",
									"required": ["criterion", "value", "evidence"],
									"properties": {
										"criterion": {"enum": ["originality", "feasibility", "impact", "presentation", "code_quality"]},
										"value": {"type": "number", "minimum": 0, "maximum": 100}
									}
								}
							},
							"warnings": {"type": "array", "items": {"type": "string"}}
						}
					}
				}
			}
		}
	}
}`
