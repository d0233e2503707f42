package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Criterion names one judged dimension of a submission.
type Criterion string

const (
	CriterionOriginality  Criterion = "originality"
	CriterionFeasibility  Criterion = "feasibility"
	CriterionImpact       Criterion = "impact"
	CriterionPresentation Criterion = "presentation"
	CriterionCodeQuality  Criterion = "code_quality"
)

// Criteria lists every criterion in report order.
var Criteria = []Criterion{
	CriterionOriginality,
	CriterionFeasibility,
	CriterionImpact,
	CriterionPresentation,
	CriterionCodeQuality,
}

const (
	WeightOriginality  = 0.30
	WeightFeasibility  = 0.25
	WeightImpact       = 0.20
	WeightPresentation = 0.15
	WeightCodeQuality  = 0.10

	weightTolerance = 1e-9
)

// Weights maps each criterion to its share of the final score.
type Weights map[Criterion]float64

// DefaultWeights returns the static judging weights.
func DefaultWeights() Weights {
	return Weights{
		CriterionOriginality:  WeightOriginality,
		CriterionFeasibility:  WeightFeasibility,
		CriterionImpact:       WeightImpact,
		CriterionPresentation: WeightPresentation,
		CriterionCodeQuality:  WeightCodeQuality,
	}
}

// ValidateWeights checks that every criterion has a non-negative weight and
// that the weights sum to one.
func ValidateWeights(w Weights) error {
	var sum float64
	for _, c := range Criteria {
		value, ok := w[c]
		if !ok {
			return fmt.Errorf("missing weight for %s", c)
		}
		if value < 0 || math.IsNaN(value) {
			return fmt.Errorf("invalid weight for %s: %v", c, value)
		}
		sum += value
	}

	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("weights sum to %.6f, expected 1.0", sum)
	}

	return nil
}

// Valid reports whether c is one of the known criteria.
func (c Criterion) Valid() bool {
	for _, known := range Criteria {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the heading used for the criterion in reports.
func (c Criterion) Label() string {
	switch c {
	case CriterionFeasibility:
		return "TECHNICAL FEASIBILITY"
	case CriterionImpact:
		return "IMPACT"
	case CriterionPresentation:
		return "PRESENTATION QUALITY"
	case CriterionCodeQuality:
		return "CODE QUALITY"
	case CriterionOriginality:
		return "ORIGINALITY"
	default:
		return strings.ToUpper(strings.ReplaceAll(string(c), "_", " "))
	}
}

// Title returns a human friendly name, e.g. "Code Quality".
func (c Criterion) Title() string {
	parts := strings.Split(string(c), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// CriterionScore is the value one evidence provider produced for a criterion.
type CriterionScore struct {
	Criterion Criterion `json:"criterion"`
	Value     float64   `json:"value"`
	Evidence  string    `json:"evidence"`
}

// Submission identifies what was judged.
type Submission struct {
	ProjectName      string    `json:"project_name"`
	Description      string    `json:"description"`
	CodeLocation     string    `json:"code_location,omitempty"`
	PresentationText string    `json:"presentation_text,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Signals carry auxiliary observations from providers that feed warnings
// but are not criteria themselves.
type Signals struct {
	HumanWritten *float64 `json:"human_written,omitempty"`
	CodeMissing  bool     `json:"code_missing,omitempty"`
}

// Merge folds other into s. Set values in other win.
func (s Signals) Merge(other Signals) Signals {
	if other.HumanWritten != nil {
		value := *other.HumanWritten
		s.HumanWritten = &value
	}
	if other.CodeMissing {
		s.CodeMissing = true
	}
	return s
}
