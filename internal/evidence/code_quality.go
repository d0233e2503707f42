package evidence

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/scoring"
)

const (
	complexityBaseline     = 5.0
	complexityPenaltyStep  = 10.0
	maxSecurityPenalty     = 30.0
	noCodeDirectoryMessage = "No code directory found."
	noPythonFilesMessage   = "No Python files found to analyze."
)

var severityPenalty = map[string]float64{
	"HIGH":   10,
	"MEDIUM": 5,
	"LOW":    1,
}

// Finding is one issue reported by a security scanner.
type Finding struct {
	Severity string `json:"severity"`
	TestID   string `json:"test_id"`
	Text     string `json:"text"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Linter rates code on pylint's 0-10 scale.
type Linter interface {
	Lint(ctx context.Context, dir string, files []string) (float64, error)
}

// ComplexityAnalyzer returns the average cyclomatic complexity of all blocks.
type ComplexityAnalyzer interface {
	AverageComplexity(ctx context.Context, dir string, files []string) (float64, error)
}

// SecurityScanner reports potential vulnerabilities.
type SecurityScanner interface {
	Scan(ctx context.Context, dir string, files []string) ([]Finding, error)
}

// CodeQuality scores the submitted Python sources.
type CodeQuality struct {
	linter     Linter
	complexity ComplexityAnalyzer
	security   SecurityScanner
	logger     zerolog.Logger
}

// NewCodeQuality wires the code quality provider. security may be nil.
func NewCodeQuality(linter Linter, complexity ComplexityAnalyzer, security SecurityScanner, logger zerolog.Logger) *CodeQuality {
	return &CodeQuality{
		linter:     linter,
		complexity: complexity,
		security:   security,
		logger:     logger.With().Str("component", "code_quality").Logger(),
	}
}

// Name identifies the provider in logs and metrics.
func (p *CodeQuality) Name() string { return "code_quality" }

// Assess lints, measures and scans the Python files of the submission.
func (p *CodeQuality) Assess(ctx context.Context, artifacts Artifacts) Outcome {
	if !dirExists(artifacts.CodeDir) {
		return Outcome{
			Scores:  []scoring.CriterionScore{score(scoring.CriterionCodeQuality, 0, noCodeDirectoryMessage)},
			Signals: scoring.Signals{CodeMissing: true},
		}
	}

	files := pythonFiles(artifacts.SourceFiles)
	if len(files) == 0 {
		return Outcome{Scores: []scoring.CriterionScore{score(scoring.CriterionCodeQuality, 0, noPythonFilesMessage)}}
	}

	evidence := make([]string, 0, 3)

	lintScore := 0.0
	rating, err := p.linter.Lint(ctx, artifacts.CodeDir, files)
	if err != nil {
		providerFailures.WithLabelValues(p.Name(), "lint").Inc()
		p.logger.Warn().Err(err).Str("project", artifacts.ProjectName).Msg("lint failed")
		evidence = append(evidence, fmt.Sprintf("Pylint analysis failed: %v.", err))
	} else {
		lintScore = scoring.Clamp(rating * 10)
		evidence = append(evidence, fmt.Sprintf("Pylint rated the code at %.1f/100.", lintScore))
	}

	complexityScore := 0.0
	avg, err := p.complexity.AverageComplexity(ctx, artifacts.CodeDir, files)
	if err != nil {
		providerFailures.WithLabelValues(p.Name(), "complexity").Inc()
		p.logger.Warn().Err(err).Str("project", artifacts.ProjectName).Msg("complexity analysis failed")
		evidence = append(evidence, fmt.Sprintf("Complexity analysis failed: %v.", err))
	} else {
		complexityScore = ComplexityScore(avg)
		evidence = append(evidence, fmt.Sprintf("Average Cyclomatic Complexity is %.2f (%.1f/100).", avg, complexityScore))
	}

	value := (lintScore + complexityScore) / 2

	if p.security != nil {
		findings, err := p.security.Scan(ctx, artifacts.CodeDir, files)
		if err != nil {
			providerFailures.WithLabelValues(p.Name(), "security").Inc()
			p.logger.Warn().Err(err).Str("project", artifacts.ProjectName).Msg("security scan failed")
		} else {
			penalty := SecurityPenalty(findings)
			value -= penalty
			evidence = append(evidence, fmt.Sprintf("Security scan found %d issue(s) (-%.0f).", len(findings), penalty))
		}
	}

	return Outcome{Scores: []scoring.CriterionScore{
		score(scoring.CriterionCodeQuality, value, strings.Join(evidence, " ")),
	}}
}

// ComplexityScore maps an average cyclomatic complexity onto 0-100. Anything
// at or below the baseline of 5 scores full marks.
func ComplexityScore(avg float64) float64 {
	return math.Max(0, 100-math.Max(0, avg-complexityBaseline)*complexityPenaltyStep)
}

// SecurityPenalty sums per-severity deductions, capped at 30 points.
func SecurityPenalty(findings []Finding) float64 {
	var total float64
	for _, f := range findings {
		total += severityPenalty[strings.ToUpper(f.Severity)]
	}
	return math.Min(total, maxSecurityPenalty)
}

func pythonFiles(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".py") {
			out = append(out, filepath.ToSlash(f))
		}
	}
	return out
}

func dirExists(dir string) bool {
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
