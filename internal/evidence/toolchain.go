package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/hackathon-judge/pkg/docker"
)

// DefaultToolImage bundles pylint, radon and bandit; see build/pytools.
const DefaultToolImage = "hackathon-judge/pytools:latest"

var (
	errNoRating  = errors.New("pylint found too many errors to provide a rating")
	pylintRating = regexp.MustCompile(`rated at (-?[0-9]+(?:\.[0-9]+)?)/10`)
)

// PythonToolchain runs the Python analysis tools inside the sandbox with the
// code mounted read-only and networking disabled.
type PythonToolchain struct {
	runner    docker.Runner
	image     string
	mountPath string
	timeout   time.Duration
}

// NewPythonToolchain builds a toolchain backed by runner.
func NewPythonToolchain(runner docker.Runner, image, mountPath string, timeout time.Duration) *PythonToolchain {
	if image == "" {
		image = DefaultToolImage
	}
	if mountPath == "" {
		mountPath = "/workspace"
	}
	return &PythonToolchain{runner: runner, image: image, mountPath: mountPath, timeout: timeout}
}

func (t *PythonToolchain) run(ctx context.Context, dir string, cmd []string) (docker.JobResult, error) {
	return t.runner.Run(ctx, docker.Job{
		Image:     t.image,
		Cmd:       cmd,
		Env:       []string{"HOME=/tmp", "PYTHONDONTWRITEBYTECODE=1"},
		Workspace: dir,
		Timeout:   t.timeout,
	})
}

func (t *PythonToolchain) paths(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, path.Join(t.mountPath, f))
	}
	return out
}

// Lint returns pylint's global rating.
func (t *PythonToolchain) Lint(ctx context.Context, dir string, files []string) (float64, error) {
	cmd := append([]string{"pylint", "--exit-zero", "--persistent=n"}, t.paths(files)...)
	res, err := t.run(ctx, dir, cmd)
	if err != nil {
		return 0, fmt.Errorf("run pylint: %w", err)
	}
	return ParsePylintRating(res.Stdout)
}

// AverageComplexity returns radon's mean cyclomatic complexity.
func (t *PythonToolchain) AverageComplexity(ctx context.Context, dir string, files []string) (float64, error) {
	cmd := append([]string{"radon", "cc", "-j"}, t.paths(files)...)
	res, err := t.run(ctx, dir, cmd)
	if err != nil {
		return 0, fmt.Errorf("run radon: %w", err)
	}
	if res.ExitCode != 0 {
		return 0, fmt.Errorf("radon exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return ParseRadonAverage([]byte(res.Stdout))
}

// Scan runs bandit and returns its findings.
func (t *PythonToolchain) Scan(ctx context.Context, dir string, files []string) ([]Finding, error) {
	cmd := append([]string{"bandit", "-q", "-f", "json"}, t.paths(files)...)
	res, err := t.run(ctx, dir, cmd)
	if err != nil {
		return nil, fmt.Errorf("run bandit: %w", err)
	}
	// bandit exits 1 when it reports issues.
	if res.ExitCode > 1 {
		return nil, fmt.Errorf("bandit exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return ParseBanditReport([]byte(res.Stdout), t.mountPath)
}

// ParsePylintRating extracts the "rated at X/10" figure.
func ParsePylintRating(output string) (float64, error) {
	match := pylintRating.FindStringSubmatch(output)
	if match == nil {
		return 0, errNoRating
	}
	rating, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse pylint rating: %w", err)
	}
	if rating < 0 {
		rating = 0
	}
	return rating, nil
}

// ParseRadonAverage averages block complexity from `radon cc -j` output.
// Files radon could not parse are skipped. No blocks means an average of 0.
func ParseRadonAverage(output []byte) (float64, error) {
	var report map[string]json.RawMessage
	if err := json.Unmarshal(output, &report); err != nil {
		return 0, fmt.Errorf("parse radon output: %w", err)
	}

	var total float64
	var blocks int
	for _, raw := range report {
		var entries []struct {
			Complexity float64 `json:"complexity"`
		}
		if err := json.Unmarshal(raw, &entries); err != nil {
			continue
		}
		for _, e := range entries {
			total += e.Complexity
			blocks++
		}
	}

	if blocks == 0 {
		return 0, nil
	}
	return total / float64(blocks), nil
}

// ParseBanditReport converts bandit's JSON report into findings with paths
// relative to the workspace.
func ParseBanditReport(output []byte, mountPath string) ([]Finding, error) {
	var report struct {
		Results []struct {
			Filename   string `json:"filename"`
			LineNumber int    `json:"line_number"`
			Severity   string `json:"issue_severity"`
			Text       string `json:"issue_text"`
			TestID     string `json:"test_id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(output, &report); err != nil {
		return nil, fmt.Errorf("parse bandit output: %w", err)
	}

	prefix := strings.TrimSuffix(mountPath, "/") + "/"
	findings := make([]Finding, 0, len(report.Results))
	for _, r := range report.Results {
		findings = append(findings, Finding{
			Severity: strings.ToUpper(r.Severity),
			TestID:   r.TestID,
			Text:     r.Text,
			File:     strings.TrimPrefix(r.Filename, prefix),
			Line:     r.LineNumber,
		})
	}
	return findings, nil
}
