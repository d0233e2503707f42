package batch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/hackathon-judge/internal/artifacts"
	"github.com/noah-isme/hackathon-judge/internal/dto"
	"github.com/noah-isme/hackathon-judge/internal/service"
)

// maxTextFileBytes bounds description, transcript and code files read from a
// manifest.
const maxTextFileBytes = 5 << 20

// ErrEmptyManifest is returned for a manifest without submissions.
var ErrEmptyManifest = errors.New("manifest lists no submissions")

// Manifest is the YAML document consumed by `judge batch`.
type Manifest struct {
	Submissions []dto.BatchEntry `yaml:"submissions" validate:"dive"`
}

// LoadManifest reads and validates path. Unknown keys are rejected.
func LoadManifest(path string, validate *validator.Validate) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)

	var manifest Manifest
	if err := decoder.Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(manifest.Submissions) == 0 {
		return Manifest{}, ErrEmptyManifest
	}

	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if err := validate.Struct(manifest); err != nil {
		return Manifest{}, fmt.Errorf("validate manifest %s: %w", path, err)
	}
	return manifest, nil
}

// ToRequest turns a manifest entry into a pipeline request. Relative paths
// are resolved against baseDir.
func ToRequest(entry dto.BatchEntry, baseDir string) (service.SubmissionRequest, error) {
	req := service.SubmissionRequest{
		ProjectName: entry.Name,
		Description: entry.Description,
		GitHubURL:   entry.GitHubURL,
	}

	if entry.DescriptionFile != "" {
		text, err := readText(resolve(baseDir, entry.DescriptionFile))
		if err != nil {
			return service.SubmissionRequest{}, fmt.Errorf("description: %w", err)
		}
		req.Description = text
	}

	switch {
	case entry.CodeDir != "":
		req.CodeSource = artifacts.SourceDirectory
		req.CodeDir = resolve(baseDir, entry.CodeDir)
	case entry.GitHubURL != "":
		req.CodeSource = artifacts.SourceGitHub
	case entry.CodeFile != "":
		code, err := readText(resolve(baseDir, entry.CodeFile))
		if err != nil {
			return service.SubmissionRequest{}, fmt.Errorf("code file: %w", err)
		}
		req.CodeSource = artifacts.SourceManual
		req.ManualCode = code
	case entry.Code != "":
		req.CodeSource = artifacts.SourceManual
		req.ManualCode = entry.Code
	}

	req.Transcript = entry.Transcript
	if entry.TranscriptFile != "" {
		text, err := readText(resolve(baseDir, entry.TranscriptFile))
		if err != nil {
			return service.SubmissionRequest{}, fmt.Errorf("transcript: %w", err)
		}
		req.Transcript = text
	}
	if entry.Video != "" {
		req.VideoPath = resolve(baseDir, entry.Video)
	}

	return req, nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

func readText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	text, err := artifacts.ReadTranscript(artifacts.File{Name: filepath.Base(path), Reader: f}, maxTextFileBytes)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
