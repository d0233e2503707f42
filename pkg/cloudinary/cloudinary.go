package cloudinary

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Enabled reports whether all credentials are present.
func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type videoUploader interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// VideoArchive keeps presentation recordings after the local workspace has
// been cleaned up.
type VideoArchive struct {
	upload videoUploader
	folder string
	now    func() time.Time
	logger zerolog.Logger
}

// New constructs a Cloudinary backed archive.
func New(cfg Config, logger zerolog.Logger) (*VideoArchive, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return newVideoArchive(&cld.Upload, cfg.Folder, logger), nil
}

func newVideoArchive(upload videoUploader, folder string, logger zerolog.Logger) *VideoArchive {
	return &VideoArchive{
		upload: upload,
		folder: strings.Trim(folder, "/"),
		now:    time.Now,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}
}

// ArchiveRecording uploads the recording at path and returns its secure URL.
func (a *VideoArchive) ArchiveRecording(ctx context.Context, projectName, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open recording: %w", err)
	}
	defer file.Close()

	result, err := a.upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       a.folder,
		PublicID:     a.publicID(projectName),
		ResourceType: "video",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload recording: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected recording: %s", result.Error.Message)
	}

	a.logger.Info().Str("public_id", result.PublicID).Msg("recording archived")
	return result.SecureURL, nil
}

func (a *VideoArchive) publicID(name string) string {
	base := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, strings.TrimSpace(name))

	base = strings.Trim(base, "-")
	if base == "" {
		base = "presentation"
	}

	return fmt.Sprintf("%s-%d", strings.ToLower(base), a.now().Unix())
}
