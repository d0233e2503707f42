package handler

import (
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/artifacts"
	"github.com/noah-isme/hackathon-judge/internal/middleware"
)

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(parsed), nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// openedFiles keeps multipart files open until the pipeline has read them.
type openedFiles struct {
	closers []multipart.File
}

func (o *openedFiles) open(header *multipart.FileHeader) (artifacts.File, error) {
	f, err := header.Open()
	if err != nil {
		return artifacts.File{}, fmt.Errorf("open %s: %w", header.Filename, err)
	}
	o.closers = append(o.closers, f)
	return artifacts.File{Name: header.Filename, Reader: f}, nil
}

func (o *openedFiles) Close() {
	for _, f := range o.closers {
		_ = f.Close()
	}
	o.closers = nil
}
