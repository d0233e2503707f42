package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/artifacts"
	"github.com/noah-isme/hackathon-judge/internal/batch"
	"github.com/noah-isme/hackathon-judge/internal/dto"
	"github.com/noah-isme/hackathon-judge/internal/middleware"
	"github.com/noah-isme/hackathon-judge/internal/queue"
	"github.com/noah-isme/hackathon-judge/internal/service"
	"github.com/noah-isme/hackathon-judge/internal/utils"
)

// RouteGuards are the middlewares placed in front of write endpoints.
type RouteGuards struct {
	Submit []fiber.Handler
	Batch  []fiber.Handler
}

// EvaluationHandler serves submission and result endpoints.
type EvaluationHandler struct {
	service        service.EvaluationService
	enqueuer       queue.Enqueuer
	validator      *validator.Validate
	maxUploadBytes int64
	logger         zerolog.Logger
}

// NewEvaluationHandler builds the handler. enqueuer may be nil, in which case
// the batch endpoint answers 503.
func NewEvaluationHandler(service service.EvaluationService, enqueuer queue.Enqueuer, validator *validator.Validate, maxUploadBytes int64, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:        service,
		enqueuer:       enqueuer,
		validator:      validator,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *EvaluationHandler) Register(router fiber.Router, guards RouteGuards) {
	router.Get("", h.list)
	router.Post("", withGuards(guards.Submit, h.create)...)
	router.Post("/batch", withGuards(guards.Batch, h.enqueueBatch)...)
	router.Get("/:id", h.get)
	router.Get("/:id/report", h.report)
}

func withGuards(guards []fiber.Handler, final fiber.Handler) []fiber.Handler {
	handlers := make([]fiber.Handler, 0, len(guards)+1)
	handlers = append(handlers, guards...)
	return append(handlers, final)
}

func (h *EvaluationHandler) create(c *fiber.Ctx) error {
	var payload dto.EvaluationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	req := service.SubmissionRequest{
		ProjectName: payload.ProjectName,
		Description: payload.Description,
		CodeSource:  artifacts.CodeSource(strings.ToLower(strings.TrimSpace(payload.CodeSource))),
		GitHubURL:   strings.TrimSpace(payload.GitHubURL),
		ManualCode:  payload.ManualCode,
		Transcript:  payload.PresentationText,
		SubmittedBy: middleware.Subject(c),
	}
	if req.CodeSource == artifacts.SourceDirectory {
		return utils.SendError(c, fiber.StatusBadRequest, "codeSource must be one of github, manual, file")
	}

	files := &openedFiles{}
	defer files.Close()

	if form, err := c.MultipartForm(); err == nil {
		for _, header := range form.File["codeFiles"] {
			file, err := files.open(header)
			if err != nil {
				return h.handleError(c, err)
			}
			req.CodeFiles = append(req.CodeFiles, file)
		}

		if headers := form.File["videoFile"]; len(headers) > 0 {
			video, err := files.open(headers[0])
			if err != nil {
				return h.handleError(c, err)
			}
			req.Video = &video
		}

		if headers := form.File["textFile"]; len(headers) > 0 && strings.TrimSpace(req.Transcript) == "" {
			textFile, err := files.open(headers[0])
			if err != nil {
				return h.handleError(c, err)
			}
			text, err := artifacts.ReadTranscript(textFile, h.maxUploadBytes)
			if err != nil {
				return utils.SendError(c, fiber.StatusBadRequest, err.Error())
			}
			req.Transcript = text
		}
	}

	evaluation, err := h.service.Evaluate(c.UserContext(), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission evaluated", dto.NewEvaluationResponse(evaluation))
}

func (h *EvaluationHandler) list(c *fiber.Ctx) error {
	items, err := h.service.List(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "evaluations retrieved", dto.NewEvaluationSummaries(items))
}

func (h *EvaluationHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	evaluation, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "evaluation retrieved", dto.NewEvaluationResponse(evaluation))
}

func (h *EvaluationHandler) report(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	text, err := h.service.Report(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}
	c.Type("txt", "utf-8")
	return c.SendString(text)
}

func (h *EvaluationHandler) enqueueBatch(c *fiber.Ctx) error {
	if h.enqueuer == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "batch queue unavailable")
	}

	var payload dto.BatchEnqueueRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return h.handleError(c, err)
	}
	for i, entry := range payload.Submissions {
		if fields := entry.LocalPaths(); len(fields) > 0 {
			message := fmt.Sprintf("submission %d: %s not accepted over HTTP; send description, github_url, code or transcript instead", i, strings.Join(fields, ", "))
			return utils.SendError(c, fiber.StatusBadRequest, message)
		}
	}

	ids, err := batch.Enqueue(c.UserContext(), h.enqueuer, payload.Submissions, "", middleware.Subject(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Int("queued", len(ids)).Msg("batch enqueue failed")
		return utils.SendError(c, fiber.StatusServiceUnavailable, "batch queue unavailable")
	}

	requestLogger(h.logger, c).Info().Int("queued", len(ids)).Msg("batch enqueued")
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "submissions queued", dto.BatchEnqueueResponse{TaskIDs: ids})
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
	case errors.Is(err, service.ErrMissingArtifact),
		errors.Is(err, artifacts.ErrUnsupportedCodeSource),
		errors.Is(err, artifacts.ErrInvalidRepositoryURL),
		errors.Is(err, artifacts.ErrUnsupportedVideo),
		errors.Is(err, artifacts.ErrUploadTooLarge),
		errors.Is(err, artifacts.ErrUnsafeArchive):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	case errors.Is(err, service.ErrCodeUnavailable):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, "code repository could not be retrieved")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
