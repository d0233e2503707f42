package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hackathon-judge/internal/config"
	"github.com/noah-isme/hackathon-judge/internal/dto"
	"github.com/noah-isme/hackathon-judge/internal/evidence"
	"github.com/noah-isme/hackathon-judge/internal/handler"
	"github.com/noah-isme/hackathon-judge/internal/middleware"
	"github.com/noah-isme/hackathon-judge/internal/queue"
	"github.com/noah-isme/hackathon-judge/internal/repository"
	"github.com/noah-isme/hackathon-judge/internal/router"
	"github.com/noah-isme/hackathon-judge/internal/scoring"
	"github.com/noah-isme/hackathon-judge/internal/service"
)

type flatProvider struct{ value float64 }

func (flatProvider) Name() string { return "flat" }

func (p flatProvider) Assess(context.Context, evidence.Artifacts) evidence.Outcome {
	out := evidence.Outcome{}
	for _, c := range scoring.Criteria {
		out.Scores = append(out.Scores, scoring.CriterionScore{Criterion: c, Value: p.value, Evidence: "flat"})
	}
	return out
}

type recordingEnqueuer struct {
	payloads []queue.EvaluationPayload
	err      error
}

func (r *recordingEnqueuer) EnqueueEvaluation(_ context.Context, payload queue.EvaluationPayload) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.payloads = append(r.payloads, payload)
	return "task-" + payload.Entry.Name, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func setupEvaluationApp(t *testing.T, enqueuer queue.Enqueuer) *fiber.App {
	t.Helper()

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	repo := repository.NewMemoryEvaluationRepository()

	leaderboard := service.NewLeaderboardService(repo, nil, time.Minute, logger)
	events := service.NewEventBroadcaster(nil, nil, "", logger)
	evaluations := service.NewEvaluationService(service.EvaluationDeps{
		Repo:        repo,
		Providers:   []evidence.Provider{flatProvider{value: 80}},
		Leaderboard: leaderboard,
		Events:      events,
		Validator:   validate,
		Logger:      logger,
		WorkDir:     t.TempDir(),
		Now:         func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	})

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		EvaluationHandler:  handler.NewEvaluationHandler(evaluations, enqueuer, validate, 1<<20, logger),
		LeaderboardHandler: handler.NewLeaderboardHandler(leaderboard, events, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals(middleware.LocalSubject, "ada")
			c.Locals(middleware.LocalRole, c.Get("X-Test-Role"))
			return c.Next()
		},
	})
	return app
}

type formFile struct {
	field, name, body string
}

func buildMultipart(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func submit(t *testing.T, app *fiber.App, fields map[string]string, files ...formFile) (int, envelope) {
	t.Helper()
	body, contentType := buildMultipart(t, fields, files...)
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/evaluations", body)
	req.Header.Set(fiber.HeaderContentType, contentType)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func get(t *testing.T, app *fiber.App, url string) (int, string, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, url, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header.Get(fiber.HeaderContentType), raw
}

func TestEvaluationHandlerCreateAndRead(t *testing.T) {
	app := setupEvaluationApp(t, nil)

	status, payload := submit(t, app, map[string]string{
		"projectName":      "Alpha",
		"description":      "A study planner.",
		"codeSource":       "manual",
		"manualCode":       "print('plan')",
		"presentationText": "We help students plan.",
	})
	require.Equal(t, fiber.StatusCreated, status, payload.Message)
	require.True(t, payload.Success)

	var created dto.EvaluationResponse
	require.NoError(t, json.Unmarshal(payload.Data, &created))
	require.Equal(t, uint(1), created.ID)
	require.Equal(t, 80.0, created.FinalScore)
	require.Equal(t, scoring.RatingVeryGood, created.Rating)
	require.Equal(t, "ada", created.SubmittedBy)
	require.Len(t, created.Scores, len(scoring.Criteria))
	require.Equal(t, 100.0, created.Verification.Score)

	code, _, raw := get(t, app, "/api/v1/evaluations")
	require.Equal(t, fiber.StatusOK, code)
	var list envelope
	require.NoError(t, json.Unmarshal(raw, &list))
	var summaries []dto.EvaluationSummary
	require.NoError(t, json.Unmarshal(list.Data, &summaries))
	require.Len(t, summaries, 1)
	require.Equal(t, "Alpha", summaries[0].ProjectName)

	code, _, _ = get(t, app, "/api/v1/evaluations/1")
	require.Equal(t, fiber.StatusOK, code)

	code, contentType, raw := get(t, app, "/api/v1/evaluations/1/report")
	require.Equal(t, fiber.StatusOK, code)
	require.True(t, strings.HasPrefix(contentType, "text/plain"))
	require.Contains(t, string(raw), "Project: Alpha")

	code, _, _ = get(t, app, "/api/v1/evaluations/99")
	require.Equal(t, fiber.StatusNotFound, code)
	code, _, _ = get(t, app, "/api/v1/evaluations/abc")
	require.Equal(t, fiber.StatusBadRequest, code)
}

func TestEvaluationHandlerAcceptsUploadedFiles(t *testing.T) {
	app := setupEvaluationApp(t, nil)

	status, payload := submit(t, app, map[string]string{
		"projectName": "Beta",
		"description": "A recipe helper.",
		"codeSource":  "file",
	},
		formFile{field: "codeFiles", name: "main.py", body: "print('cook')\n"},
		formFile{field: "textFile", name: "pitch.txt", body: "Our pitch transcript.\n"},
	)
	require.Equal(t, fiber.StatusCreated, status, payload.Message)

	var created dto.EvaluationResponse
	require.NoError(t, json.Unmarshal(payload.Data, &created))
	require.Equal(t, "main.py", created.CodeLocation)
}

func TestEvaluationHandlerRejectsIncompleteSubmissions(t *testing.T) {
	app := setupEvaluationApp(t, nil)

	cases := map[string]map[string]string{
		"no description": {"projectName": "Alpha", "manualCode": "x", "presentationText": "hi"},
		"no code":        {"projectName": "Alpha", "description": "d", "presentationText": "hi"},
		"no pitch":       {"projectName": "Alpha", "description": "d", "manualCode": "x"},
		"bad source":     {"projectName": "Alpha", "description": "d", "codeSource": "ftp", "manualCode": "x", "presentationText": "hi"},
		"directory":      {"projectName": "Alpha", "description": "d", "codeSource": "directory", "presentationText": "hi"},
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			status, payload := submit(t, app, fields)
			require.Equal(t, fiber.StatusBadRequest, status)
			require.False(t, payload.Success)
		})
	}

	status, payload := submit(t, app, map[string]string{
		"projectName": "Alpha", "description": "d", "manualCode": "x",
	}, formFile{field: "videoFile", name: "pitch.mp4", body: "definitely not a video"})
	require.Equal(t, fiber.StatusBadRequest, status)
	require.Contains(t, payload.Message, "video")

	code, _, raw := get(t, app, "/api/v1/evaluations")
	require.Equal(t, fiber.StatusOK, code)
	require.Contains(t, string(raw), `"data":[]`)
}

func postBatch(t *testing.T, app *fiber.App, role, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/evaluations/batch", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-Role", role)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func TestEvaluationHandlerBatchEnqueue(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	app := setupEvaluationApp(t, enqueuer)
	body := `{"submissions":[{"name":"Alpha","github_url":"https://github.com/acme/alpha"},{"name":"Beta","description":"A planner.","code":"def plan():\n    return []\n"}]}`

	status, payload := postBatch(t, app, "judge", body)
	require.Equal(t, fiber.StatusAccepted, status, payload.Message)

	var queued dto.BatchEnqueueResponse
	require.NoError(t, json.Unmarshal(payload.Data, &queued))
	require.Equal(t, []string{"task-Alpha", "task-Beta"}, queued.TaskIDs)
	require.Equal(t, "ada", enqueuer.payloads[0].SubmittedBy)

	status, _ = postBatch(t, app, "viewer", body)
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = postBatch(t, app, "admin", `{"submissions":[]}`)
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = postBatch(t, app, "judge", `{"submissions":[{"github_url":"https://github.com/acme/x"}]}`)
	require.Equal(t, fiber.StatusBadRequest, status)

	enqueuer.err = errors.New("redis down")
	status, _ = postBatch(t, app, "judge", body)
	require.Equal(t, fiber.StatusServiceUnavailable, status)
}

func TestEvaluationHandlerBatchRejectsLocalPaths(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	app := setupEvaluationApp(t, enqueuer)

	bodies := map[string]string{
		"description file": `{"submissions":[{"name":"Alpha","description_file":"/etc/hostname"}]}`,
		"code dir":         `{"submissions":[{"name":"Alpha","description":"x","code_dir":"/"}]}`,
		"code file":        `{"submissions":[{"name":"Alpha","description":"x","code_file":"/etc/passwd"}]}`,
		"video":            `{"submissions":[{"name":"Alpha","description":"x","video":"/tmp/pitch.mp4"}]}`,
		"transcript file":  `{"submissions":[{"name":"Alpha","description":"x","transcript_file":"/etc/hostname"}]}`,
		"second entry":     `{"submissions":[{"name":"Alpha","description":"x"},{"name":"Beta","code_dir":"/srv"}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			status, payload := postBatch(t, app, "judge", body)
			require.Equal(t, fiber.StatusBadRequest, status)
			require.Contains(t, payload.Message, "not accepted over HTTP")
		})
	}
	require.Empty(t, enqueuer.payloads)
}

func TestEvaluationHandlerBatchWithoutQueue(t *testing.T) {
	app := setupEvaluationApp(t, nil)
	status, _ := postBatch(t, app, "judge", `{"submissions":[{"name":"Alpha"}]}`)
	require.Equal(t, fiber.StatusServiceUnavailable, status)
}
