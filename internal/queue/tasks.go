package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/hackathon-judge/internal/dto"
)

// TypeEvaluationRun evaluates one manifest entry.
const TypeEvaluationRun = "evaluation:run"

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "evaluations"

// ErrInvalidPayload marks a task that can never succeed.
var ErrInvalidPayload = errors.New("invalid evaluation payload")

// EvaluationPayload is the body of a TypeEvaluationRun task. Relative paths
// in Entry are resolved against BaseDir on the worker.
type EvaluationPayload struct {
	Entry       dto.BatchEntry `json:"entry"`
	BaseDir     string         `json:"base_dir,omitempty"`
	SubmittedBy string         `json:"submitted_by,omitempty"`
}

// NewEvaluationTask encodes payload as an asynq task.
func NewEvaluationTask(payload EvaluationPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode evaluation payload: %w", err)
	}
	return asynq.NewTask(TypeEvaluationRun, body), nil
}

// ParseEvaluationPayload decodes a TypeEvaluationRun task.
func ParseEvaluationPayload(task *asynq.Task) (EvaluationPayload, error) {
	var payload EvaluationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EvaluationPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.Entry.Name == "" {
		return EvaluationPayload{}, fmt.Errorf("%w: entry has no name", ErrInvalidPayload)
	}
	return payload, nil
}

// Enqueuer schedules evaluations on the worker fleet.
type Enqueuer interface {
	EnqueueEvaluation(ctx context.Context, payload EvaluationPayload) (string, error)
}

type enqueueClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqEnqueuer pushes evaluation tasks to Redis through asynq.
type AsynqEnqueuer struct {
	client   enqueueClient
	queue    string
	maxRetry int
	timeout  time.Duration
}

// NewAsynqEnqueuer wraps client. timeout bounds one evaluation on the worker.
func NewAsynqEnqueuer(client *asynq.Client, queue string, timeout time.Duration) *AsynqEnqueuer {
	return newAsynqEnqueuer(client, queue, timeout)
}

func newAsynqEnqueuer(client enqueueClient, queue string, timeout time.Duration) *AsynqEnqueuer {
	if queue == "" {
		queue = DefaultQueue
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &AsynqEnqueuer{client: client, queue: queue, maxRetry: 2, timeout: timeout}
}

// EnqueueEvaluation returns the asynq task id.
func (e *AsynqEnqueuer) EnqueueEvaluation(ctx context.Context, payload EvaluationPayload) (string, error) {
	task, err := NewEvaluationTask(payload)
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(e.queue),
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", payload.Entry.Name, err)
	}
	return info.ID, nil
}
