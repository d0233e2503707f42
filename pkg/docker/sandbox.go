package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "judge",
		Subsystem: "sandbox",
		Name:      "job_duration_seconds",
		Help:      "Duration of sandboxed tool runs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"image"})

	jobTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judge",
		Subsystem: "sandbox",
		Name:      "job_timeouts_total",
		Help:      "Number of sandboxed tool runs that hit the timeout",
	}, []string{"image"})

	jobFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "judge",
		Subsystem: "sandbox",
		Name:      "job_failures_total",
		Help:      "Number of sandboxed tool runs that could not complete",
	}, []string{"image"})
)

// ErrTimedOut is returned when a job exceeds its deadline.
var ErrTimedOut = errors.New("sandbox job timed out")

// Runner runs one-shot commands in throwaway containers.
type Runner interface {
	Run(ctx context.Context, job Job) (JobResult, error)
}

// Job describes one command to run against a mounted workspace.
type Job struct {
	Image     string
	Cmd       []string
	Env       []string
	Workspace string
	// Writable mounts the workspace read-write. Analysis jobs leave it false.
	Writable bool
	// Network enables the bridge network. Analysis jobs leave it false.
	Network bool
	Timeout time.Duration
}

// JobResult captures the output of a finished job.
type JobResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Config groups sandbox configuration values.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	MountPath     string
	PullImages    bool
	Logger        zerolog.Logger
}

// Sandbox implements Runner using the Docker engine API.
type Sandbox struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewSandbox constructs a Docker backed sandbox.
func NewSandbox(cfg Config) (*Sandbox, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.MountPath == "" {
		cfg.MountPath = "/workspace"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Sandbox{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/hackathon-judge/pkg/docker"),
		logger: logger.With().Str("component", "sandbox").Logger(),
	}, nil
}

// MountPath is where job workspaces appear inside the container.
func (s *Sandbox) MountPath() string {
	return s.cfg.MountPath
}

// Run executes job and returns its output. A non-zero exit code is not an
// error; callers decide what the tool's exit status means.
func (s *Sandbox) Run(parent context.Context, job Job) (JobResult, error) {
	if job.Image == "" {
		return JobResult{}, errors.New("image is required")
	}

	ctx, span := s.tracer.Start(parent, "docker.sandbox.run", trace.WithAttributes(
		attribute.String("docker.image", job.Image),
		attribute.Bool("docker.network", job.Network),
	))
	defer span.End()

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fail := func(stage string, err error) (JobResult, error) {
		jobFailures.WithLabelValues(job.Image).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return JobResult{}, fmt.Errorf("%s: %w", stage, err)
	}

	if s.cfg.PullImages {
		if err := s.pull(ctx, job.Image); err != nil {
			return fail("image pull", err)
		}
	}

	hostCfg := &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: !job.Network,
		Resources: container.Resources{
			Memory:    s.cfg.MemoryLimitMB * 1024 * 1024,
			CPUShares: s.cfg.CPUShares,
		},
	}
	if job.Network {
		hostCfg.NetworkMode = "bridge"
	}
	if job.Workspace != "" {
		hostCfg.Mounts = []mount.Mount{{
			Type:     mount.TypeBind,
			Source:   job.Workspace,
			Target:   s.cfg.MountPath,
			ReadOnly: !job.Writable,
		}}
	}
	if !job.Network {
		hostCfg.Tmpfs = map[string]string{"/tmp": "rw,size=64m"}
	}

	config := &container.Config{
		Image:        job.Image,
		Cmd:          job.Cmd,
		Env:          job.Env,
		WorkingDir:   s.cfg.MountPath,
		AttachStdout: true,
		AttachStderr: true,
	}

	start := time.Now()
	resp, err := s.client.ContainerCreate(ctx, config, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return fail("container create", err)
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			s.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := s.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fail("container start", err)
	}

	result := JobResult{}
	statusCh, errCh := s.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)

	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	result.Duration = time.Since(start)
	jobDuration.WithLabelValues(job.Image).Observe(result.Duration.Seconds())

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			jobTimeouts.WithLabelValues(job.Image).Inc()
			killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
				s.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
			}
			span.RecordError(ErrTimedOut)
			span.SetStatus(codes.Error, "job timed out")
			return result, fmt.Errorf("%w after %s", ErrTimedOut, timeout)
		}
		return fail("container wait", waitErr)
	}

	logCtx, cancelLogs := context.WithTimeout(context.WithoutCancel(parent), 10*time.Second)
	defer cancelLogs()
	logReader, err := s.client.ContainerLogs(logCtx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to fetch container logs")
		return result, nil
	}
	defer logReader.Close()

	stdout, stderr, err := splitDockerLogs(logReader)
	if err != nil {
		s.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to read container logs")
		return result, nil
	}
	result.Stdout = stdout
	result.Stderr = stderr

	return result, nil
}

func (s *Sandbox) pull(ctx context.Context, ref string) error {
	reader, err := s.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

func splitDockerLogs(reader io.Reader) (string, string, error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		return "", "", err
	}
	return stdoutBuf.String(), stderrBuf.String(), nil
}

// Close shuts down the sandbox's underlying client.
func (s *Sandbox) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
