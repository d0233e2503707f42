package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration shared by the API, the worker and the CLI.
type Config struct {
	AppName      string
	AppEnv       string
	AppPort      string
	AllowOrigins string
	AccessLog    bool

	DatabaseURL  string
	RedisURL     string
	NATSURL      string
	EventChannel string
	JWTSecret    string

	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	TranscriptionModel string

	DockerHost       string
	SandboxMemoryMB  int
	SandboxCPUShares int
	PullImages       bool
	ToolImage        string
	GitImage         string
	AnalysisTimeout  time.Duration
	CloneTimeout     time.Duration
	ProviderTimeout  time.Duration

	WorkDir             string
	OutputDir           string
	MaxUploadBytes      int64
	SubmitRateLimit     int
	SubmitRateWindow    time.Duration
	LeaderboardCacheTTL time.Duration

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	WorkerConcurrency int
	QueueName         string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ModelEnabled reports whether a hosted model is configured.
func (c Config) ModelEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// S3Enabled reports whether artifacts go to a bucket instead of OutputDir.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// ValidateAPI checks the settings only the HTTP server needs.
func (c Config) ValidateAPI() error {
	if c.JWTSecret == "" {
		return errors.New("jwt secret must be provided")
	}
	if c.DatabaseURL == "" {
		return errors.New("database url must be provided")
	}
	return nil
}

// Load reads configuration values from JUDGE_* environment variables and an
// optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("JUDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Hackathon Judge")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.allow_origins", "*")
	v.SetDefault("events.channel", "judge")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("sandbox.memory_mb", 512)
	v.SetDefault("sandbox.cpu_shares", 512)
	v.SetDefault("sandbox.pull_images", true)
	v.SetDefault("sandbox.tool_image", "hackathon-judge/pytools:latest")
	v.SetDefault("sandbox.git_image", "alpine/git:latest")
	v.SetDefault("sandbox.analysis_timeout", "2m")
	v.SetDefault("sandbox.clone_timeout", "2m")
	v.SetDefault("provider.timeout", "60s")
	v.SetDefault("output.dir", "results")
	v.SetDefault("upload.max_mb", 200)
	v.SetDefault("submit.rate_limit", 5)
	v.SetDefault("submit.rate_window", "1m")
	v.SetDefault("leaderboard.cache_ttl", "5m")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("cloudinary.folder", "hackathon-judge/presentations")
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.queue", "evaluations")

	cfg := Config{
		AppName:      v.GetString("app.name"),
		AppEnv:       v.GetString("app.env"),
		AppPort:      v.GetString("app.port"),
		AllowOrigins: v.GetString("app.allow_origins"),
		AccessLog:    v.GetBool("app.access_log"),

		DatabaseURL:  v.GetString("database.url"),
		RedisURL:     v.GetString("redis.url"),
		NATSURL:      v.GetString("nats.url"),
		EventChannel: v.GetString("events.channel"),
		JWTSecret:    v.GetString("jwt.secret"),

		OpenAIAPIKey:       v.GetString("openai.api_key"),
		OpenAIBaseURL:      v.GetString("openai.base_url"),
		OpenAIModel:        v.GetString("openai.model"),
		TranscriptionModel: v.GetString("openai.transcription_model"),

		DockerHost:       v.GetString("docker.host"),
		SandboxMemoryMB:  v.GetInt("sandbox.memory_mb"),
		SandboxCPUShares: v.GetInt("sandbox.cpu_shares"),
		PullImages:       v.GetBool("sandbox.pull_images"),
		ToolImage:        v.GetString("sandbox.tool_image"),
		GitImage:         v.GetString("sandbox.git_image"),

		WorkDir:         v.GetString("work.dir"),
		OutputDir:       v.GetString("output.dir"),
		MaxUploadBytes:  int64(v.GetInt("upload.max_mb")) << 20,
		SubmitRateLimit: v.GetInt("submit.rate_limit"),

		S3Endpoint:  v.GetString("s3.endpoint"),
		S3Region:    v.GetString("s3.region"),
		S3Bucket:    v.GetString("s3.bucket"),
		S3AccessKey: v.GetString("s3.access_key"),
		S3SecretKey: v.GetString("s3.secret_key"),
		S3Prefix:    v.GetString("s3.prefix"),

		CloudinaryCloudName: v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:    v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret: v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:    v.GetString("cloudinary.folder"),

		WorkerConcurrency: v.GetInt("worker.concurrency"),
		QueueName:         v.GetString("worker.queue"),
	}

	durations := map[string]*time.Duration{
		"sandbox.analysis_timeout": &cfg.AnalysisTimeout,
		"sandbox.clone_timeout":    &cfg.CloneTimeout,
		"provider.timeout":         &cfg.ProviderTimeout,
		"submit.rate_window":       &cfg.SubmitRateWindow,
		"leaderboard.cache_ttl":    &cfg.LeaderboardCacheTTL,
	}
	for key, target := range durations {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive", key)
		}
		*target = parsed
	}

	if cfg.SandboxMemoryMB <= 0 {
		cfg.SandboxMemoryMB = 512
	}
	if cfg.SandboxCPUShares <= 0 {
		cfg.SandboxCPUShares = 512
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 200 << 20
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}

	return cfg, nil
}
