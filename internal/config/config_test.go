package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 60*time.Second, cfg.ProviderTimeout)
	require.Equal(t, 5*time.Minute, cfg.LeaderboardCacheTTL)
	require.Equal(t, int64(200<<20), cfg.MaxUploadBytes)
	require.Equal(t, "evaluations", cfg.QueueName)
	require.False(t, cfg.ModelEnabled())
	require.False(t, cfg.S3Enabled())
	require.Error(t, cfg.ValidateAPI())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JUDGE_APP_PORT", ":9000")
	t.Setenv("JUDGE_PROVIDER_TIMEOUT", "15s")
	t.Setenv("JUDGE_OPENAI_API_KEY", "sk-test")
	t.Setenv("JUDGE_S3_BUCKET", "judging")
	t.Setenv("JUDGE_JWT_SECRET", "secret")
	t.Setenv("JUDGE_DATABASE_URL", "sqlite://judge.db")
	t.Setenv("JUDGE_UPLOAD_MAX_MB", "10")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.HTTPAddress())
	require.Equal(t, 15*time.Second, cfg.ProviderTimeout)
	require.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	require.True(t, cfg.ModelEnabled())
	require.True(t, cfg.S3Enabled())
	require.NoError(t, cfg.ValidateAPI())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JUDGE_PROVIDER_TIMEOUT", "soon")

	_, err := Load()
	require.ErrorContains(t, err, "provider.timeout")
}
