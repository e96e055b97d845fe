package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "key")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "x-auth-token", cfg.Upstream.TokenHeader)
	assert.Equal(t, 300*time.Millisecond, cfg.Probe.Debounce)
	assert.Equal(t, "portfolio_session", cfg.Session.CookieName)
	assert.True(t, cfg.Submit.WireCompatible)
	assert.Equal(t, int64(10<<20), cfg.Attachment.MaxBytes)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "key")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "secret")
	t.Setenv("PORTFOLIO_API_URL", "https://portfolio.example.com")
	t.Setenv("PROBE_DEBOUNCE", "150ms")
	t.Setenv("SUBMIT_WIRE_COMPATIBLE", "false")
	t.Setenv("CONTACT_RATE_LIMIT", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://portfolio.example.com", cfg.Upstream.BaseURL)
	assert.Equal(t, 150*time.Millisecond, cfg.Probe.Debounce)
	assert.False(t, cfg.Submit.WireCompatible)
	assert.Equal(t, 2, cfg.Contact.RateLimit)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "key")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "secret")
	t.Setenv("PORTFOLIO_API_URL", "not a url")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresMinIOCredentials(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "minio access key id is required")
}

func TestLoadWorkerAndLoginSettings(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "key")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "secret")
	t.Setenv("LOGIN_LOCK_THRESHOLD", "3")
	t.Setenv("WORKER_METRICS_PORT", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Session.LoginLockThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Session.LoginLockTTL)
	assert.Zero(t, cfg.Worker.MetricsPort)
	assert.Equal(t, 168*time.Hour, cfg.Attachment.StagedMaxAge)
}

func TestLoadRejectsSweepShorterThanDrafts(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY_ID", "key")
	t.Setenv("MINIO_SECRET_ACCESS_KEY", "secret")
	t.Setenv("DRAFT_TTL", "48h")
	t.Setenv("ATTACHMENT_STAGED_MAX_AGE", "24h")

	_, err := Load()
	assert.ErrorContains(t, err, "staged max age")
}
