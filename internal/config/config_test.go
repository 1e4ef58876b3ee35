package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("BASE_URL", "https://memoir.example/")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "https://memoir.example", cfg.BaseURL)
	assert.Equal(t, "https://memoir.example/liff/edit.html", cfg.EditURL)
	assert.Equal(t, "https://memoir.example/liff/edit.html?session_id=quick_1", cfg.SessionEditURL("quick_1"))
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 60*time.Second, cfg.RenderTimeout)
	assert.Equal(t, "A4", cfg.PageSize)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.False(t, cfg.UsesWebhook())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("WEBHOOK_URL", "https://memoir.example/callback")
	t.Setenv("SESSION_TTL", "0s")
	t.Setenv("SESSION_SWEEP_INTERVAL", "0s")
	t.Setenv("RENDER_WORKERS", "0")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.True(t, cfg.UsesWebhook())
	assert.Zero(t, cfg.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.SessionSweepInterval)
	assert.Equal(t, 1, cfg.RenderWorkers)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing token":     {},
		"s3 without bucket": {"BOT_TOKEN": "x", "STORAGE_BACKEND": "s3", "S3_BUCKET": ""},
		"unknown backend":   {"BOT_TOKEN": "x", "STORAGE_BACKEND": "ftp"},
		"unknown provider":  {"BOT_TOKEN": "x", "LLM_PROVIDER": "llama"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("BOT_TOKEN", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
