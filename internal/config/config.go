package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required,notEmpty"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Webhook mode is used when WebhookURL is set, long polling otherwise.
	WebhookURL         string `env:"WEBHOOK_URL"`
	WebhookSecret      string `env:"WEBHOOK_SECRET"`
	DropPendingUpdates bool   `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Server
	Port        int      `env:"PORT" envDefault:"8000"`
	BaseURL     string   `env:"BASE_URL" envDefault:"http://localhost:8000"`
	EditURL     string   `env:"EDIT_URL"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`

	// Text generation
	LLMProvider string        `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMAPIKey   string        `env:"LLM_API_KEY"`
	LLMBaseURL  string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel    string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeout  time.Duration `env:"LLM_TIMEOUT" envDefault:"90s"`

	// Object store
	UploadsDir     string `env:"UPLOADS_DIR" envDefault:"uploads"`
	SamplesDir     string `env:"SAMPLES_DIR" envDefault:"samples"`
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3Prefix       string `env:"S3_PREFIX" envDefault:"uploads"`

	// Rendering
	VivliostyleBin string        `env:"VIVLIOSTYLE_BIN" envDefault:"vivliostyle"`
	RenderTimeout  time.Duration `env:"RENDER_TIMEOUT" envDefault:"60s"`
	RenderWorkers  int           `env:"RENDER_WORKERS" envDefault:"2"`
	RenderQueue    int           `env:"RENDER_QUEUE" envDefault:"16"`
	ScratchDir     string        `env:"SCRATCH_DIR"`
	PageSize       string        `env:"RENDER_PAGE_SIZE" envDefault:"A4"`
	CropMarks      bool          `env:"RENDER_CROP_MARKS" envDefault:"false"`
	Bleed          string        `env:"RENDER_BLEED"`

	// Sessions. A zero TTL keeps sessions until the process exits.
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`

	// Telegram logging
	LogTelegramChatID int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int   `env:"LOG_TOPIC_ERROR"`
	LogTopicRender    int   `env:"LOG_TOPIC_RENDER"`
}

// Load reads an optional .env file and then parses the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.EditURL == "" {
		cfg.EditURL = cfg.BaseURL + "/liff/edit.html"
	}
	if cfg.RenderWorkers < 1 {
		cfg.RenderWorkers = 1
	}
	if cfg.SessionSweepInterval <= 0 {
		cfg.SessionSweepInterval = 5 * time.Minute
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("parse config: S3_BUCKET is required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("parse config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	switch c.LLMProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("parse config: unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// UsesWebhook reports whether updates arrive through POST /callback.
func (c *Config) UsesWebhook() bool {
	return c.WebhookURL != ""
}

// SessionEditURL is the link to the structured edit page for a session.
func (c *Config) SessionEditURL(sessionID string) string {
	return c.EditURL + "?session_id=" + sessionID
}
