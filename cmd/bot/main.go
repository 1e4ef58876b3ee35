package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jackc/pgx/v5/pgxpool"

	memoirbot "github.com/set-night/memoirbot"
	"github.com/set-night/memoirbot/internal/api"
	"github.com/set-night/memoirbot/internal/config"
	"github.com/set-night/memoirbot/internal/dispatch"
	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/flow"
	"github.com/set-night/memoirbot/internal/handler"
	"github.com/set-night/memoirbot/internal/metrics"
	"github.com/set-night/memoirbot/internal/middleware"
	"github.com/set-night/memoirbot/internal/render"
	"github.com/set-night/memoirbot/internal/repository"
	"github.com/set-night/memoirbot/internal/schema"
	"github.com/set-night/memoirbot/internal/service"
	"github.com/set-night/memoirbot/internal/session"
	"github.com/set-night/memoirbot/internal/storage"
	"github.com/set-night/memoirbot/internal/telegram"
	"github.com/set-night/memoirbot/internal/worker"
)

func main() {
	// Setup structured logging
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.SlogLevel())

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	limiter := middleware.NewChatLimiter(cfg.RateLimitPerMinute)

	// Handler and operator log are created after the bot, the closures below see them once set.
	var h *handler.Handler
	var tgLogger *telegram.TelegramLogger

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(func(err error, where string) {
				if tgLogger != nil {
					tgLogger.LogError(err, where)
				}
			}),
			middleware.Logging(),
			middleware.RateLimit(limiter),
			middleware.OriginLoader(),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			h.HandleUpdate(ctx, b, update)
		}),
	}
	if cfg.UsesWebhook() && cfg.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	// Initialize telegram logger
	tgLogger = telegram.NewTelegramLogger(b, cfg)

	// Object store
	index, pool, err := openIndex(ctx, cfg)
	if err != nil {
		slog.Error("failed to open file index", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}
	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		slog.Error("failed to open blob storage", "error", err, "backend", cfg.StorageBackend)
		os.Exit(1)
	}
	files := storage.NewStore(blobs, index, cfg.BaseURL, storage.WithSaveHook(func(meta domain.FileMeta) {
		m.FileSaved(meta.MessageType)
		if meta.ContentType == "application/pdf" {
			tgLogger.LogDocument(meta)
		}
	}))

	samples := storage.NewSampleDir(cfg.SamplesDir, cfg.BaseURL)

	// Text generation
	completer, closeCompleter, err := newCompleter(ctx, cfg)
	if err != nil {
		slog.Error("failed to create text generation client", "error", err, "provider", cfg.LLMProvider)
		os.Exit(1)
	}
	defer closeCompleter()
	writer := service.NewWriter(completer)

	// Rendering
	registry := schema.Default()
	viv, err := render.NewVivliostyle(cfg.VivliostyleBin,
		render.WithPageSize(cfg.PageSize),
		render.WithCropMarks(cfg.CropMarks),
		render.WithBleed(cfg.Bleed),
	)
	if err != nil {
		slog.Error("failed to load document templates", "error", err)
		os.Exit(1)
	}
	orchestrator := render.NewOrchestrator(viv, files, registry,
		render.WithScratchDir(cfg.ScratchDir),
		render.WithTimeout(cfg.RenderTimeout),
	)
	tasks := worker.New(cfg.RenderWorkers, cfg.RenderQueue)

	// Sessions and flows
	stores := dispatch.NewStores(session.WithTTL(cfg.SessionTTL))
	for _, st := range stores.All() {
		st := st
		m.ActiveSessions(string(st.Flow()), func() float64 { return float64(st.Len()) })
	}
	m.TasksInFlight(func() float64 { return float64(tasks.InFlight()) })

	sender := telegram.NewSender(b)
	router := dispatch.New(dispatch.Deps{
		Quick:         flow.NewQuick(),
		Photo:         flow.NewPhoto(),
		Media:         flow.NewMedia(registry),
		Profile:       flow.NewProfile(),
		Stores:        stores,
		Writer:        writer,
		Renderer:      orchestrator,
		Files:         files,
		Samples:       samples,
		Pool:          tasks,
		Messenger:     sender,
		EditURL:       cfg.SessionEditURL,
		MediaTemplate: config.DefaultMediaTemplate,
		Metrics:       m,
		Alerter:       tgLogger,
	})

	// Initialize handler
	h = handler.New(handler.Deps{
		Bot:       b,
		Cfg:       cfg,
		Router:    router,
		Uploads:   files,
		Messenger: sender,
		TgLogger:  tgLogger,
	})

	// Register all handlers
	h.Register()

	// HTTP server
	apiDeps := api.Deps{
		WebhookSecret:  cfg.WebhookSecret,
		Files:          files,
		Sessions:       router,
		Writer:         writer,
		Templates:      registry,
		Metrics:        m.Handler(),
		SamplesDir:     samples.Dir(),
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: 3 * cfg.RenderTimeout,
	}
	if cfg.UsesWebhook() {
		apiDeps.Webhook = b.WebhookHandler()
	}
	srv := api.NewServer(cfg.Port, api.NewRouter(apiDeps))
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	// Expire idle sessions and forget finished tasks
	go func() {
		ticker := time.NewTicker(cfg.SessionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, st := range stores.All() {
					if n := st.Sweep(); n > 0 {
						slog.Info("expired sessions removed", "flow", st.Flow(), "count", n)
					}
				}
				tasks.Cleanup(time.Hour)
				limiter.Prune(10 * time.Minute)
			}
		}
	}()

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID, "webhook", cfg.UsesWebhook())
	if cfg.UsesWebhook() {
		_, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:                cfg.WebhookURL,
			SecretToken:        cfg.WebhookSecret,
			DropPendingUpdates: cfg.DropPendingUpdates,
		})
		if err != nil {
			slog.Error("failed to set webhook", "error", err)
			os.Exit(1)
		}
		b.StartWebhook(ctx)
	} else {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: cfg.DropPendingUpdates}); err != nil {
			slog.Warn("failed to delete webhook", "error", err)
		}
		b.Start(ctx)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown", "error", err)
	}
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		slog.Error("worker pool shutdown", "error", err)
	}
	slog.Info("bot stopped gracefully")
}

// openIndex uses Postgres when DATABASE_URL is set and a JSON file next to
// the uploads otherwise.
func openIndex(ctx context.Context, cfg *config.Config) (storage.Index, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
			return nil, nil, err
		}
		idx, err := storage.OpenJSONIndex(filepath.Join(cfg.UploadsDir, "metadata.json"))
		return idx, nil, err
	}

	migrationsFS, err := fs.Sub(memoirbot.MigrationsFS, "migrations")
	if err != nil {
		return nil, nil, err
	}
	pool, err := repository.Open(ctx, cfg.DatabaseURL, migrationsFS)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewPGIndex(pool), pool, nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (storage.Blobs, error) {
	switch cfg.StorageBackend {
	case "s3":
		return storage.NewS3Blobs(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    cfg.S3Prefix,
		})
	case "local":
		return storage.NewLocalBlobs(cfg.UploadsDir)
	default:
		return nil, errors.New("unknown storage backend " + cfg.StorageBackend)
	}
}

func newCompleter(ctx context.Context, cfg *config.Config) (service.Completer, func(), error) {
	if cfg.LLMProvider == "gemini" {
		g, err := service.NewGeminiCompleter(ctx, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)
		if err != nil {
			return nil, nil, err
		}
		return g, func() {
			if err := g.Close(); err != nil {
				slog.Warn("close gemini client", "error", err)
			}
		}, nil
	}
	return service.NewOpenAICompleter(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMTimeout), func() {}, nil
}
