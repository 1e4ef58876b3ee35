package handler

import (
	"context"

	"github.com/go-telegram/bot"

	"github.com/set-night/memoirbot/internal/config"
	"github.com/set-night/memoirbot/internal/dispatch"
	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/storage"
	"github.com/set-night/memoirbot/internal/telegram"
)

// Router is the part of the dispatch router the bot handlers drive.
type Router interface {
	HandleText(ctx context.Context, ev dispatch.Event)
	HandleImage(ctx context.Context, ev dispatch.Event)
	Start(ctx context.Context, ev dispatch.Event, ft domain.FlowType)
	Cancel(ctx context.Context, ev dispatch.Event)
	ListFiles(ctx context.Context, ev dispatch.Event)
	ListSamples(ctx context.Context, ev dispatch.Event)
}

// Uploads stores photos received from chats.
type Uploads interface {
	Save(ctx context.Context, p storage.SaveParams) (domain.FileMeta, error)
	URLFor(meta domain.FileMeta, req domain.Requester) string
}

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot       *bot.Bot
	cfg       *config.Config
	router    Router
	uploads   Uploads
	messenger dispatch.Messenger
	tgLogger  *telegram.TelegramLogger
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot       *bot.Bot
	Cfg       *config.Config
	Router    Router
	Uploads   Uploads
	Messenger dispatch.Messenger
	TgLogger  *telegram.TelegramLogger
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:       deps.Bot,
		cfg:       deps.Cfg,
		router:    deps.Router,
		uploads:   deps.Uploads,
		messenger: deps.Messenger,
		tgLogger:  deps.TgLogger,
	}
}
