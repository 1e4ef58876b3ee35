package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Logging returns middleware that logs update processing time.
func Logging() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			start := time.Now()
			next(ctx, b, update)

			o, _ := OriginFor(update)
			slog.Debug("update processed",
				"type", updateType(update),
				"chat_id", o.ChatID,
				"user_id", o.UserID,
				"group", o.GroupID != "",
				"duration", time.Since(start),
			)
		}
	}
}

func updateType(update *models.Update) string {
	switch {
	case update.CallbackQuery != nil:
		return "callback_query"
	case update.Message == nil:
		return "unknown"
	case len(update.Message.Photo) > 0:
		return "photo"
	case update.Message.Document != nil:
		return "document"
	default:
		return "message"
	}
}
