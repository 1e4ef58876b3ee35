package middleware

import (
	"context"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type ctxKey string

const OriginKey ctxKey = "origin"

// Origin identifies who sent an update and where answers go.
type Origin struct {
	UserID string
	ChatID string
	// GroupID is set for group and supergroup chats.
	GroupID string
	// MessageID is the inbound message, zero for callbacks.
	MessageID int
}

// GetOrigin extracts the origin from context.
func GetOrigin(ctx context.Context) (Origin, bool) {
	o, ok := ctx.Value(OriginKey).(Origin)
	return o, ok
}

// OriginFor derives the origin of an update.
func OriginFor(update *models.Update) (Origin, bool) {
	var from *models.User
	var chat *models.Chat
	var messageID int

	if update.Message != nil {
		from = update.Message.From
		chat = &update.Message.Chat
		messageID = update.Message.ID
	} else if update.CallbackQuery != nil {
		from = &update.CallbackQuery.From
		if msg := update.CallbackQuery.Message.Message; msg != nil {
			chat = &msg.Chat
		}
	}
	if from == nil || chat == nil {
		return Origin{}, false
	}

	o := Origin{
		UserID:    strconv.FormatInt(from.ID, 10),
		ChatID:    strconv.FormatInt(chat.ID, 10),
		MessageID: messageID,
	}
	if chat.Type == models.ChatTypeGroup || chat.Type == models.ChatTypeSupergroup {
		o.GroupID = o.ChatID
	}
	return o, true
}

// OriginLoader returns middleware that stores the update's origin in context.
func OriginLoader() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if o, ok := OriginFor(update); ok {
				ctx = context.WithValue(ctx, OriginKey, o)
			}
			next(ctx, b, update)
		}
	}
}
