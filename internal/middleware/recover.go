package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const msgPanic = "申し訳ありません。処理中にエラーが発生しました。もう一度お試しください。"

// Recover returns middleware that turns a handler panic into a logged error,
// an apology to the chat and, when report is set, an operator alert.
func Recover(report func(err error, context string)) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				o, _ := OriginFor(update)
				slog.Error("panic recovered in handler",
					"panic", r,
					"update_id", update.ID,
					"chat_id", o.ChatID,
					"stack", string(debug.Stack()),
				)
				if report != nil {
					report(fmt.Errorf("panic: %v", r), fmt.Sprintf("update %d from user %s", update.ID, o.UserID))
				}
				if o.ChatID != "" && b != nil {
					if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: o.ChatID, Text: msgPanic}); err != nil {
						slog.Warn("failed to send panic apology", "chat_id", o.ChatID, "error", err)
					}
				}
			}()
			next(ctx, b, update)
		}
	}
}
