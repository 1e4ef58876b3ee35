package handler

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/memoirbot/internal/config"
	"github.com/set-night/memoirbot/internal/dispatch"
	"github.com/set-night/memoirbot/internal/storage"
	tg "github.com/set-night/memoirbot/internal/telegram"
)

// HandleUpdate routes plain text and photos to the dispatch router.
func (h *Handler) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery != nil {
		h.handleNoop(ctx, b, update)
		return
	}
	if update.Message == nil || update.Message.From == nil || update.Message.From.IsBot {
		return
	}

	msg := update.Message
	ev, ok := eventFrom(ctx, update)
	if !ok {
		return
	}

	switch {
	case len(msg.Photo) > 0:
		h.handlePhoto(ctx, b, ev, msg)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		h.handleImageDocument(ctx, b, ev, msg.Document)
	case msg.Text != "" && !strings.HasPrefix(msg.Text, "/"):
		ev.Text = msg.Text
		stop := tg.StartTyping(ctx, b, msg.Chat.ID)
		h.router.HandleText(ctx, ev)
		stop()
	}
}

func (h *Handler) handlePhoto(ctx context.Context, b *bot.Bot, ev dispatch.Event, msg *models.Message) {
	photo, ok := tg.LargestPhoto(msg.Photo)
	if !ok {
		return
	}
	h.storeImage(ctx, b, ev, photo.FileID, "image/jpeg")
}

func (h *Handler) handleImageDocument(ctx context.Context, b *bot.Bot, ev dispatch.Event, doc *models.Document) {
	h.storeImage(ctx, b, ev, doc.FileID, doc.MimeType)
}

// storeImage downloads an image, saves it under the chat's owner and routes
// its object store URL.
func (h *Handler) storeImage(ctx context.Context, b *bot.Bot, ev dispatch.Event, fileID, contentType string) {
	dctx, cancel := context.WithTimeout(ctx, config.ImageDownloadTimeout)
	defer cancel()

	data, filePath, err := tg.DownloadFile(dctx, b, fileID)
	if err != nil {
		slog.Error("download photo", "error", err, "user_id", ev.UserID, "chat_id", ev.ChatID)
		h.reply(ctx, ev, dispatch.Message{Text: msgImageFailed})
		return
	}

	meta, err := h.uploads.Save(ctx, storage.SaveParams{
		Data:        data,
		Filename:    path.Base(filePath),
		ContentType: contentType,
		Owner:       ev.Owner(),
		UploaderID:  ev.UserID,
	})
	if err != nil {
		slog.Error("save photo", "error", err, "user_id", ev.UserID)
		if h.tgLogger != nil {
			h.tgLogger.LogError(err, "save photo from "+ev.UserID)
		}
		h.reply(ctx, ev, dispatch.Message{Text: msgImageFailed})
		return
	}

	ev.Image = h.uploads.URLFor(meta, ev.Requester())
	h.router.HandleImage(ctx, ev)
}

// handleAction replays a story review button as a text message.
func (h *Handler) handleAction(ctx context.Context, b *bot.Bot, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})

	text, ok := tg.ParseAction(cq.Data)
	if !ok {
		return
	}
	ev, ok := eventFrom(ctx, update)
	if !ok {
		return
	}
	ev.Text = text
	h.router.HandleText(ctx, ev)
}

func (h *Handler) reply(ctx context.Context, ev dispatch.Event, msg dispatch.Message) {
	if err := h.messenger.Reply(ctx, ev, msg); err != nil {
		slog.Error("reply failed", "error", err, "chat_id", ev.ChatID)
	}
}

const msgImageFailed = "画像の受信に失敗しました。もう一度送ってください。"
