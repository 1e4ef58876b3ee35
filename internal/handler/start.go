package handler

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/memoirbot/internal/dispatch"
	"github.com/set-night/memoirbot/internal/middleware"
)

const welcomeText = "👋 こんにちは！自分史づくりのお手伝いをします。\n\n" +
	"📋 作り方:\n" +
	"/quick：タイトルと写真3枚ですぐ作る（「作成」でもOK）\n" +
	"/photo：写真ごとにストーリーを作る（「写真で自分史」）\n" +
	"/template：テンプレートに沿って作る（「テンプレート」）\n" +
	"/timeline：プロフィールと年表から作る（「自分史作成」）\n\n" +
	"/files：保存されているファイル\n" +
	"/samples：サンプルPDF（「サンプル確認」）\n" +
	"「レポート作成」「テキスト生成」「JSON生成」：AIがファイルを作成\n" +
	"/cancel：作成中の自分史をキャンセル\n\n" +
	"作成中に「ヘルプ」と送ると、今のステップの説明を表示します。"

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	ev, ok := eventFrom(ctx, update)
	if !ok {
		return
	}
	h.reply(ctx, ev, dispatch.Message{Text: welcomeText})
}

func (h *Handler) handleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if ev, ok := eventFrom(ctx, update); ok {
		h.router.Cancel(ctx, ev)
	}
}

func (h *Handler) handleFiles(ctx context.Context, b *bot.Bot, update *models.Update) {
	if ev, ok := eventFrom(ctx, update); ok {
		h.router.ListFiles(ctx, ev)
	}
}

func (h *Handler) handleSamples(ctx context.Context, b *bot.Bot, update *models.Update) {
	if ev, ok := eventFrom(ctx, update); ok {
		h.router.ListSamples(ctx, ev)
	}
}

func (h *Handler) handleFlowCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	ev, ok := eventFrom(ctx, update)
	if !ok {
		return
	}
	ft, ok := commandFlows[commandName(update.Message.Text)]
	if !ok {
		return
	}
	h.router.Start(ctx, ev, ft)
}

// commandName strips arguments and the @bot suffix from a command.
func commandName(text string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

// eventFrom builds a dispatch event from the update origin.
func eventFrom(ctx context.Context, update *models.Update) (dispatch.Event, bool) {
	o, ok := middleware.GetOrigin(ctx)
	if !ok {
		if o, ok = middleware.OriginFor(update); !ok {
			return dispatch.Event{}, false
		}
	}
	return dispatch.Event{
		UserID:    o.UserID,
		ChatID:    o.ChatID,
		GroupID:   o.GroupID,
		MessageID: o.MessageID,
	}, true
}
