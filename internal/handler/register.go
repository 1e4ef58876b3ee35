package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/telegram"
)

// commandFlows maps flow commands to the flow they start.
var commandFlows = map[string]domain.FlowType{
	"/quick":    domain.FlowQuick,
	"/photo":    domain.FlowPhoto,
	"/template": domain.FlowMedia,
	"/timeline": domain.FlowProfile,
}

// Register registers all command and callback handlers on the bot instance.
// Plain text and photos reach HandleUpdate through the default handler.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypePrefix, h.handleCancel)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/files", bot.MatchTypePrefix, h.handleFiles)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/samples", bot.MatchTypePrefix, h.handleSamples)
	for command := range commandFlows {
		h.bot.RegisterHandler(bot.HandlerTypeMessageText, command, bot.MatchTypePrefix, h.handleFlowCommand)
	}

	// Story review buttons
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, telegram.ActionPrefix, bot.MatchTypePrefix, h.handleAction)
}

// handleNoop acknowledges callback queries nothing else handles.
func (h *Handler) handleNoop(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery != nil {
		b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		})
	}
}
