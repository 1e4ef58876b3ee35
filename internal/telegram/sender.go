package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/memoirbot/internal/dispatch"
)

const MaxMessageLen = 4096

// API is the subset of the bot client used for sending.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Sender delivers dispatch messages as Telegram messages.
type Sender struct {
	api API
}

func NewSender(api API) *Sender {
	return &Sender{api: api}
}

// Reply answers the inbound message. When the reply fails, the message is
// pushed to the chat without a reply reference.
func (s *Sender) Reply(ctx context.Context, ev dispatch.Event, msg dispatch.Message) error {
	chatID, err := ParseChatID(ev.ChatID)
	if err != nil {
		return err
	}
	if ev.MessageID == 0 {
		return s.send(ctx, chatID, msg, nil)
	}

	replyTo := ev.MessageID
	if err := s.send(ctx, chatID, msg, &replyTo); err != nil {
		slog.Warn("reply failed, pushing instead", "chat_id", chatID, "message_id", ev.MessageID, "error", err)
		return s.send(ctx, chatID, msg, nil)
	}
	return nil
}

func (s *Sender) Push(ctx context.Context, chatID string, msg dispatch.Message) error {
	id, err := ParseChatID(chatID)
	if err != nil {
		return err
	}
	return s.send(ctx, id, msg, nil)
}

// send splits long text and attaches the keyboard to the last part.
func (s *Sender) send(ctx context.Context, chatID int64, msg dispatch.Message, replyToID *int) error {
	parts := SplitMessage(msg.Text, MaxMessageLen)
	for i, part := range parts {
		params := &bot.SendMessageParams{
			ChatID: chatID,
			Text:   part,
		}
		if replyToID != nil {
			params.ReplyParameters = &models.ReplyParameters{
				MessageID: *replyToID,
			}
			replyToID = nil // only reply to first part
		}
		last := i == len(parts)-1
		if last {
			if kb := MessageKeyboard(msg); kb != nil {
				params.ReplyMarkup = kb
			}
		}

		_, err := s.api.SendMessage(ctx, params)
		if err != nil && last && params.ReplyMarkup != nil {
			// Telegram rejects URL buttons it cannot open, e.g. localhost.
			slog.Warn("keyboard send failed, inlining links", "chat_id", chatID, "error", err)
			params.ReplyMarkup = nil
			params.Text = withInlineLinks(part, msg.Links)
			_, err = s.api.SendMessage(ctx, params)
		}
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func withInlineLinks(text string, links []dispatch.Link) string {
	if len(links) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n")
	for _, l := range links {
		fmt.Fprintf(&b, "\n%s: %s", l.Label, l.URL)
	}
	return b.String()
}

// ParseChatID converts a dispatch chat id back to a Telegram chat id.
func ParseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}
	return id, nil
}

// StartTyping sends "typing..." action every 4 seconds until the returned cancel function is called.
func StartTyping(ctx context.Context, b *bot.Bot, chatID int64) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		// Send immediately
		b.SendChatAction(ctx, &bot.SendChatActionParams{
			ChatID: chatID,
			Action: models.ChatActionTyping,
		})
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.SendChatAction(ctx, &bot.SendChatActionParams{
					ChatID: chatID,
					Action: models.ChatActionTyping,
				})
			}
		}
	}()
	return cancel
}
