package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"

	"github.com/set-night/memoirbot/internal/config"
	"github.com/set-night/memoirbot/internal/domain"
)

type LogType string

const (
	LogTypeError  LogType = "error"
	LogTypeRender LogType = "render"
)

const logSendTimeout = 10 * time.Second

// TelegramLogger mirrors operational events to topics of an operator chat.
// It is a no-op unless LOG_TELEGRAM_CHAT_ID and the topic for the event type
// are configured.
type TelegramLogger struct {
	api API
	cfg *config.Config
	now func() time.Time
}

func NewTelegramLogger(api API, cfg *config.Config) *TelegramLogger {
	return &TelegramLogger{api: api, cfg: cfg, now: time.Now}
}

func (l *TelegramLogger) topic(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeRender:
		return l.cfg.LogTopicRender
	}
	return 0
}

// Log sends message to the topic of logType. Only the first message-sized
// part is sent.
func (l *TelegramLogger) Log(logType LogType, message string) {
	topicID := l.topic(logType)
	if l.cfg.LogTelegramChatID == 0 || topicID == 0 {
		return
	}
	if parts := SplitMessage(message, MaxMessageLen-20); len(parts) > 1 {
		message = parts[0] + "\n\n... (truncated)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), logSendTimeout)
	defer cancel()

	_, err := l.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            FixMarkdown(message),
		ParseMode:       "Markdown",
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

// LogError reports a failure that users only saw as a generic apology.
func (l *TelegramLogger) LogError(err error, context string) {
	var b strings.Builder
	b.WriteString("❌ *Error*\n\n")
	fmt.Fprintf(&b, "*Context:* %s\n", context)
	fmt.Fprintf(&b, "*Error:* `%s`\n", strings.ReplaceAll(err.Error(), "`", "'"))
	fmt.Fprintf(&b, "*Time:* %s", l.now().Format(time.DateTime))
	l.Log(LogTypeError, b.String())
}

// LogDocument reports a stored PDF.
func (l *TelegramLogger) LogDocument(meta domain.FileMeta) {
	l.Log(LogTypeRender, fmt.Sprintf("📄 *PDF stored*\n\n*File:* `%s`\n*Owner:* %s `%s`\n*Size:* %d KB",
		meta.OriginalFilename, meta.OwnerType, meta.OwnerID, meta.FileSize/1024))
}
