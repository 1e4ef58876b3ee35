package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

// ChatLimiter hands out one token bucket per chat.
type ChatLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*chatEntry
	every    rate.Limit
	burst    int
	now      func() time.Time
}

type chatEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewChatLimiter allows perMinute messages per chat, all of which may
// arrive at once.
func NewChatLimiter(perMinute int) *ChatLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &ChatLimiter{
		limiters: make(map[int64]*chatEntry),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		now:      time.Now,
	}
}

// Allow reports whether chatID may send another message now.
func (l *ChatLimiter) Allow(chatID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.limiters[chatID]
	if !ok {
		e = &chatEntry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[chatID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Prune forgets chats idle for longer than idle.
func (l *ChatLimiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	n := 0
	for id, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, id)
			n++
		}
	}
	return n
}

// RateLimit returns middleware that enforces per-minute rate limits.
func RateLimit(limiter *ChatLimiter) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			// Only rate limit messages (not callbacks or other updates)
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			if !limiter.Allow(chatID) {
				slog.Debug("rate limited", "chat_id", chatID)
				b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: chatID,
					Text:   "⏳ メッセージが多すぎます。少し待ってからもう一度送信してください。",
				})
				return
			}

			next(ctx, b, update)
		}
	}
}
