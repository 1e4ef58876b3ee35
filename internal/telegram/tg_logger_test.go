package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/memoirbot/internal/config"
)

func TestTelegramLogger(t *testing.T) {
	t.Run("disabled without chat", func(t *testing.T) {
		api := &fakeAPI{}
		l := NewTelegramLogger(api, &config.Config{LogTopicError: 3})
		l.LogError(errors.New("boom"), "render")
		assert.Empty(t, api.calls)
	})

	t.Run("error goes to its topic", func(t *testing.T) {
		api := &fakeAPI{}
		l := NewTelegramLogger(api, &config.Config{LogTelegramChatID: -100, LogTopicError: 3})
		l.now = func() time.Time { return time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC) }

		l.LogError(errors.New("exit `1`"), "render abc")

		require.Len(t, api.calls, 1)
		assert.Equal(t, int64(-100), api.calls[0].ChatID)
		assert.Equal(t, 3, api.calls[0].MessageThreadID)
		assert.Contains(t, api.calls[0].Text, "render abc")
		assert.Contains(t, api.calls[0].Text, "`exit '1'`")
		assert.Contains(t, api.calls[0].Text, "2024-05-20 10:00:00")
	})

	t.Run("render topic unset", func(t *testing.T) {
		api := &fakeAPI{}
		l := NewTelegramLogger(api, &config.Config{LogTelegramChatID: -100, LogTopicError: 3})
		l.Log(LogTypeRender, "pdf")
		assert.Empty(t, api.calls)
	})
}
