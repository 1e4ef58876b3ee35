package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/memoirbot/internal/dispatch"
)

type fakeAPI struct {
	calls []*bot.SendMessageParams
	// fail decides per call whether SendMessage errors.
	fail func(p *bot.SendMessageParams) bool
}

func (f *fakeAPI) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	cp := *p
	f.calls = append(f.calls, &cp)
	if f.fail != nil && f.fail(p) {
		return nil, errors.New("Bad Request")
	}
	return &models.Message{ID: len(f.calls)}, nil
}

func TestSender_ReplyUsesReplyParameters(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api)

	err := s.Reply(context.Background(), dispatch.Event{ChatID: "42", MessageID: 7}, dispatch.Message{Text: "hi"})

	require.NoError(t, err)
	require.Len(t, api.calls, 1)
	assert.Equal(t, int64(42), api.calls[0].ChatID)
	require.NotNil(t, api.calls[0].ReplyParameters)
	assert.Equal(t, 7, api.calls[0].ReplyParameters.MessageID)
}

func TestSender_ReplyFallsBackToPush(t *testing.T) {
	api := &fakeAPI{fail: func(p *bot.SendMessageParams) bool { return p.ReplyParameters != nil }}
	s := NewSender(api)

	err := s.Reply(context.Background(), dispatch.Event{ChatID: "-100", MessageID: 7}, dispatch.Message{Text: "hi"})

	require.NoError(t, err)
	require.Len(t, api.calls, 2)
	assert.Nil(t, api.calls[1].ReplyParameters)
	assert.Equal(t, int64(-100), api.calls[1].ChatID)
}

func TestSender_PushInlinesRejectedLinks(t *testing.T) {
	api := &fakeAPI{fail: func(p *bot.SendMessageParams) bool { return p.ReplyMarkup != nil }}
	s := NewSender(api)

	msg := dispatch.Message{
		Text:  "done",
		Links: []dispatch.Link{{Label: "PDF", URL: "http://localhost:8000/files/1"}},
	}
	err := s.Push(context.Background(), "42", msg)

	require.NoError(t, err)
	require.Len(t, api.calls, 2)
	assert.Nil(t, api.calls[1].ReplyMarkup)
	assert.Contains(t, api.calls[1].Text, "PDF: http://localhost:8000/files/1")
}

func TestSender_LongMessageKeyboardOnLastPart(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api)

	msg := dispatch.Message{
		Text:    strings.Repeat("あ", MaxMessageLen+10),
		Actions: []dispatch.Action{{Label: "👍", Text: "👍"}},
	}
	require.NoError(t, s.Push(context.Background(), "1", msg))

	require.Len(t, api.calls, 2)
	assert.Nil(t, api.calls[0].ReplyMarkup)
	assert.NotNil(t, api.calls[1].ReplyMarkup)
}

func TestSender_InvalidChatID(t *testing.T) {
	s := NewSender(&fakeAPI{})

	err := s.Push(context.Background(), "U123", dispatch.Message{Text: "x"})

	assert.Error(t, err)
}

func TestMessageKeyboard(t *testing.T) {
	assert.Nil(t, MessageKeyboard(dispatch.Message{Text: "plain"}))

	kb := MessageKeyboard(dispatch.Message{
		Links:   []dispatch.Link{{Label: "PDF", URL: "https://x/pdf"}, {Label: "Edit", URL: "https://x/edit"}},
		Actions: []dispatch.Action{{Label: "👍 いいね", Text: "👍"}, {Label: "🔄 再生成", Text: "🔄"}},
	})
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Equal(t, "https://x/pdf", kb.InlineKeyboard[0][0].URL)
	require.Len(t, kb.InlineKeyboard[2], 2)
	assert.Equal(t, "act:🔄", kb.InlineKeyboard[2][1].CallbackData)

	text, ok := ParseAction(kb.InlineKeyboard[2][0].CallbackData)
	assert.True(t, ok)
	assert.Equal(t, "👍", text)

	_, ok = ParseAction("toggle_cost")
	assert.False(t, ok)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	parts := SplitMessage(text, 10)
	require.Len(t, parts, 2)
	assert.Equal(t, strings.Repeat("a", 8)+"\n", parts[0])
	assert.Equal(t, strings.Repeat("b", 8), parts[1])

	parts = SplitMessage("あいうえお。かきくけこさしすせそ", 10)
	assert.Equal(t, []string{"あいうえお。", "かきくけこさしすせそ"}, parts)

	parts = SplitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, parts)
}

func TestFixMarkdown(t *testing.T) {
	assert.Equal(t, "`err`", FixMarkdown("`err"))
	assert.Equal(t, "```\ncode\n```", FixMarkdown("```\ncode"))
	assert.Equal(t, "plain", FixMarkdown("plain"))
}

func TestLargestPhoto(t *testing.T) {
	_, ok := LargestPhoto(nil)
	assert.False(t, ok)

	best, ok := LargestPhoto([]models.PhotoSize{
		{FileID: "s", Width: 90, Height: 90},
		{FileID: "l", Width: 1280, Height: 960},
		{FileID: "m", Width: 320, Height: 240},
	})
	require.True(t, ok)
	assert.Equal(t, "l", best.FileID)
}
