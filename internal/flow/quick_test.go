package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/set-night/memoirbot/internal/domain"
)

func TestQuick_Monotonic(t *testing.T) {
	q := NewQuick(WithClock(fixedClock))
	s, reply, err := q.Start(StartParams{UserID: "U1"})
	require.NoError(t, err)
	assert.Contains(t, reply, "タイトル")
	assert.Equal(t, domain.StateWaitingTitle, s.State)
	assert.Regexp(t, `^quick_`, s.ID)
	assert.Equal(t, DefaultSubtitle, s.Data.Subtitle)
	assert.Equal(t, DefaultAuthor, s.Data.Author)

	steps := []struct {
		in     Input
		state  domain.State
		effect Effect
	}{
		{Text("私の人生物語"), domain.StateWaitingCover, EffectNone},
		{Image("/media/image/cover"), domain.StateWaitingSpreadImage, EffectRenderCover},
		{Image("/media/image/spread"), domain.StateWaitingSingleImage, EffectNone},
		{Image("/media/image/single"), domain.StateEditing, EffectRender},
	}

	renders := 0
	for _, step := range steps {
		res := q.Accept(s, step.in)
		require.True(t, res.Accepted)
		assert.Equal(t, step.state, s.State)
		assert.Equal(t, step.effect, res.Effect)
		if res.Effect == EffectRender || res.Effect == EffectRenderCover {
			renders++
		}
	}
	assert.Equal(t, 2, renders)

	assert.Equal(t, "私の人生物語", s.Data.Title)
	assert.Equal(t, "/media/image/cover", s.Data.CoverImageURL)
	assert.Equal(t, "/media/image/spread", s.Data.SpreadImageURL)
	assert.Equal(t, "/media/image/single", s.Data.SingleImageURL)
	assert.Equal(t, "2024年05月", s.Data.Date)
	assert.False(t, q.Active(s))
}

func TestQuick_KindMismatchKeepsState(t *testing.T) {
	q := NewQuick()
	s, _, _ := q.Start(StartParams{UserID: "U1"})
	q.Accept(s, Text("タイトル"))

	res := q.Accept(s, Text("写真じゃなくて文字"))
	assert.False(t, res.Accepted)
	assert.Equal(t, EffectNone, res.Effect)
	assert.Contains(t, res.Reply, "カバー写真")
	assert.Equal(t, domain.StateWaitingCover, s.State)
}

func TestQuick_EmptyTitleRejected(t *testing.T) {
	q := NewQuick()
	s, _, _ := q.Start(StartParams{UserID: "U1"})

	res := q.Accept(s, Text("   "))
	assert.False(t, res.Accepted)
	assert.Equal(t, domain.StateWaitingTitle, s.State)
}

func TestQuick_EditingRejectsChat(t *testing.T) {
	q := NewQuick()
	s := &domain.Session{Flow: domain.FlowQuick, State: domain.StateEditing}

	for _, in := range []Input{Text("変更したい"), Image("/media/image/x")} {
		res := q.Accept(s, in)
		assert.False(t, res.Accepted)
		assert.Equal(t, msgQuickEditOnly, res.Reply)
	}
	assert.Equal(t, domain.StateEditing, s.State)
}
