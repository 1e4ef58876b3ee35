package flow

import (
	"fmt"
	"time"

	"github.com/set-night/memoirbot/internal/config"
	"github.com/set-night/memoirbot/internal/domain"
)

const (
	DefaultSubtitle      = "〜これまでの道のり〜"
	DefaultAuthor        = "あなた"
	DefaultQuickTemplate = "modern-vertical-cover"
)

// Quick collects a title and three photos, rendering the cover as soon as
// the cover photo arrives and the full memoir after the last photo.
type Quick struct {
	table *table
	now   func() time.Time
}

func NewQuick(opts ...Option) *Quick {
	o := buildOptions(opts)
	q := &Quick{now: o.now}
	q.table = newTable(domain.FlowQuick, o.now,
		domain.StateWaitingTitle,
		domain.StateWaitingCover,
		domain.StateWaitingSpreadImage,
		domain.StateWaitingSingleImage,
		domain.StateEditing,
		domain.StateCompleted,
	).
		on(domain.StateWaitingTitle, InputText, q.title).
		on(domain.StateWaitingCover, InputImage, q.cover).
		on(domain.StateWaitingSpreadImage, InputImage, q.spread).
		on(domain.StateWaitingSingleImage, InputImage, q.single)
	q.table.hint = q.Help
	q.table.closed = func(*domain.Session) string { return msgQuickEditOnly }
	return q
}

func (q *Quick) Type() domain.FlowType { return domain.FlowQuick }

func (q *Quick) Start(p StartParams) (*domain.Session, string, error) {
	s := newSession(domain.FlowQuick, "quick", p, domain.StateWaitingTitle, q.now())
	s.Data = domain.MemoirData{
		Subtitle: DefaultSubtitle,
		Author:   DefaultAuthor,
		Template: DefaultQuickTemplate,
	}
	return s, msgQuickStart, nil
}

func (q *Quick) Accept(s *domain.Session, in Input) Result {
	return q.table.accept(s, in)
}

func (q *Quick) Active(s *domain.Session) bool {
	switch s.State {
	case domain.StateWaitingTitle, domain.StateWaitingCover,
		domain.StateWaitingSpreadImage, domain.StateWaitingSingleImage:
		return true
	}
	return false
}

func (q *Quick) Help(s *domain.Session) string {
	switch s.State {
	case domain.StateWaitingTitle:
		return "✍️ タイトルをテキストで入力してください。\n（例：私の人生物語、母の思い出、など）"
	case domain.StateWaitingCover:
		return "📸 カバー写真を送ってください。"
	case domain.StateWaitingSpreadImage:
		return "📸 見開きページ用の写真を送ってください。"
	case domain.StateWaitingSingleImage:
		return "📸 単一ページ用の写真を送ってください。"
	default:
		return msgQuickEditOnly
	}
}

func (q *Quick) title(s *domain.Session, in Input) Result {
	title := in.trimmed()
	if title == "" {
		return reject(q.Help(s))
	}
	s.Data.Title = title
	s.State = domain.StateWaitingCover
	return accept(fmt.Sprintf("タイトル：「%s」\n\n次に、カバー写真を送ってください。\n📸 写真を選択してアップロードしてください。", title))
}

func (q *Quick) cover(s *domain.Session, in Input) Result {
	s.Data.CoverImageURL = in.Image
	s.Data.Date = q.now().Format(config.CoverDateLayout)
	s.State = domain.StateWaitingSpreadImage
	return acceptWith("カバー写真を受け取りました！\n表紙のPDFを生成中です...⏳\n\n続けて、見開きページ用の写真を送ってください。", EffectRenderCover)
}

func (q *Quick) spread(s *domain.Session, in Input) Result {
	s.Data.SpreadImageURL = in.Image
	s.State = domain.StateWaitingSingleImage
	return accept("見開きページの写真を受け取りました！\n最後に、単一ページ用の写真を送ってください。")
}

func (q *Quick) single(s *domain.Session, in Input) Result {
	s.Data.SingleImageURL = in.Image
	s.State = domain.StateEditing
	return acceptWith("すべての写真を受け取りました！\nPDFを生成中です...⏳", EffectRender)
}

const (
	msgQuickStart    = "✨ 自分史を作成しましょう！\n\nまず、タイトルを教えてください。\n（例：私の人生物語、母の思い出、など）"
	msgQuickEditOnly = "この自分史は編集ページから更新できます。新しく作る場合は「作成」と送信してください。"
)
