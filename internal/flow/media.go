package flow

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/set-night/memoirbot/internal/domain"
	"github.com/set-night/memoirbot/internal/schema"
)

// Media fills the fields of a schema template one at a time.
type Media struct {
	table    *table
	now      func() time.Time
	registry *schema.Registry
}

func NewMedia(registry *schema.Registry, opts ...Option) *Media {
	o := buildOptions(opts)
	m := &Media{now: o.now, registry: registry}
	m.table = newTable(domain.FlowMedia, o.now,
		domain.StateCollecting,
		domain.StateEditing,
		domain.StateCompleted,
	).
		on(domain.StateCollecting, InputText, m.fill).
		on(domain.StateCollecting, InputImage, m.fill)
	m.table.closed = func(*domain.Session) string { return msgMediaEditOnly }
	return m
}

func (m *Media) Type() domain.FlowType { return domain.FlowMedia }

func (m *Media) Start(p StartParams) (*domain.Session, string, error) {
	tpl, err := m.registry.Get(p.TemplateID)
	if err != nil {
		return nil, "", err
	}
	s := newSession(domain.FlowMedia, "media", p, domain.StateCollecting, m.now())
	s.TemplateID = tpl.ID
	s.Pages = tpl.EmptyPages()
	s.FieldIndex = 0

	slot, _ := tpl.SlotAt(0)
	reply := fmt.Sprintf("📖 「%s」を作成します！\n%s\n\n%s", tpl.Name, tpl.Description, fieldPrompt(tpl, slot))
	return s, reply, nil
}

func (m *Media) Accept(s *domain.Session, in Input) Result {
	return m.table.accept(s, in)
}

func (m *Media) Active(s *domain.Session) bool {
	return s.State == domain.StateCollecting
}

func (m *Media) Help(s *domain.Session) string {
	tpl, err := m.registry.Get(s.TemplateID)
	if err != nil {
		return msgTemplateMissing
	}
	slot, ok := tpl.SlotAt(s.FieldIndex)
	if !ok {
		return msgMediaEditOnly
	}
	return fieldPrompt(tpl, slot)
}

func (m *Media) fill(s *domain.Session, in Input) Result {
	tpl, err := m.registry.Get(s.TemplateID)
	if err != nil {
		return reject(msgTemplateMissing)
	}
	slot, ok := tpl.SlotAt(s.FieldIndex)
	if !ok {
		s.State = domain.StateEditing
		return acceptWith(msgMediaCollected, EffectRender)
	}
	page := s.Page(slot.Page.ID)
	if page == nil {
		return reject(msgTemplateMissing)
	}
	field := slot.Field

	switch field.Kind {
	case schema.KindImage:
		if in.Kind != InputImage {
			return reject(fmt.Sprintf("📸 %sの写真を送ってください。", field.Description))
		}
		page.Data[field.Name] = in.Image
	default:
		if in.Kind != InputText {
			return reject(fmt.Sprintf("✍️ %sをテキストで入力してください。", field.Description))
		}
		text := in.trimmed()
		if equalsAny(text, skipWords) {
			if field.Required {
				return reject(fmt.Sprintf("%sは省略できません。\n\n%s", field.Description, fieldPrompt(tpl, slot)))
			}
			break
		}
		if text == "" {
			return reject(fieldPrompt(tpl, slot))
		}
		if n := utf8.RuneCountInString(text); field.MaxLength > 0 && n > field.MaxLength {
			return reject(fmt.Sprintf("✍️ %sは%d文字以内で入力してください。（現在%d文字）", field.Description, field.MaxLength, n))
		}
		if field.Kind == schema.KindList {
			page.Data[field.Name] = domain.SplitList(text)
		} else {
			page.Data[field.Name] = text
		}
	}

	s.FieldIndex++
	next, ok := tpl.SlotAt(s.FieldIndex)
	if !ok {
		s.State = domain.StateEditing
		return acceptWith(msgMediaCollected, EffectRender)
	}
	return accept(fieldPrompt(tpl, next))
}

// UpdatePage merges data into the bag of one page.
func (m *Media) UpdatePage(s *domain.Session, pageID string, data map[string]any) error {
	if s.Flow != domain.FlowMedia {
		return fmt.Errorf("update page of %s session: %w", s.Flow, domain.ErrInvalidInput)
	}
	page := s.Page(pageID)
	if page == nil {
		return fmt.Errorf("page %s: %w", pageID, domain.ErrPageNotFound)
	}
	if page.Data == nil {
		page.Data = make(map[string]any, len(data))
	}
	for k, v := range data {
		page.Data[k] = normalizeValue(v)
	}
	s.Touch(m.now())
	return nil
}

// normalizeValue turns decoded JSON lists into []string.
func normalizeValue(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, fmt.Sprint(item))
	}
	return out
}

func fieldPrompt(tpl *schema.Template, slot schema.Slot) string {
	prompt := fmt.Sprintf("【%d/%d】\n📄 %s\n\n", slot.Index+1, tpl.FieldCount(), slot.Page.DisplayName)
	if slot.Field.Kind == schema.KindImage {
		return prompt + "📸 " + slot.Field.Description + "\n写真を送ってください。"
	}
	prompt += "✍️ " + slot.Field.Description
	if slot.Field.Placeholder != "" {
		prompt += "\n（" + slot.Field.Placeholder + "）"
	}
	if !slot.Field.Required {
		prompt += "\n省略する場合は「スキップ」と送信してください。"
	}
	return prompt
}

const (
	msgMediaCollected  = "✨ すべての情報を受け取りました！\nPDFを生成しています...⏳"
	msgMediaEditOnly   = "すべての情報を受け取っています。内容は編集ページから更新できます。"
	msgTemplateMissing = "テンプレートが見つかりません。"
)
