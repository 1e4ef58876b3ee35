package flow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/set-night/memoirbot/internal/config"
	"github.com/set-night/memoirbot/internal/domain"
)

const DefaultProfileTitle = "私の人生の歩み"

// profileSteps are the wizard questions; the prompt of step i asks for the
// answer stored at step i.
var profileSteps = []struct {
	prompt string
	store  func(p *domain.Profile, v string)
}{
	{"お名前を教えてください。", func(p *domain.Profile, v string) { p.Name = v }},
	{"生年月日を教えてください。\n（例：1985年3月15日）", func(p *domain.Profile, v string) { p.BirthDate = v }},
	{"出身地を教えてください。", func(p *domain.Profile, v string) { p.BirthPlace = v }},
	{"現在の職業を教えてください。", func(p *domain.Profile, v string) { p.Occupation = v }},
	{"趣味があれば教えてください。（複数の場合はカンマ区切りで）", func(p *domain.Profile, v string) { p.Hobbies = domain.SplitList(v) }},
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// Profile runs the profile wizard followed by free-form timeline entry.
type Profile struct {
	table *table
	now   func() time.Time
}

func NewProfile(opts ...Option) *Profile {
	o := buildOptions(opts)
	p := &Profile{now: o.now}
	p.table = newTable(domain.FlowProfile, o.now,
		domain.StateCollectingProfile,
		domain.StateCollectingTimeline,
		domain.StateConfirming,
		domain.StateGenerating,
		domain.StateCompleted,
	).
		on(domain.StateCollectingProfile, InputText, p.profileAnswer).
		on(domain.StateCollectingTimeline, InputText, p.timelineEntry).
		on(domain.StateCollectingTimeline, InputImage, p.timelineImage).
		on(domain.StateConfirming, InputText, p.confirm).
		on(domain.StateGenerating, InputText, p.generating)
	p.table.hint = p.Help
	p.table.closed = func(*domain.Session) string { return msgProfileDone }
	return p
}

func (p *Profile) Type() domain.FlowType { return domain.FlowProfile }

func (p *Profile) Start(sp StartParams) (*domain.Session, string, error) {
	s := newSession(domain.FlowProfile, "memoir", sp, domain.StateCollectingProfile, p.now())
	s.Data = domain.MemoirData{
		Title:    DefaultProfileTitle,
		Subtitle: DefaultSubtitle,
	}
	s.Step = 0
	return s, "自分史の作成を開始します！まずは基本情報を教えてください。\n" + profileSteps[0].prompt + helpSuffix, nil
}

func (p *Profile) Accept(s *domain.Session, in Input) Result {
	if in.Kind == InputText && IsHelp(in.Text) {
		return reject(p.Help(s))
	}
	return p.table.accept(s, in)
}

func (p *Profile) Active(s *domain.Session) bool {
	switch s.State {
	case domain.StateCollectingProfile, domain.StateCollectingTimeline,
		domain.StateConfirming, domain.StateGenerating:
		return true
	}
	return false
}

func (p *Profile) Help(s *domain.Session) string {
	switch s.State {
	case domain.StateCollectingProfile:
		msg := "基本情報を入力中です。\n現在の質問に答えてください。\nキャンセルする場合は「キャンセル」と入力してください。"
		if s.Step < len(profileSteps) {
			msg += "\n\n" + profileSteps[s.Step].prompt
		}
		return msg
	case domain.StateCollectingTimeline:
		return "年表を作成中です。\n出来事を年付きで教えてください。（例：1991年：小学校入学）\n写真を送ると直前の出来事に添付されます。\n完了する場合は「完了」と入力してください。\nキャンセルする場合は「キャンセル」と入力してください。"
	case domain.StateConfirming:
		return "情報の確認中です。\nPDFを生成する場合は「はい」、キャンセルする場合は「いいえ」と入力してください。"
	case domain.StateGenerating:
		return msgGenerating
	default:
		return msgProfileDone
	}
}

func (p *Profile) profileAnswer(s *domain.Session, in Input) Result {
	text := in.trimmed()
	if text == "" || s.Step >= len(profileSteps) {
		return reject(p.Help(s))
	}
	profileSteps[s.Step].store(&s.Data.Profile, text)
	s.Step++
	if s.Step < len(profileSteps) {
		return accept(profileSteps[s.Step].prompt + helpSuffix)
	}

	s.Data.Author = s.Data.Profile.Name
	s.Data.StartYear = StartYear(s.Data.Profile.BirthDate)
	s.State = domain.StateCollectingTimeline
	return accept(fmt.Sprintf(
		"基本情報の収集が完了しました！\n次は人生の重要な出来事を年別に教えてください。\nまず、%d年の出来事を教えてください。%s",
		s.Data.StartYear, helpSuffix,
	))
}

func (p *Profile) timelineEntry(s *domain.Session, in Input) Result {
	text := in.trimmed()
	if text == "" {
		return reject(p.Help(s))
	}
	if equalsAny(text, timelineDoneWords) {
		if len(s.Data.Timeline) == 0 {
			return reject("出来事がまだありません。まず出来事を1つ教えてください。（例：1991年：小学校入学）")
		}
		s.State = domain.StateConfirming
		return accept(confirmationSummary(s.Data))
	}

	// Only a colon with a year on its left starts a dated entry; other colons
	// are part of free text such as "感想：..." or "8:30".
	left, title, colon := splitYearTitle(text)
	if colon {
		if year, found := ExtractYear(left); found {
			if title == "" {
				return reject(msgAskYear)
			}
			return p.appendEntry(s, year, title)
		}
	}

	tl := s.Data.Timeline
	if len(tl) > 0 {
		last := &s.Data.Timeline[len(tl)-1]
		if last.Description == "" {
			last.Description = text
			return accept(fmt.Sprintf("%d年：%s\n説明を追加しました。\n次の出来事を教えてください。（例：1991年：小学校入学）%s", last.Year, last.Title, helpSuffix))
		}
	}
	if colon {
		return reject(msgAskYear)
	}
	if len(tl) == 0 {
		return p.appendEntry(s, s.Data.StartYear, text)
	}
	return p.appendEntry(s, tl[len(tl)-1].Year+1, text)
}

func (p *Profile) appendEntry(s *domain.Session, year int, title string) Result {
	s.Data.Timeline = append(s.Data.Timeline, domain.TimelineEntry{Year: year, Title: title})
	return accept(fmt.Sprintf("%d年：%s\nこの出来事について詳しく教えてください。（例：どのような気持ちでしたか？何が印象的でしたか？）%s", year, title, helpSuffix))
}

func (p *Profile) timelineImage(s *domain.Session, in Input) Result {
	if len(s.Data.Timeline) == 0 {
		return reject("写真を添付する出来事がまだありません。先に出来事を教えてください。（例：1991年：小学校入学）")
	}
	last := &s.Data.Timeline[len(s.Data.Timeline)-1]
	last.Image = in.Image
	return accept(fmt.Sprintf("📸 %d年：%s に写真を追加しました。", last.Year, last.Title))
}

func (p *Profile) confirm(s *domain.Session, in Input) Result {
	switch {
	case equalsAny(in.Text, confirmYesWords):
		s.State = domain.StateGenerating
		return acceptWith("PDFを生成中です...しばらくお待ちください。", EffectRender)
	case equalsAny(in.Text, confirmNoWords):
		return acceptWith("自分史作成をキャンセルしました。", EffectCancel)
	default:
		return reject("「はい」または「いいえ」で回答してください。")
	}
}

func (p *Profile) generating(s *domain.Session, in Input) Result {
	if equalsAny(in.Text, retryWords) {
		return acceptWith("もう一度PDFを生成しています...⏳", EffectRender)
	}
	return reject(msgGenerating)
}

// StartYear extracts the year from a birth date, falling back to a fixed default.
func StartYear(birthDate string) int {
	if y, ok := ExtractYear(birthDate); ok {
		return y
	}
	return config.DefaultStartYear
}

// ExtractYear returns the first four digit run in s. Full-width digits count.
func ExtractYear(s string) (int, bool) {
	m := yearPattern.FindString(toHalfWidthDigits(s))
	if m == "" {
		return 0, false
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return y, true
}

func toHalfWidthDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, s)
}

// splitYearTitle splits "<year>：<title>" on the first colon, full-width or ASCII.
func splitYearTitle(s string) (left, title string, ok bool) {
	idx := strings.IndexAny(s, "：:")
	if idx < 0 {
		return "", "", false
	}
	_, size := utf8.DecodeRuneInString(s[idx:])
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+size:]), true
}

func confirmationSummary(d domain.MemoirData) string {
	var b strings.Builder
	b.WriteString("収集した情報を確認します：\n\n")
	fmt.Fprintf(&b, "名前：%s\n", d.Profile.Name)
	fmt.Fprintf(&b, "生年月日：%s\n", d.Profile.BirthDate)
	fmt.Fprintf(&b, "出身地：%s\n", d.Profile.BirthPlace)
	fmt.Fprintf(&b, "職業：%s\n", d.Profile.Occupation)
	if len(d.Profile.Hobbies) > 0 {
		fmt.Fprintf(&b, "趣味：%s\n", strings.Join(d.Profile.Hobbies, ", "))
	}
	b.WriteString("\n年表：\n")
	for _, e := range d.Timeline {
		fmt.Fprintf(&b, "- %d年：%s\n", e.Year, e.Title)
	}
	b.WriteString("\nPDFを生成しますか？（はい/いいえ）")
	return b.String()
}

const (
	helpSuffix     = "\n\n💡 ヘルプが必要な場合は「ヘルプ」と入力してください。"
	msgAskYear     = "年を教えてください。（例：1991年：小学校入学）" + helpSuffix
	msgGenerating  = "PDFを生成中です。しばらくお待ちください...\n失敗した場合は「再生成」と送信してください。"
	msgProfileDone = "この自分史は完成しています。新しく作る場合は「自分史作成」と送信してください。"
)
