package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/set-night/memoirbot/internal/config"
	"github.com/set-night/memoirbot/internal/domain"
)

// Memoir text types accepted by MemoirText.
const (
	TextProfile             = "profile"
	TextTimelineDescription = "timeline_description"
	TextStory               = "story_text"
	TextDescription         = "description"
	TextSectionTitle        = "section_title"
)

const chatSystemPrompt = "あなたは親切なアシスタントです。日本語で簡潔に1〜2文で回答してください。長文は避けてください。"

const memoirSystemPrompt = "あなたは自分史の編集者です。ユーザーの人生の記録を、温かみのある自然な日本語でまとめます。前置きや説明は付けず、本文のみを出力してください。"

var fileSystemPrompts = map[domain.GeneratedKind]string{
	domain.GeneratedReport: "あなたは詳細なレポートを作成する専門家です。ユーザーのリクエストに基づいて、構造化されたレポートを日本語で作成してください。",
	domain.GeneratedJSON:   "あなたはJSONデータを生成する専門家です。ユーザーのリクエストに基づいて、有効なJSONを作成してください。レスポンスはJSONのみにしてください。",
	domain.GeneratedText:   "あなたは詳細なテキストコンテンツを作成する専門家です。ユーザーのリクエストに基づいて、詳細で有用なテキストを日本語で作成してください。",
}

// Writer builds prompts for every text the bot generates.
type Writer struct {
	completer Completer
}

func NewWriter(c Completer) *Writer {
	return &Writer{completer: c}
}

// Chat answers free text that no flow claimed.
func (w *Writer) Chat(ctx context.Context, message string) (string, error) {
	return w.complete(ctx, CompletionRequest{
		System:      chatSystemPrompt,
		User:        message,
		MaxTokens:   config.ChatMaxTokens,
		Temperature: config.DefaultTemperature,
	})
}

// PhotoStory writes a short story from the answers given for one photo.
func (w *Writer) PhotoStory(ctx context.Context, answers []string) (string, error) {
	return w.complete(ctx, CompletionRequest{
		System:      memoirSystemPrompt,
		User:        photoStoryPrompt(answers),
		MaxTokens:   config.StoryMaxTokens,
		Temperature: config.DefaultTemperature,
	})
}

// MemoirText drafts one field of the edit page.
func (w *Writer) MemoirText(ctx context.Context, textType string, data map[string]any) (string, error) {
	prompt, err := memoirTextPrompt(textType, data)
	if err != nil {
		return "", err
	}
	return w.complete(ctx, CompletionRequest{
		System:      memoirSystemPrompt,
		User:        prompt,
		MaxTokens:   config.MemoirTextMaxTokens,
		Temperature: config.DefaultTemperature,
	})
}

// GenerateFile writes the body of a file requested from chat. JSON bodies
// are unwrapped from code fences and must parse.
func (w *Writer) GenerateFile(ctx context.Context, kind domain.GeneratedKind, request string) (string, error) {
	system, ok := fileSystemPrompts[kind]
	if !ok {
		return "", fmt.Errorf("file kind %q: %w", kind, domain.ErrUnknownTextType)
	}
	maxTokens := config.FileTextMaxTokens
	if kind == domain.GeneratedJSON {
		maxTokens = config.FileJSONMaxTokens
	}
	text, err := w.complete(ctx, CompletionRequest{
		System:      system,
		User:        request,
		MaxTokens:   maxTokens,
		Temperature: config.DefaultTemperature,
	})
	if err != nil || kind != domain.GeneratedJSON {
		return text, err
	}

	text = stripCodeFence(text)
	if !json.Valid([]byte(text)) {
		return "", domain.ErrInvalidJSON
	}
	return text, nil
}

// stripCodeFence removes a surrounding ``` block, with or without a language tag.
func stripCodeFence(text string) string {
	rest, ok := strings.CutPrefix(text, "```")
	if !ok {
		return text
	}
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	}
	rest = strings.TrimSuffix(strings.TrimSpace(rest), "```")
	return strings.TrimSpace(rest)
}

func (w *Writer) complete(ctx context.Context, req CompletionRequest) (string, error) {
	text, err := w.completer.Complete(ctx, req)
	if err != nil {
		slog.Error("text generation failed", "error", err)
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrEmptyGeneration
	}
	return text, nil
}

func photoStoryPrompt(answers []string) string {
	var b strings.Builder
	b.WriteString("以下は、ユーザーが自分の思い出の写真について答えた内容です。\n")
	b.WriteString("これを100〜200文字程度の、温かみのある自分史のストーリーにまとめてください。\n\n")
	b.WriteString("ユーザーの回答:\n")
	for _, a := range answers {
		b.WriteString("- ")
		b.WriteString(a)
		b.WriteString("\n")
	}
	b.WriteString("\n要件:\n")
	b.WriteString("- 100〜200文字程度\n")
	b.WriteString("- 情緒的で温かみのある文章\n")
	b.WriteString("- 時期・場所・出来事を自然に盛り込む\n")
	b.WriteString("- 読者が情景を想像できる表現\n")
	b.WriteString("- 過去形で記述\n")
	b.WriteString("- 「。」で文を区切る\n\n")
	b.WriteString("ストーリーのみを出力してください（説明や前置きは不要です）。")
	return b.String()
}

func memoirTextPrompt(textType string, data map[string]any) (string, error) {
	facts := formatFacts(data)
	switch textType {
	case TextProfile:
		return "次のプロフィール情報から、150〜250文字程度の自己紹介文を一人称で書いてください。\n\n" + facts, nil
	case TextTimelineDescription:
		return "次の出来事について、年表に載せる説明文を50〜100文字程度で書いてください。過去形で記述してください。\n\n" + facts, nil
	case TextStory:
		return "次の情報をもとに、見開きページに載せる思い出の文章を300〜500文字程度で書いてください。\n\n" + facts, nil
	case TextDescription:
		return "次の情報をもとに、写真に添える説明文を100〜200文字程度で書いてください。\n\n" + facts, nil
	case TextSectionTitle:
		return "次の内容にふさわしい、15文字以内の短い見出しを1つだけ書いてください。\n\n" + facts, nil
	default:
		return "", fmt.Errorf("text type %q: %w", textType, domain.ErrUnknownTextType)
	}
}

// formatFacts renders request data as sorted "key: value" lines.
func formatFacts(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := formatValue(data[k])
		if v == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	if b.Len() == 0 {
		return "（情報なし）"
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := formatValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "、")
	case []string:
		return strings.Join(t, "、")
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}
