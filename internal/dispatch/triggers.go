package dispatch

import (
	"strings"

	"github.com/set-night/memoirbot/internal/domain"
)

type trigger struct {
	flow  domain.FlowType
	words []string
}

// Checked in order; more specific phrases come before the generic ones
// they contain.
var triggers = []trigger{
	{domain.FlowPhoto, []string{"写真で自分史", "写真自分史", "photo memoir"}},
	{domain.FlowMedia, []string{"テンプレート", "template"}},
	{domain.FlowProfile, []string{"自分史作成", "年表", "timeline"}},
	{domain.FlowQuick, []string{"作る", "作成", "つくる", "create", "自分史"}},
}

var fileListWords = []string{"ファイル一覧", "files"}

// fileRequestWords ask for a generated file. Several contain flow trigger
// words, so they are matched first.
var fileRequestWords = []string{
	"レポート作成", "report create", "ファイル作成", "create file",
	"テキスト生成", "text generate", "json生成", "json generate",
}

var sampleWords = []string{"サンプル確認", "samples"}

func matchTrigger(text string) (domain.FlowType, bool) {
	lower := strings.ToLower(text)
	for _, t := range triggers {
		for _, w := range t.words {
			if strings.Contains(lower, w) {
				return t.flow, true
			}
		}
	}
	return "", false
}

func isFileList(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, w := range fileListWords {
		if strings.HasPrefix(lower, w) {
			return true
		}
	}
	return false
}

// fileRequest reports whether text asks for a generated file and of which kind.
func fileRequest(text string) (domain.GeneratedKind, bool) {
	lower := strings.ToLower(text)
	matched := false
	for _, w := range fileRequestWords {
		if strings.Contains(lower, w) {
			matched = true
			break
		}
	}
	switch {
	case !matched:
		return "", false
	case strings.Contains(lower, "レポート"), strings.Contains(lower, "report"):
		return domain.GeneratedReport, true
	case strings.Contains(lower, "json"):
		return domain.GeneratedJSON, true
	default:
		return domain.GeneratedText, true
	}
}

func isSampleRequest(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, w := range sampleWords {
		if lower == w {
			return true
		}
	}
	return false
}
