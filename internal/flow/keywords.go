package flow

import "strings"

var (
	cancelWords       = []string{"キャンセル", "cancel", "やめる"}
	helpWords         = []string{"ヘルプ", "help", "?", "？"}
	skipWords         = []string{"スキップ", "skip"}
	photoDoneWords    = []string{"完了", "おわり", "終わり", "done", "finished"}
	approveWords      = []string{"👍", "いいね", "ok", "次"}
	regenerateWords   = []string{"🔄", "再生成"}
	timelineDoneWords = []string{"完了", "finish", "終了"}
	confirmYesWords   = []string{"はい", "yes", "生成", "ok"}
	confirmNoWords    = []string{"いいえ", "no", "キャンセル"}
	retryWords        = []string{"再生成", "retry", "もう一度"}
)

// containsAny reports whether text contains any of words, ignoring ASCII case.
func containsAny(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// equalsAny reports whether the trimmed text equals one of words, ignoring ASCII case.
func equalsAny(text string, words []string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, w := range words {
		if text == strings.ToLower(w) {
			return true
		}
	}
	return false
}

// IsCancel reports whether text asks to abandon the current flow.
func IsCancel(text string) bool {
	return equalsAny(text, cancelWords)
}

// IsHelp reports whether text asks for help on the current step.
func IsHelp(text string) bool {
	return equalsAny(text, helpWords)
}
