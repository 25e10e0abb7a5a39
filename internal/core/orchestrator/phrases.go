package orchestrator

import (
	"strings"

	"nutripal/internal/pkg/common"
)

// ReplyKind 對待確認動作的回覆分類
type ReplyKind int

const (
	// ReplyOther 非確認也非拒絕，當作修正處理
	ReplyOther ReplyKind = iota
	ReplyConfirm
	ReplyDecline
)

// PhrasePolicy 確認、拒絕、取消與問候的詞表，可由設定調整
type PhrasePolicy struct {
	Confirm   []string
	Decline   []string
	Cancel    []string
	Greetings []string
	// MaxGreetingWords 超過此字數不走問候快速路徑
	MaxGreetingWords int
}

// DefaultPhrases 預設詞表
func DefaultPhrases() *PhrasePolicy {
	return &PhrasePolicy{
		Confirm: []string{
			"yes", "yeah", "yep", "yup", "y", "sure", "ok", "okay", "correct", "right",
			"confirm", "confirmed", "log it", "save it", "do it", "go ahead", "sounds good",
			"looks good", "looks right", "that's right", "perfect", "please do",
		},
		Decline: []string{
			"no", "nope", "nah", "n", "don't", "do not", "not now", "don't log it",
			"don't save it", "no thanks", "skip", "skip it", "wrong",
		},
		Cancel: []string{
			"cancel", "stop", "abort", "never mind", "nevermind", "forget it",
			"forget about it", "start over", "reset",
		},
		Greetings: []string{
			"hi", "hello", "hey", "hiya", "good morning", "good afternoon", "good evening",
			"thanks", "thank you", "thx", "cheers",
		},
		MaxGreetingWords: 4,
	}
}

// matches 整句相符，或以詞組開頭且後面接標點或空白
func matches(text string, phrases []string) bool {
	for _, p := range phrases {
		if text == p {
			return true
		}
		if strings.HasPrefix(text, p) {
			rest := text[len(p):]
			if rest[0] == ' ' || rest[0] == ',' || rest[0] == '!' || rest[0] == '.' {
				return true
			}
		}
	}
	return false
}

// Classify 判斷回覆是確認、拒絕或其他；含數字的回覆一律交給修正解析
func (p *PhrasePolicy) Classify(text string) ReplyKind {
	norm := common.NormalizeText(text)
	if norm == "" {
		return ReplyOther
	}
	hasDigit := strings.ContainsAny(norm, "0123456789")
	switch {
	case norm == "yes" || (!hasDigit && matches(norm, p.Confirm)):
		return ReplyConfirm
	case !hasDigit && matches(norm, p.Decline):
		return ReplyDecline
	default:
		return ReplyOther
	}
}

// IsDecline 是否以拒絕詞開頭（不論有無數字）
func (p *PhrasePolicy) IsDecline(text string) bool {
	return matches(common.NormalizeText(text), p.Decline)
}

// cancelFillers 取消詞後允許接的字；其他任何字（數字、營養素）都表示這不是單純的取消
var cancelFillers = map[string]bool{
	"that": true, "it": true, "this": true, "all": true, "everything": true,
	"please": true, "thanks": true, "thank": true, "you": true, "now": true,
}

// IsCancel 明確的取消指令：整句由取消詞組成，後面只能接填充詞
func (p *PhrasePolicy) IsCancel(text string) bool {
	norm := strings.NewReplacer(",", " ", ".", " ", "!", " ").Replace(common.NormalizeText(text))
	return p.cancelOnly(strings.Fields(norm))
}

func (p *PhrasePolicy) cancelOnly(words []string) bool {
	if len(words) == 0 {
		return false
	}
	for _, c := range p.Cancel {
		n := len(strings.Fields(c))
		if len(words) < n || strings.Join(words[:n], " ") != c {
			continue
		}
		rest := words[n:]
		if len(rest) == 0 || p.cancelOnly(rest) {
			return true
		}
		filler := true
		for _, w := range rest {
			if !cancelFillers[w] {
				filler = false
				break
			}
		}
		if filler {
			return true
		}
	}
	return false
}

var greetingFillers = map[string]bool{
	"":         true,
	"there":    true,
	"again":    true,
	"so much":  true,
	"a lot":    true,
	"nutripal": true,
	"everyone": true,
}

// IsGreeting 簡短問候或道謝，後面只能接稱呼之類的填充詞
func (p *PhrasePolicy) IsGreeting(text string) bool {
	norm := strings.ReplaceAll(common.NormalizeText(text), ",", "")
	norm = strings.Trim(norm, "!. ")
	if norm == "" || len(strings.Fields(norm)) > p.MaxGreetingWords {
		return false
	}
	for _, g := range p.Greetings {
		if rest, ok := strings.CutPrefix(norm, g); ok && (rest == "" || rest[0] == ' ') {
			if greetingFillers[strings.TrimSpace(rest)] {
				return true
			}
		}
	}
	return false
}
