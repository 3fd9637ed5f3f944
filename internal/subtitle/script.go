package subtitle

import (
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Script classifies the dominant writing system of an overlay payload.
type Script string

const (
	ScriptLatin Script = "latin"
	ScriptCJK   Script = "cjk"
	ScriptRTL   Script = "rtl"
	ScriptOther Script = "other"
)

var cjkRanges = []*unicode.RangeTable{
	unicode.Han,
	unicode.Hangul,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Bopomofo,
}

var rtlRanges = []*unicode.RangeTable{
	unicode.Hebrew,
	unicode.Arabic,
}

// DetectScript inspects overlay text and an optional BCP-47 hint and reports
// the script the renderer must cover. The hint wins when it parses and names
// a script; otherwise the text itself decides.
func DetectScript(text, hint string) Script {
	if s, ok := scriptFromHint(hint); ok {
		return s
	}
	return scriptFromText(text)
}

func scriptFromHint(hint string) (Script, bool) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return "", false
	}
	tag, err := language.Parse(hint)
	if err != nil {
		return "", false
	}
	script, conf := tag.Script()
	if conf == language.No {
		return "", false
	}
	switch script.String() {
	case "Hans", "Hant", "Hani", "Jpan", "Kore", "Kana", "Hira", "Hang", "Bopo":
		return ScriptCJK, true
	case "Hebr", "Arab":
		return ScriptRTL, true
	case "Latn":
		return ScriptLatin, true
	case "Zzzz", "Zyyy":
		return "", false
	default:
		return ScriptOther, true
	}
}

func scriptFromText(text string) Script {
	var cjk, rtl, latin, other int
	for _, r := range text {
		switch {
		case isAny(r, cjkRanges):
			cjk++
		case isAny(r, rtlRanges):
			rtl++
		case unicode.Is(unicode.Latin, r):
			latin++
		case unicode.IsLetter(r):
			other++
		}
	}
	switch {
	case cjk > 0 && cjk >= rtl:
		return ScriptCJK
	case rtl > 0:
		return ScriptRTL
	case latin > 0:
		return ScriptLatin
	case other > 0:
		return ScriptOther
	default:
		return ScriptLatin
	}
}

func isAny(r rune, tables []*unicode.RangeTable) bool {
	for _, table := range tables {
		if unicode.Is(table, r) {
			return true
		}
	}
	return false
}

// NeedsRTLOverride reports whether dialogue lines need the ASS RTL tag.
func (s Script) NeedsRTLOverride() bool {
	return s == ScriptRTL
}
