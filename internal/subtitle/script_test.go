package subtitle

import "testing"

func TestDetectScriptFromText(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Script
	}{
		{"plain latin", "Hello, world", ScriptLatin},
		{"simplified chinese", "你好世界", ScriptCJK},
		{"japanese kana", "こんにちは", ScriptCJK},
		{"korean hangul", "안녕하세요", ScriptCJK},
		{"hebrew", "שלום עולם", ScriptRTL},
		{"arabic", "مرحبا بالعالم", ScriptRTL},
		{"mixed cjk and latin", "Hello 世界 world", ScriptCJK},
		{"greek", "Γειά σου", ScriptOther},
		{"digits only", "12345", ScriptLatin},
		{"empty", "", ScriptLatin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectScript(tc.text, ""); got != tc.want {
				t.Fatalf("DetectScript(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestDetectScriptHintWins(t *testing.T) {
	cases := []struct {
		name string
		text string
		hint string
		want Script
	}{
		{"zh hint over latin text", "Hello", "zh", ScriptCJK},
		{"ja hint", "Hello", "ja", ScriptCJK},
		{"ko hint", "Hello", "ko", ScriptCJK},
		{"he hint", "Hello", "he", ScriptRTL},
		{"ar hint", "Hello", "ar", ScriptRTL},
		{"en hint", "你好", "en", ScriptLatin},
		{"garbage hint falls back to text", "你好", "not a tag!!", ScriptCJK},
		{"empty hint falls back to text", "שלום", "", ScriptRTL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectScript(tc.text, tc.hint); got != tc.want {
				t.Fatalf("DetectScript(%q, %q) = %q, want %q", tc.text, tc.hint, got, tc.want)
			}
		})
	}
}

func TestNeedsRTLOverride(t *testing.T) {
	if !ScriptRTL.NeedsRTLOverride() {
		t.Fatal("rtl script should need the override tag")
	}
	if ScriptCJK.NeedsRTLOverride() || ScriptLatin.NeedsRTLOverride() {
		t.Fatal("non-rtl scripts should not need the override tag")
	}
}
