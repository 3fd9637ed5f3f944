package subtitle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"subburn/internal/job"
)

func TestWriteASSProducesValidScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.ass")
	cues := []job.Cue{
		{Start: 0, End: 2500 * time.Millisecond, Text: "First line"},
		{Start: time.Hour + 2*time.Minute + 3*time.Second + 450*time.Millisecond, End: time.Hour + 2*time.Minute + 5*time.Second, Text: "Second line"},
	}
	style := Style{FontName: "Noto Sans", FontSize: 42, PlayResX: 1280, PlayResY: 720}
	if err := WriteASS(path, cues, style); err != nil {
		t.Fatalf("WriteASS: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		"ScriptType: v4.00+",
		"PlayResX: 1280",
		"PlayResY: 720",
		"WrapStyle: 0",
		"Style: Default,Noto Sans,42,&H00FFFFFF,",
		"Dialogue: 0,0:00:00.00,0:00:02.50,Default,,0,0,0,,First line",
		"Dialogue: 0,1:02:03.45,1:02:05.00,Default,,0,0,0,,Second line",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("script missing %q\n%s", want, content)
		}
	}
}

func TestWriteASSEscapesDialogue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.ass")
	cues := []job.Cue{
		{Start: 0, End: time.Second, Text: "line one\nline two"},
		{Start: time.Second, End: 2 * time.Second, Text: `{\b1}bold attempt`},
	}
	if err := WriteASS(path, cues, Style{}); err != nil {
		t.Fatalf("WriteASS: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, `line one\Nline two`) {
		t.Errorf("newline not flattened to \\N:\n%s", content)
	}
	if strings.Contains(content, `{\b1}`) {
		t.Errorf("override block survived escaping:\n%s", content)
	}
	if !strings.Contains(content, `(\b1)bold attempt`) {
		t.Errorf("braces not neutralized:\n%s", content)
	}
}

func TestWriteASSRTLTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.ass")
	cues := []job.Cue{{Start: 0, End: time.Second, Text: "שלום"}}
	if err := WriteASS(path, cues, Style{RTL: true}); err != nil {
		t.Fatalf("WriteASS: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if !strings.Contains(string(data), `{\rtl}שלום`) {
		t.Errorf("rtl override tag missing:\n%s", data)
	}
}

func TestWriteASSRejectsEmptyCues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.ass")
	if err := WriteASS(path, nil, Style{}); err == nil {
		t.Fatal("expected error for empty cue list")
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00:00.00"},
		{-time.Second, "0:00:00.00"},
		{90 * time.Second, "0:01:30.00"},
		{time.Hour + 30*time.Minute + 15*time.Second + 990*time.Millisecond, "1:30:15.99"},
		{10 * time.Hour, "10:00:00.00"},
	}
	for _, tc := range cases {
		if got := formatTimestamp(tc.d); got != tc.want {
			t.Errorf("formatTimestamp(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
