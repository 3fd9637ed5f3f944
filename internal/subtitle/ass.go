package subtitle

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"subburn/internal/job"
)

// Style controls the generated ASS script geometry and font.
type Style struct {
	FontName string
	FontSize int
	PlayResX int
	PlayResY int
	// RTL forces the right-to-left override tag on every dialogue line.
	RTL bool
}

// WriteASS renders cues into an ASS subtitle file at path.
func WriteASS(path string, cues []job.Cue, style Style) error {
	if len(cues) == 0 {
		return errors.New("no overlay cues to write")
	}
	if style.FontName == "" {
		style.FontName = "Noto Sans"
	}
	if style.FontSize <= 0 {
		style.FontSize = 42
	}
	if style.PlayResX <= 0 {
		style.PlayResX = 1280
	}
	if style.PlayResY <= 0 {
		style.PlayResY = 720
	}

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", style.PlayResX)
	fmt.Fprintf(&b, "PlayResY: %d\n", style.PlayResY)
	b.WriteString("WrapStyle: 0\n")
	b.WriteString("ScaledBorderAndShadow: yes\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, " +
		"BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, " +
		"BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	// Alignment 2 = center-bottom, outline 3, shadow 1.
	fmt.Fprintf(&b, "Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H64000000,"+
		"0,0,0,0,100,100,0,0,1,3,1,2,20,20,35,1\n\n", style.FontName, style.FontSize)

	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, cue := range cues {
		text := escapeDialogue(cue.Text)
		if text == "" {
			continue
		}
		if style.RTL {
			text = `{\rtl}` + text
		}
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatTimestamp(cue.Start), formatTimestamp(cue.End), text)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write subtitle file: %w", err)
	}
	return nil
}

// formatTimestamp renders an ASS H:MM:SS.cc timestamp.
func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := d / time.Second
	centis := (d % time.Second) / (10 * time.Millisecond)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, seconds, centis)
}

// escapeDialogue flattens newlines to ASS line breaks and strips characters
// that would terminate or corrupt the dialogue line.
func escapeDialogue(text string) string {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\n", `\N`)
	// Braces open ASS override blocks; neutralize untrusted ones.
	text = strings.ReplaceAll(text, "{", "(")
	text = strings.ReplaceAll(text, "}", ")")
	return text
}
