package job

import (
	"strings"
	"testing"
	"time"
)

func TestParseState(t *testing.T) {
	cases := []struct {
		in   string
		want State
		ok   bool
	}{
		{"queued", StateQueued, true},
		{"RUNNING", StateRunning, true},
		{"  succeeded ", StateSucceeded, true},
		{"expired", StateExpired, true},
		{"bogus", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseState(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseState(%q) = (%q, %t), want (%q, %t)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[State]bool{
		StateQueued:    false,
		StateRunning:   false,
		StateSucceeded: true,
		StateFailed:    true,
		StateCancelled: true,
		StateExpired:   true,
	}
	for state, want := range terminal {
		if got := state.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %t, want %t", state, got, want)
		}
	}
}

func TestCloneIsolatesMutation(t *testing.T) {
	original := &Job{
		ID:    "a",
		State: StateRunning,
		Spec: Spec{
			InputPath: "/in.mp4",
			Cues:      []Cue{{Start: 0, End: time.Second, Text: "one"}},
		},
		Failure: NewFailure(KindTimeout, "deadline"),
	}

	clone := original.Clone()
	clone.State = StateFailed
	clone.Spec.Cues[0].Text = "mutated"
	clone.Failure.Message = "mutated"

	if original.State != StateRunning {
		t.Fatalf("state leaked through clone: %s", original.State)
	}
	if original.Spec.Cues[0].Text != "one" {
		t.Fatalf("cue leaked through clone: %q", original.Spec.Cues[0].Text)
	}
	if original.Failure.Message != "deadline" {
		t.Fatalf("failure leaked through clone: %q", original.Failure.Message)
	}
}

func TestOutputExtension(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ".mp4"},
		{"mkv", ".mkv"},
		{".webm", ".webm"},
		{"  MOV ", ".mov"},
	}
	for _, tc := range cases {
		spec := Spec{OutputExt: tc.in}
		if got := spec.OutputExtension(); got != tc.want {
			t.Errorf("OutputExtension(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOverlayCuesFromTimedCues(t *testing.T) {
	spec := Spec{
		Cues: []Cue{
			{Start: 0, End: time.Second, Text: "keep"},
			{Start: time.Second, End: time.Second, Text: "zero length"},
			{Start: 2 * time.Second, End: time.Second, Text: "inverted"},
			{Start: 3 * time.Second, End: 4 * time.Second, Text: "   "},
		},
	}
	cues := spec.OverlayCues(time.Hour)
	if len(cues) != 1 || cues[0].Text != "keep" {
		t.Fatalf("OverlayCues = %+v, want only the valid cue", cues)
	}
}

func TestOverlayCuesFromPlainText(t *testing.T) {
	spec := Spec{Text: "hello"}
	cues := spec.OverlayCues(2 * time.Hour)
	if len(cues) != 1 {
		t.Fatalf("OverlayCues returned %d cues, want 1", len(cues))
	}
	if cues[0].Start != 0 || cues[0].End != 2*time.Hour || cues[0].Text != "hello" {
		t.Fatalf("unexpected cue: %+v", cues[0])
	}

	if cues := (Spec{Text: "  "}).OverlayCues(time.Hour); cues != nil {
		t.Fatalf("blank text produced cues: %+v", cues)
	}
}

func TestFailureWithExitTruncatesStderr(t *testing.T) {
	long := strings.Repeat("x", StderrExcerptLimit+100)
	failure := NewFailure(KindRendererError, "renderer exited").WithExit(1, long)
	if len(failure.StderrExcerpt) > StderrExcerptLimit+len("... [truncated]") {
		t.Fatalf("excerpt not bounded: %d bytes", len(failure.StderrExcerpt))
	}
	if !strings.HasSuffix(failure.StderrExcerpt, "... [truncated]") {
		t.Fatalf("excerpt missing truncation marker: %q", failure.StderrExcerpt[len(failure.StderrExcerpt)-30:])
	}
}

func TestFailureError(t *testing.T) {
	if got := NewFailure(KindTimeout, "deadline exceeded").Error(); got != "timeout: deadline exceeded" {
		t.Fatalf("Error() = %q", got)
	}
	if got := NewFailure(KindInternal, "").Error(); got != "internal" {
		t.Fatalf("Error() without message = %q", got)
	}
}
