package job

import (
	"strings"
	"time"
)

// State represents the lifecycle of a render job.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

var allStates = []State{
	StateQueued,
	StateRunning,
	StateSucceeded,
	StateFailed,
	StateCancelled,
	StateExpired,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a state admits no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled, StateExpired:
		return true
	default:
		return false
	}
}

// Cue is one timed subtitle line burned into the output.
type Cue struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Spec is the immutable description of one render request.
type Spec struct {
	// InputPath points at the source video. The scheduler stages it into the
	// job workspace before the renderer runs.
	InputPath string `json:"input_path"`
	// Cues carries timed overlay lines. When empty, Text is burned as a
	// single full-duration cue.
	Cues []Cue `json:"cues,omitempty"`
	// Text is a plain overlay payload used when no timed cues are supplied.
	Text string `json:"text,omitempty"`
	// LanguageHint is an optional BCP-47 tag guiding font selection.
	LanguageHint string `json:"language_hint,omitempty"`
	// OutputExt selects the output container extension (default "mp4").
	OutputExt string `json:"output_ext,omitempty"`
}

// Job is the unit of work tracked by the registry.
type Job struct {
	ID            string
	Spec          Spec
	State         State
	WorkspacePath string
	ResultPath    string
	Failure       *Failure
	SubmittedAt   time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Clone returns a deep copy safe to hand to readers while the original keeps
// mutating under the registry lock.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Failure != nil {
		failure := *j.Failure
		cp.Failure = &failure
	}
	if len(j.Spec.Cues) > 0 {
		cues := make([]Cue, len(j.Spec.Cues))
		copy(cues, j.Spec.Cues)
		cp.Spec.Cues = cues
	}
	return &cp
}

// Terminal reports whether the job reached a terminal state.
func (j *Job) Terminal() bool {
	return j != nil && j.State.IsTerminal()
}

// OutputExtension returns the requested output extension with a leading dot.
func (s Spec) OutputExtension() string {
	ext := strings.TrimSpace(strings.ToLower(s.OutputExt))
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "mp4"
	}
	return "." + ext
}

// OverlayCues normalizes the overlay payload into timed cues. Plain text
// without timing becomes a single cue covering fullSpan.
func (s Spec) OverlayCues(fullSpan time.Duration) []Cue {
	if len(s.Cues) > 0 {
		cues := make([]Cue, 0, len(s.Cues))
		for _, cue := range s.Cues {
			if strings.TrimSpace(cue.Text) == "" {
				continue
			}
			if cue.End <= cue.Start {
				continue
			}
			cues = append(cues, cue)
		}
		return cues
	}
	text := strings.TrimSpace(s.Text)
	if text == "" {
		return nil
	}
	if fullSpan <= 0 {
		fullSpan = time.Hour
	}
	return []Cue{{Start: 0, End: fullSpan, Text: text}}
}

// OverlayText concatenates all overlay text for script analysis.
func (s Spec) OverlayText() string {
	if len(s.Cues) == 0 {
		return s.Text
	}
	var b strings.Builder
	for _, cue := range s.Cues {
		b.WriteString(cue.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
