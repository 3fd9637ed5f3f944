package job

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies terminal failures and admission rejections.
type FailureKind string

const (
	KindOverloaded        FailureKind = "overloaded"
	KindResourceExhausted FailureKind = "resource_exhausted"
	KindLaunchFailure     FailureKind = "launch_failure"
	KindRendererError     FailureKind = "renderer_error"
	KindTimeout           FailureKind = "timeout"
	KindNoOutputProduced  FailureKind = "no_output_produced"
	KindCancelled         FailureKind = "cancelled"
	KindInternal          FailureKind = "internal"
)

// Sentinel errors surfaced at the admission and delivery boundaries.
var (
	ErrOverloaded        = errors.New("render queue full")
	ErrResourceExhausted = errors.New("workspace quota exhausted")
	ErrNotFound          = errors.New("job not found")
	ErrNotReady          = errors.New("job result not ready")
	ErrInvalidRequest    = errors.New("invalid render request")
)

// StderrExcerptLimit bounds how much renderer stderr is retained on a failure.
const StderrExcerptLimit = 4096

// Failure is the structured error recorded on a failed job.
type Failure struct {
	Kind          FailureKind `json:"kind"`
	Message       string      `json:"message"`
	ExitCode      int         `json:"exit_code,omitempty"`
	StderrExcerpt string      `json:"stderr_excerpt,omitempty"`
}

// NewFailure builds a failure with a bounded stderr excerpt.
func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: strings.TrimSpace(message)}
}

// WithExit attaches subprocess exit detail to a failure.
func (f *Failure) WithExit(code int, stderr string) *Failure {
	f.ExitCode = code
	f.StderrExcerpt = TruncateExcerpt(stderr, StderrExcerptLimit)
	return f
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	if f.Message == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// TruncateExcerpt trims s to at most limit bytes, marking the cut.
func TruncateExcerpt(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "... [truncated]"
}
