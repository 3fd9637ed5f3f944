package api

import (
	"time"

	"subburn/internal/engine"
	"subburn/internal/job"
	"subburn/internal/registry"
)

// SubmitRequest is the wire form of a render submission. The input video is
// referenced by path rather than uploaded; the engine stages it into the job
// workspace before the renderer runs.
type SubmitRequest struct {
	InputPath    string    `json:"input_path"`
	Text         string    `json:"text,omitempty"`
	Cues         []CueView `json:"cues,omitempty"`
	LanguageHint string    `json:"language_hint,omitempty"`
	OutputExt    string    `json:"output_ext,omitempty"`
}

// CueView is a timed overlay line with millisecond timestamps.
type CueView struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// SubmitResponse acknowledges an admitted job.
type SubmitResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// FailureView mirrors the structured failure recorded on a failed job.
type FailureView struct {
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	ExitCode      int    `json:"exit_code,omitempty"`
	StderrExcerpt string `json:"stderr_excerpt,omitempty"`
}

// JobView is the public projection of one tracked job.
type JobView struct {
	ID           string       `json:"id"`
	State        string       `json:"state"`
	InputPath    string       `json:"input_path"`
	LanguageHint string       `json:"language_hint,omitempty"`
	SubmittedAt  time.Time    `json:"submitted_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
	ResultURL    string       `json:"result_url,omitempty"`
	Error        *FailureView `json:"error,omitempty"`
}

// JobListResponse wraps the job listing.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// StatusResponse summarizes engine health and load.
type StatusResponse struct {
	Running        bool           `json:"running"`
	MaxConcurrent  int            `json:"max_concurrent"`
	ActiveRenders  int            `json:"active_renders"`
	QueueDepth     int            `json:"queue_depth"`
	JobCounts      map[string]int `json:"job_counts"`
	WorkspaceBytes int64          `json:"workspace_bytes"`
	WorkspaceCount int            `json:"workspace_count"`
}

// CancelResponse reports the job state after a cancellation request.
type CancelResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// HistoryRecordView is one journaled lifecycle record.
type HistoryRecordView struct {
	ID           string     `json:"id"`
	State        string     `json:"state"`
	InputPath    string     `json:"input_path"`
	LanguageHint string     `json:"language_hint,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	ExitCode     int        `json:"exit_code,omitempty"`
}

// HistoryResponse wraps the journal listing.
type HistoryResponse struct {
	Records []HistoryRecordView `json:"records"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ToSpec converts the wire submission into the engine's job spec.
func (r SubmitRequest) ToSpec() job.Spec {
	spec := job.Spec{
		InputPath:    r.InputPath,
		Text:         r.Text,
		LanguageHint: r.LanguageHint,
		OutputExt:    r.OutputExt,
	}
	for _, cue := range r.Cues {
		spec.Cues = append(spec.Cues, job.Cue{
			Start: time.Duration(cue.StartMs) * time.Millisecond,
			End:   time.Duration(cue.EndMs) * time.Millisecond,
			Text:  cue.Text,
		})
	}
	return spec
}

// NewJobView projects a job clone into its wire form.
func NewJobView(j *job.Job) JobView {
	view := JobView{
		ID:           j.ID,
		State:        string(j.State),
		InputPath:    j.Spec.InputPath,
		LanguageHint: j.Spec.LanguageHint,
		SubmittedAt:  j.SubmittedAt,
	}
	if !j.StartedAt.IsZero() {
		started := j.StartedAt
		view.StartedAt = &started
	}
	if !j.FinishedAt.IsZero() {
		finished := j.FinishedAt
		view.FinishedAt = &finished
	}
	if j.State == job.StateSucceeded {
		view.ResultURL = "/api/jobs/" + j.ID + "/result"
	}
	if j.Failure != nil {
		view.Error = &FailureView{
			Kind:          string(j.Failure.Kind),
			Message:       j.Failure.Message,
			ExitCode:      j.Failure.ExitCode,
			StderrExcerpt: j.Failure.StderrExcerpt,
		}
	}
	return view
}

// NewStatusResponse projects the engine status into its wire form.
func NewStatusResponse(status engine.Status) StatusResponse {
	counts := make(map[string]int, len(status.JobCounts))
	for state, count := range status.JobCounts {
		counts[string(state)] = count
	}
	return StatusResponse{
		Running:        status.Running,
		MaxConcurrent:  status.MaxConcurrent,
		ActiveRenders:  status.ActiveRenders,
		QueueDepth:     status.QueueDepth,
		JobCounts:      counts,
		WorkspaceBytes: status.WorkspaceBytes,
		WorkspaceCount: status.WorkspaceCount,
	}
}

// NewHistoryRecordView projects a journal record into its wire form.
func NewHistoryRecordView(rec registry.Record) HistoryRecordView {
	view := HistoryRecordView{
		ID:           rec.ID,
		State:        string(rec.State),
		InputPath:    rec.InputPath,
		LanguageHint: rec.LanguageHint,
		SubmittedAt:  rec.SubmittedAt,
		ErrorKind:    rec.ErrorKind,
		ErrorMessage: rec.ErrorMessage,
		ExitCode:     rec.ExitCode,
	}
	if rec.StartedAt != nil {
		started := *rec.StartedAt
		view.StartedAt = &started
	}
	if rec.FinishedAt != nil {
		finished := *rec.FinishedAt
		view.FinishedAt = &finished
	}
	return view
}
