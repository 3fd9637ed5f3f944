package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"subburn/internal/job"
	"subburn/internal/logging"
	"subburn/internal/subtitle"
	"subburn/internal/workspace"
)

// fullOverlaySpan covers untimed text overlays for the entire output; the
// renderer clamps cues to the video duration.
const fullOverlaySpan = 24 * time.Hour

// Outcome is the terminal result of one render invocation.
type Outcome struct {
	// ResultPath is set only when the render succeeded.
	ResultPath string
	// Failure is set on every non-success outcome.
	Failure *job.Failure
	// Cancelled reports that the invocation ended because the job's context
	// was cancelled rather than by policy or renderer fault.
	Cancelled bool
}

// Invoker executes exactly one external-process invocation for a running job.
// A synthetic implementation backs the scheduler and API test suites.
type Invoker interface {
	Execute(ctx context.Context, jb *job.Job, ws *workspace.Handle) Outcome
}

// SubtitleSettings selects the font and geometry for overlay materialization.
type SubtitleSettings struct {
	DefaultFont string
	CJKFont     string
	PlayResX    int
	PlayResY    int
	FontSize    int
}

// Runner supervises the configured external renderer binary.
type Runner struct {
	binary    string
	fontsDir  string
	timeout   time.Duration
	killGrace time.Duration
	encode    EncodeSettings
	subtitles SubtitleSettings
	logger    *slog.Logger

	captureLimit int
}

// Option configures the runner.
type Option func(*Runner)

// WithCaptureLimit overrides the output capture bound (primarily for tests).
func WithCaptureLimit(limit int) Option {
	return func(r *Runner) {
		if limit > 0 {
			r.captureLimit = limit
		}
	}
}

// NewRunner constructs a renderer supervisor.
func NewRunner(binary, fontsDir string, timeout, killGrace time.Duration, encode EncodeSettings, subtitles SubtitleSettings, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if binary == "" {
		return nil, errors.New("renderer binary required")
	}
	if timeout <= 0 {
		return nil, errors.New("render timeout required")
	}
	if killGrace <= 0 {
		killGrace = 5 * time.Second
	}
	runner := &Runner{
		binary:       binary,
		fontsDir:     fontsDir,
		timeout:      timeout,
		killGrace:    killGrace,
		encode:       encode,
		subtitles:    subtitles,
		logger:       logging.NewComponentLogger(logger, "renderer"),
		captureLimit: 64 * 1024,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Execute prepares the workspace inputs, runs the renderer, and maps the exit
// status to an outcome. It never returns while the subprocess is alive.
func (r *Runner) Execute(ctx context.Context, jb *job.Job, ws *workspace.Handle) Outcome {
	logger := logging.WithJob(r.logger, jb.ID)

	inputPath, err := r.stageInput(jb, ws)
	if err != nil {
		return failure(job.KindLaunchFailure, fmt.Sprintf("stage input: %v", err))
	}

	subtitlePath, err := r.writeOverlay(jb, ws)
	if err != nil {
		return failure(job.KindLaunchFailure, fmt.Sprintf("materialize overlay: %v", err))
	}

	outputPath := filepath.Join(ws.Path(), "output"+jb.Spec.OutputExtension())
	args := BuildArgs(inputPath, subtitlePath, r.fontsDir, outputPath, r.encode)

	logger.Info("render starting",
		logging.String(logging.FieldEventType, "render_start"),
		logging.String("binary", r.binary),
		logging.Duration("timeout", r.timeout),
	)

	outcome := r.run(ctx, logger, args, outputPath)

	switch {
	case outcome.Cancelled:
		logger.Info("render cancelled", logging.String(logging.FieldEventType, "render_cancelled"))
	case outcome.Failure != nil:
		logger.Warn("render failed",
			logging.String(logging.FieldEventType, "render_failure"),
			logging.String("kind", string(outcome.Failure.Kind)),
			logging.Int("exit_code", outcome.Failure.ExitCode),
		)
	default:
		logger.Info("render complete",
			logging.String(logging.FieldEventType, "render_complete"),
			logging.String("output", outcome.ResultPath),
		)
	}
	return outcome
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, args []string, outputPath string) Outcome {
	capture := newBoundedBuffer(r.captureLimit)

	cmd := exec.Command(r.binary, args...) //nolint:gosec
	cmd.Stdout = capture
	cmd.Stderr = capture
	cmd.Stdin = nil
	// Own process group so timeouts kill the renderer and any children it
	// forked, not just the leader.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return failure(job.KindLaunchFailure, fmt.Sprintf("start renderer: %v", err))
	}
	pgid := cmd.Process.Pid

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	var waitErr error
	var timedOut, cancelled bool

	select {
	case waitErr = <-done:
	case <-ctx.Done():
		cancelled = true
		r.terminate(pgid, done, &waitErr)
	case <-timer.C:
		timedOut = true
		r.terminate(pgid, done, &waitErr)
	}

	switch {
	case cancelled:
		return Outcome{Cancelled: true, Failure: job.NewFailure(job.KindCancelled, "render cancelled")}
	case timedOut:
		f := job.NewFailure(job.KindTimeout, fmt.Sprintf("render exceeded %s deadline", r.timeout))
		f.StderrExcerpt = job.TruncateExcerpt(capture.String(), job.StderrExcerptLimit)
		return Outcome{Failure: f}
	case waitErr != nil:
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		f := job.NewFailure(job.KindRendererError, fmt.Sprintf("renderer exited with code %d", exitCode))
		f.WithExit(exitCode, capture.String())
		return Outcome{Failure: f}
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		f := job.NewFailure(job.KindNoOutputProduced, "renderer exited cleanly but produced no output file")
		f.StderrExcerpt = job.TruncateExcerpt(capture.String(), job.StderrExcerptLimit)
		return Outcome{Failure: f}
	}
	if file, err := os.Open(outputPath); err != nil {
		return failure(job.KindNoOutputProduced, fmt.Sprintf("output file unreadable: %v", err))
	} else {
		_ = file.Close()
	}

	return Outcome{ResultPath: outputPath}
}

// terminate escalates from SIGTERM to SIGKILL on the whole process group and
// always waits for the process to be reaped, so no orphan survives and the
// caller's admission slot can be released safely.
func (r *Runner) terminate(pgid int, done <-chan error, waitErr *error) {
	_ = unix.Kill(-pgid, unix.SIGTERM)

	grace := time.NewTimer(r.killGrace)
	defer grace.Stop()

	select {
	case *waitErr = <-done:
		return
	case <-grace.C:
	}

	_ = unix.Kill(-pgid, unix.SIGKILL)
	*waitErr = <-done
}

// stageInput links or copies the source video into the workspace so the
// subprocess only ever touches job-owned paths.
func (r *Runner) stageInput(jb *job.Job, ws *workspace.Handle) (string, error) {
	src := jb.Spec.InputPath
	if src == "" {
		return "", errors.New("input path required")
	}
	dest := filepath.Join(ws.Path(), "input"+filepath.Ext(src))
	if err := os.Link(src, dest); err == nil {
		return dest, nil
	}
	if err := copyFile(src, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (r *Runner) writeOverlay(jb *job.Job, ws *workspace.Handle) (string, error) {
	cues := jb.Spec.OverlayCues(fullOverlaySpan)
	if len(cues) == 0 {
		return "", errors.New("overlay payload empty")
	}

	script := subtitle.DetectScript(jb.Spec.OverlayText(), jb.Spec.LanguageHint)
	font := r.subtitles.DefaultFont
	if script == subtitle.ScriptCJK && r.subtitles.CJKFont != "" {
		font = r.subtitles.CJKFont
	}

	path := filepath.Join(ws.Path(), "overlay.ass")
	err := subtitle.WriteASS(path, cues, subtitle.Style{
		FontName: font,
		FontSize: r.subtitles.FontSize,
		PlayResX: r.subtitles.PlayResX,
		PlayResY: r.subtitles.PlayResY,
		RTL:      script.NeedsRTLOverride(),
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create staged input: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy input: %w", err)
	}
	return out.Close()
}

func failure(kind job.FailureKind, message string) Outcome {
	return Outcome{Failure: job.NewFailure(kind, message)}
}

var _ Invoker = (*Runner)(nil)
