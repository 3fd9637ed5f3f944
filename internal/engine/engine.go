package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"subburn/internal/config"
	"subburn/internal/job"
	"subburn/internal/logging"
	"subburn/internal/registry"
	"subburn/internal/renderer"
	"subburn/internal/scheduler"
	"subburn/internal/workspace"
)

// Engine owns all process-wide render service state.
type Engine struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *registry.Registry
	journal    *registry.Journal
	workspaces *workspace.Manager
	scheduler  *scheduler.Scheduler

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	reapWG  sync.WaitGroup
}

// Option overrides engine construction, primarily for tests.
type Option func(*options)

type options struct {
	invoker renderer.Invoker
}

// WithInvoker substitutes a synthetic renderer implementation.
func WithInvoker(invoker renderer.Invoker) Option {
	return func(o *options) {
		if invoker != nil {
			o.invoker = invoker
		}
	}
}

// New constructs an engine from configuration. Startup-fatal conditions (an
// unwritable workspace root, an unopenable journal) surface here.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	workspaces, err := workspace.NewManager(cfg.Paths.WorkspaceDir, cfg.WorkspaceCeilingBytes(), logger)
	if err != nil {
		return nil, fmt.Errorf("workspace manager: %w", err)
	}

	journal, err := registry.OpenJournal(cfg.Paths.LogDir)
	if err != nil {
		return nil, fmt.Errorf("open job journal: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	invoker := o.invoker
	if invoker == nil {
		runner, err := renderer.NewRunner(
			cfg.Render.Binary,
			cfg.Paths.FontsDir,
			cfg.RenderTimeout(),
			cfg.KillGrace(),
			renderer.EncodeSettings{
				VideoCodec: cfg.Render.VideoCodec,
				Preset:     cfg.Render.Preset,
				CRF:        cfg.Render.CRF,
			},
			renderer.SubtitleSettings{
				DefaultFont: cfg.Subtitles.DefaultFont,
				CJKFont:     cfg.Subtitles.CJKFont,
				PlayResX:    cfg.Subtitles.PlayResX,
				PlayResY:    cfg.Subtitles.PlayResY,
				FontSize:    cfg.Subtitles.FontSize,
			},
			logger,
		)
		if err != nil {
			_ = journal.Close()
			return nil, fmt.Errorf("renderer: %w", err)
		}
		invoker = runner
	}

	reg := registry.New()
	sched, err := scheduler.New(
		scheduler.Limits{
			MaxConcurrent: cfg.Render.MaxConcurrent,
			MaxQueueDepth: cfg.Render.MaxQueueDepth,
		},
		reg,
		journal,
		workspaces,
		invoker,
		logger,
	)
	if err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "subburnd.lock")
	return &Engine{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "engine"),
		registry:   reg,
		journal:    journal,
		workspaces: workspaces,
		scheduler:  sched,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the single-instance lock, sweeps stale workspaces from a
// previous run, and launches the retention reaper.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("engine already running")
	}

	ok, err := e.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another subburn instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	swept := e.workspaces.Sweep(runCtx)
	if len(swept.Removed) > 0 {
		e.logger.Info("swept stale workspaces",
			logging.Int("count", len(swept.Removed)),
			logging.String(logging.FieldEventType, "workspace_sweep"),
		)
	}
	for _, sweepErr := range swept.Errors {
		e.logger.Warn("workspace sweep failed",
			logging.String("path", sweepErr.Path),
			logging.Error(sweepErr.Error),
			logging.String(logging.FieldEventType, "workspace_sweep_failed"),
			logging.String(logging.FieldErrorHint, "check workspace_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
	}

	e.scheduler.Start(runCtx)

	e.reapWG.Add(1)
	go e.reapLoop(runCtx)

	e.running = true
	e.logger.Info("engine started",
		logging.String("workspace_root", e.workspaces.Root()),
		logging.Int("max_concurrent", e.cfg.Render.MaxConcurrent),
		logging.Int("max_queue_depth", e.cfg.Render.MaxQueueDepth),
	)
	return nil
}

// Submit admits a render request.
func (e *Engine) Submit(spec job.Spec) (string, error) {
	return e.scheduler.Submit(spec)
}

// Get returns the current view of a job.
func (e *Engine) Get(id string) (*job.Job, error) {
	return e.registry.Get(id)
}

// List returns all live jobs in submission order.
func (e *Engine) List() []*job.Job {
	return e.registry.List()
}

// Cancel requests cancellation of a job.
func (e *Engine) Cancel(id string) (job.State, error) {
	return e.scheduler.Cancel(id)
}

// History returns recent journal records.
func (e *Engine) History(ctx context.Context, limit int) ([]registry.Record, error) {
	return e.journal.History(ctx, limit)
}

// Status summarizes engine state for the status endpoint.
type Status struct {
	Running        bool
	MaxConcurrent  int
	ActiveRenders  int
	QueueDepth     int
	JobCounts      map[job.State]int
	WorkspaceBytes int64
	WorkspaceCount int
	JournalPath    string
}

// Describe reports current engine status.
func (e *Engine) Describe() Status {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	return Status{
		Running:        running,
		MaxConcurrent:  e.cfg.Render.MaxConcurrent,
		ActiveRenders:  e.scheduler.Running(),
		QueueDepth:     e.scheduler.QueueDepth(),
		JobCounts:      e.registry.Counts(),
		WorkspaceBytes: e.workspaces.UsedBytes(),
		WorkspaceCount: e.workspaces.ActiveCount(),
		JournalPath:    e.journal.Path(),
	}
}

func (e *Engine) reapLoop(ctx context.Context) {
	defer e.reapWG.Done()

	ttl := e.cfg.RetentionTTL()
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reapOnce(ctx, time.Now().UTC(), ttl)
		}
	}
}

func (e *Engine) reapOnce(ctx context.Context, now time.Time, ttl time.Duration) {
	evicted := e.registry.EvictExpired(now, ttl)
	for _, jb := range evicted {
		if e.journal != nil {
			if err := e.journal.RecordTransition(ctx, jb); err != nil {
				e.logger.Warn("journal eviction failed", logging.Error(err))
			}
		}
		if handle := e.workspaces.Lookup(jb.ID); handle != nil {
			_ = e.workspaces.Release(handle)
		}
		e.logger.Info("job evicted",
			logging.String(logging.FieldJobID, jb.ID),
			logging.String("state", string(jb.State)),
			logging.String(logging.FieldEventType, "job_evicted"),
		)
	}
}

// Shutdown cancels outstanding work, reclaims workspaces, and releases the
// single-instance lock.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return e.closeStores()
	}
	e.running = false
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	schedErr := e.scheduler.Shutdown(ctx)

	cancel()
	e.reapWG.Wait()

	// Reclaim everything still on disk; open delivery streams keep their
	// workspaces pinned until close.
	for _, jb := range e.registry.List() {
		if handle := e.workspaces.Lookup(jb.ID); handle != nil {
			_ = e.workspaces.Release(handle)
		}
		e.registry.Remove(jb.ID)
	}

	if err := e.lock.Unlock(); err != nil {
		e.logger.Warn("failed to release instance lock", logging.Error(err))
	}

	closeErr := e.closeStores()
	e.logger.Info("engine stopped")
	if schedErr != nil {
		return schedErr
	}
	return closeErr
}

func (e *Engine) closeStores() error {
	if e.journal == nil {
		return nil
	}
	return e.journal.Close()
}
