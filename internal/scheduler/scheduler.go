package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"subburn/internal/job"
	"subburn/internal/logging"
	"subburn/internal/registry"
	"subburn/internal/renderer"
	"subburn/internal/workspace"
)

// Limits bounds admission.
type Limits struct {
	MaxConcurrent int
	MaxQueueDepth int
}

// Scheduler admits, queues, and dispatches render jobs.
type Scheduler struct {
	limits     Limits
	registry   *registry.Registry
	journal    *registry.Journal
	workspaces *workspace.Manager
	invoker    renderer.Invoker
	logger     *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	queue   []string
	cancels map[string]context.CancelFunc
	slots   int
	closed  bool

	wg sync.WaitGroup
}

// New constructs a scheduler. The journal may be nil in tests.
func New(limits Limits, reg *registry.Registry, journal *registry.Journal, workspaces *workspace.Manager, invoker renderer.Invoker, logger *slog.Logger) (*Scheduler, error) {
	if limits.MaxConcurrent < 1 {
		return nil, errors.New("max concurrent must be at least 1")
	}
	if limits.MaxQueueDepth < 0 {
		return nil, errors.New("max queue depth must not be negative")
	}
	if reg == nil || workspaces == nil || invoker == nil {
		return nil, errors.New("scheduler requires registry, workspace manager, and invoker")
	}
	return &Scheduler{
		limits:     limits,
		registry:   reg,
		journal:    journal,
		workspaces: workspaces,
		invoker:    invoker,
		logger:     logging.NewComponentLogger(logger, "scheduler"),
		baseCtx:    context.Background(),
		cancels:    make(map[string]context.CancelFunc),
	}, nil
}

// Start binds dispatched jobs to ctx; cancelling it cancels all running work.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if ctx != nil {
		s.baseCtx = ctx
	}
	s.mu.Unlock()
}

// Submit admits a render request. It never blocks: the result is either a new
// queued (or immediately running) job or a rejection.
func (s *Scheduler) Submit(spec job.Spec) (string, error) {
	if strings.TrimSpace(spec.InputPath) == "" {
		return "", fmt.Errorf("%w: input path required", job.ErrInvalidRequest)
	}
	if len(spec.OverlayCues(time.Hour)) == 0 {
		return "", fmt.Errorf("%w: overlay payload required", job.ErrInvalidRequest)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", errors.New("scheduler shut down")
	}
	if s.slots >= s.limits.MaxConcurrent && len(s.queue) >= s.limits.MaxQueueDepth {
		s.mu.Unlock()
		return "", job.ErrOverloaded
	}
	if s.workspaces.QuotaExceeded() {
		s.mu.Unlock()
		return "", job.ErrResourceExhausted
	}

	jb := &job.Job{
		ID:          uuid.NewString(),
		Spec:        spec,
		State:       job.StateQueued,
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.registry.Put(jb); err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("register job: %w", err)
	}
	s.queue = append(s.queue, jb.ID)
	s.promoteLocked()
	s.mu.Unlock()

	s.journalSubmission(jb)
	s.logger.Info("job admitted",
		logging.String(logging.FieldJobID, jb.ID),
		logging.String(logging.FieldEventType, "job_admitted"),
	)
	return jb.ID, nil
}

// Cancel requests cancellation and returns the job's state afterwards.
// Queued jobs leave the queue immediately; running jobs are signalled and
// reach Cancelled once the subprocess is confirmed terminated; terminal jobs
// are left untouched.
func (s *Scheduler) Cancel(id string) (job.State, error) {
	s.mu.Lock()
	for i, queued := range s.queue {
		if queued != id {
			continue
		}
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		s.mu.Unlock()

		if err := s.registry.MarkCancelled(id); err != nil {
			return "", err
		}
		s.journalTransition(id)
		s.logger.Info("queued job cancelled",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldEventType, "job_cancelled"),
		)
		return job.StateCancelled, nil
	}
	cancel, running := s.cancels[id]
	s.mu.Unlock()

	if running {
		cancel()
		current, err := s.registry.Get(id)
		if err != nil {
			return "", err
		}
		return current.State, nil
	}

	current, err := s.registry.Get(id)
	if err != nil {
		return "", err
	}
	return current.State, nil
}

// promoteLocked moves queued jobs into free slots in strict FIFO order.
// Callers must hold s.mu.
func (s *Scheduler) promoteLocked() {
	for s.slots < s.limits.MaxConcurrent && len(s.queue) > 0 && !s.closed {
		id := s.queue[0]
		s.queue = s.queue[1:]
		s.slots++

		jobCtx, cancel := context.WithCancel(s.baseCtx)
		s.cancels[id] = cancel

		s.wg.Add(1)
		go s.runJob(jobCtx, id)
	}
}

func (s *Scheduler) runJob(ctx context.Context, id string) {
	defer s.wg.Done()
	// The slot is released on every path, including panics in the invoker.
	defer s.releaseSlot(id)

	logger := logging.WithJob(s.logger, id)

	ws, err := s.workspaces.Acquire(id)
	if err != nil {
		kind := job.KindInternal
		if errors.Is(err, job.ErrResourceExhausted) {
			kind = job.KindResourceExhausted
		}
		s.failJob(id, job.NewFailure(kind, err.Error()))
		return
	}

	if err := s.registry.MarkRunning(id, ws.Path()); err != nil {
		// Cancelled between promotion and start; nothing ran.
		_ = s.workspaces.Release(ws)
		logger.Debug("job not started", logging.Error(err))
		return
	}
	s.journalTransition(id)

	current, err := s.registry.Get(id)
	if err != nil {
		_ = s.workspaces.Release(ws)
		s.failJob(id, job.NewFailure(job.KindInternal, err.Error()))
		return
	}

	outcome := s.invoker.Execute(ctx, current, ws)

	switch {
	case outcome.Cancelled:
		if err := s.registry.MarkCancelled(id); err != nil {
			logger.Warn("record cancellation", logging.Error(err))
		}
		_ = s.workspaces.Release(ws)
	case outcome.Failure != nil:
		if err := s.registry.MarkFailed(id, outcome.Failure); err != nil {
			logger.Warn("record failure", logging.Error(err))
		}
		_ = s.workspaces.Release(ws)
	default:
		if err := s.registry.MarkSucceeded(id, outcome.ResultPath); err != nil {
			logger.Warn("record success", logging.Error(err))
			_ = s.workspaces.Release(ws)
		}
		// The workspace outlives the job until delivery or retention expiry.
	}
	s.journalTransition(id)
}

func (s *Scheduler) releaseSlot(id string) {
	s.mu.Lock()
	s.slots--
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	s.promoteLocked()
	s.mu.Unlock()
}

func (s *Scheduler) failJob(id string, failure *job.Failure) {
	if err := s.registry.MarkFailed(id, failure); err != nil {
		s.logger.Warn("record failure",
			logging.String(logging.FieldJobID, id),
			logging.Error(err),
		)
		return
	}
	s.journalTransition(id)
}

// Running reports the number of in-flight renders.
func (s *Scheduler) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots
}

// QueueDepth reports the number of jobs waiting for a slot.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Shutdown stops intake, cancels queued and running jobs, and waits for
// workers to finish or ctx to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	queued := s.queue
	s.queue = nil
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	for _, id := range queued {
		if err := s.registry.MarkCancelled(id); err == nil {
			s.journalTransition(id)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown wait: %w", ctx.Err())
	}
}

func (s *Scheduler) journalSubmission(jb *job.Job) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordSubmission(context.Background(), jb); err != nil {
		s.logger.Warn("journal submission failed", logging.Error(err))
	}
}

func (s *Scheduler) journalTransition(id string) {
	if s.journal == nil {
		return
	}
	current, err := s.registry.Get(id)
	if err != nil {
		return
	}
	if err := s.journal.RecordTransition(context.Background(), current); err != nil {
		s.logger.Warn("journal transition failed", logging.Error(err))
	}
}
