package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"subburn/internal/job"
)

// Registry is the in-memory job table.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{jobs: make(map[string]*job.Job)}
}

// Put stores a newly submitted job.
func (r *Registry) Put(j *job.Job) error {
	if j == nil || j.ID == "" {
		return fmt.Errorf("job with id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[j.ID]; exists {
		return fmt.Errorf("job %s already registered", j.ID)
	}
	r.jobs[j.ID] = j
	return nil
}

// Get returns a copy of the job, or job.ErrNotFound for unknown or evicted ids.
func (r *Registry) Get(id string) (*job.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, job.ErrNotFound
	}
	return j.Clone(), nil
}

// List returns copies of all tracked jobs in submission order.
func (r *Registry) List() []*job.Job {
	r.mu.RLock()
	out := make([]*job.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool {
		if out[i].SubmittedAt.Equal(out[k].SubmittedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].SubmittedAt.Before(out[k].SubmittedAt)
	})
	return out
}

// Counts aggregates jobs per state.
func (r *Registry) Counts() map[job.State]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[job.State]int, len(r.jobs))
	for _, j := range r.jobs {
		counts[j.State]++
	}
	return counts
}

// MarkRunning transitions a queued job to running and records its workspace.
func (r *Registry) MarkRunning(id, workspacePath string) error {
	return r.transition(id, func(j *job.Job) error {
		if j.State != job.StateQueued {
			return fmt.Errorf("job %s is %s, not queued", id, j.State)
		}
		j.State = job.StateRunning
		j.WorkspacePath = workspacePath
		j.StartedAt = time.Now().UTC()
		return nil
	})
}

// MarkSucceeded records a successful terminal outcome.
func (r *Registry) MarkSucceeded(id, resultPath string) error {
	return r.terminal(id, func(j *job.Job) {
		j.State = job.StateSucceeded
		j.ResultPath = resultPath
	})
}

// MarkFailed records a failed terminal outcome.
func (r *Registry) MarkFailed(id string, failure *job.Failure) error {
	return r.terminal(id, func(j *job.Job) {
		j.State = job.StateFailed
		j.Failure = failure
	})
}

// MarkCancelled records cancellation.
func (r *Registry) MarkCancelled(id string) error {
	return r.terminal(id, func(j *job.Job) {
		j.State = job.StateCancelled
		j.Failure = job.NewFailure(job.KindCancelled, "cancelled by request")
	})
}

func (r *Registry) terminal(id string, apply func(*job.Job)) error {
	return r.transition(id, func(j *job.Job) error {
		if j.State.IsTerminal() {
			return fmt.Errorf("job %s already terminal (%s)", id, j.State)
		}
		apply(j)
		j.FinishedAt = time.Now().UTC()
		// Result and failure are mutually exclusive on terminal jobs.
		if j.State == job.StateSucceeded {
			j.Failure = nil
		} else {
			j.ResultPath = ""
		}
		return nil
	})
}

func (r *Registry) transition(id string, apply func(*job.Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return job.ErrNotFound
	}
	return apply(j)
}

// EvictExpired removes terminal jobs whose retention window has elapsed and
// returns copies of the evicted jobs so callers can reclaim their workspaces.
// Succeeded jobs whose result was never collected leave as Expired.
func (r *Registry) EvictExpired(now time.Time, ttl time.Duration) []*job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*job.Job
	for id, j := range r.jobs {
		if !j.State.IsTerminal() {
			continue
		}
		if j.FinishedAt.IsZero() || now.Sub(j.FinishedAt) < ttl {
			continue
		}
		if j.State == job.StateSucceeded {
			j.State = job.StateExpired
			j.ResultPath = ""
		}
		evicted = append(evicted, j.Clone())
		delete(r.jobs, id)
	}
	return evicted
}

// Remove drops a job regardless of state. Used on shutdown teardown.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}
