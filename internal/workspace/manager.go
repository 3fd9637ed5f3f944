package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"subburn/internal/job"
	"subburn/internal/logging"
)

const dirPrefix = "job-"

// Handle is the exclusive grant on one job's scratch directory.
type Handle struct {
	jobID string
	path  string

	mu       sync.Mutex
	released bool
	pins     int
}

// Path returns the workspace directory.
func (h *Handle) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}

// JobID returns the owning job identifier.
func (h *Handle) JobID() string {
	if h == nil {
		return ""
	}
	return h.jobID
}

// Pin marks the workspace as in use by an open result stream. A pinned
// workspace survives Release until the last Unpin.
func (h *Handle) Pin() {
	h.mu.Lock()
	h.pins++
	h.mu.Unlock()
}

// Manager allocates and reclaims job workspaces under a single root.
type Manager struct {
	root    string
	ceiling int64
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]*Handle
}

// NewManager constructs a workspace manager rooted at root. A ceiling of zero
// disables the quota.
func NewManager(root string, ceilingBytes int64, logger *slog.Logger) (*Manager, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("workspace root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	// The root must be writable up front; a read-only root is a deployment
	// fault, not a per-job failure.
	probe, err := os.CreateTemp(root, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("workspace root not writable: %w", err)
	}
	probeName := probe.Name()
	_ = probe.Close()
	_ = os.Remove(probeName)

	return &Manager{
		root:    root,
		ceiling: ceilingBytes,
		logger:  logging.NewComponentLogger(logger, "workspace"),
		active:  make(map[string]*Handle),
	}, nil
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates an empty scratch directory owned by jobID.
func (m *Manager) Acquire(jobID string) (*Handle, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errors.New("job id required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[jobID]; exists {
		return nil, fmt.Errorf("workspace for job %s already exists", jobID)
	}
	if m.ceiling > 0 {
		used := m.usedBytesLocked()
		if used >= m.ceiling {
			return nil, fmt.Errorf("%w: %d of %d bytes in use", job.ErrResourceExhausted, used, m.ceiling)
		}
	}

	path := filepath.Join(m.root, dirPrefix+sanitizeSegment(jobID))
	if err := os.Mkdir(path, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			// Leftover from a crashed run that the sweep missed; reclaim it.
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("reclaim stale workspace: %w", rmErr)
			}
			if mkErr := os.Mkdir(path, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create workspace: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
	}

	handle := &Handle{jobID: jobID, path: path}
	m.active[jobID] = handle
	return handle, nil
}

// Release removes the workspace directory. It is safe to call more than once;
// only the first call takes effect. A pinned workspace is deferred until the
// final Unpin.
func (m *Manager) Release(h *Handle) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	if h.pins > 0 {
		h.released = true
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()
	return m.remove(h)
}

// Unpin drops one stream reference; the last unpin on a released handle
// removes the directory.
func (m *Manager) Unpin(h *Handle) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	if h.pins > 0 {
		h.pins--
	}
	removeNow := h.released && h.pins == 0
	h.mu.Unlock()
	if removeNow {
		return m.remove(h)
	}
	return nil
}

func (m *Manager) remove(h *Handle) error {
	m.mu.Lock()
	delete(m.active, h.jobID)
	m.mu.Unlock()

	if err := os.RemoveAll(h.path); err != nil {
		m.logger.Warn("failed to remove workspace",
			logging.String("path", h.path),
			logging.String(logging.FieldJobID, h.jobID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "workspace_release_failed"),
			logging.String(logging.FieldErrorHint, "check workspace_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return fmt.Errorf("remove workspace: %w", err)
	}
	m.logger.Debug("workspace released",
		logging.String("path", h.path),
		logging.String(logging.FieldJobID, h.jobID),
	)
	return nil
}

// Lookup returns the active handle for a job, or nil.
func (m *Manager) Lookup(jobID string) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[jobID]
}

// QuotaExceeded reports whether active workspaces already meet the ceiling.
func (m *Manager) QuotaExceeded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ceiling <= 0 {
		return false
	}
	return m.usedBytesLocked() >= m.ceiling
}

// UsedBytes reports total bytes across active workspaces.
func (m *Manager) UsedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usedBytesLocked()
}

func (m *Manager) usedBytesLocked() int64 {
	var total int64
	for _, handle := range m.active {
		size, _ := dirSize(handle.path)
		total += size
	}
	return total
}

// ActiveCount reports how many workspaces are currently allocated.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

func sanitizeSegment(value string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "", "\"", "", "<", "", ">", "", "|", "", " ", "-")
	value = strings.Trim(replacer.Replace(value), "-_")
	if value == "" {
		return "job"
	}
	return value
}
