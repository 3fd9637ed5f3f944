package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// SweepResult contains the outcome of a startup sweep.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a directory path with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// Sweep removes job directories left under the root by a previous run of the
// service. Directories belonging to currently active handles are kept.
func (m *Manager) Sweep(ctx context.Context) SweepResult {
	result := SweepResult{}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: m.root, Error: err})
		}
		return result
	}

	m.mu.Lock()
	activePaths := make(map[string]struct{}, len(m.active))
	for _, handle := range m.active {
		activePaths[handle.path] = struct{}{}
	}
	m.mu.Unlock()

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() {
			continue
		}
		if !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		dirPath := filepath.Join(m.root, entry.Name())
		if _, active := activePaths[dirPath]; active {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			continue
		}
		result.Removed = append(result.Removed, dirPath)
	}

	return result
}
