package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"subburn/internal/job"
	"subburn/internal/workspace"
)

// Artifact is a readable handle onto a finished render. The underlying
// workspace stays pinned until Close, so the file is never reclaimed while a
// delivery stream is open.
type Artifact struct {
	io.ReadCloser
	Name        string
	Size        int64
	ContentType string
}

// Fetch opens the output artifact of a succeeded job.
//
// Jobs that are not yet terminal return job.ErrNotReady. Jobs in any terminal
// state other than Succeeded return their recorded failure; only renders whose
// output-file check passed are ever served.
func (e *Engine) Fetch(id string) (*Artifact, error) {
	jb, err := e.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if !jb.Terminal() {
		return nil, job.ErrNotReady
	}
	if jb.State != job.StateSucceeded {
		if jb.Failure != nil {
			return nil, jb.Failure
		}
		return nil, fmt.Errorf("job %s finished %s with no artifact", id, jb.State)
	}

	handle := e.workspaces.Lookup(id)
	if handle == nil {
		return nil, job.ErrNotFound
	}
	handle.Pin()

	file, err := os.Open(jb.ResultPath)
	if err != nil {
		_ = e.workspaces.Unpin(handle)
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		_ = e.workspaces.Unpin(handle)
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	return &Artifact{
		ReadCloser: &pinnedReader{
			file:       file,
			workspaces: e.workspaces,
			handle:     handle,
		},
		Name:        filepath.Base(jb.ResultPath),
		Size:        info.Size(),
		ContentType: contentTypeForExt(filepath.Ext(jb.ResultPath)),
	}, nil
}

type pinnedReader struct {
	file       *os.File
	workspaces *workspace.Manager
	handle     *workspace.Handle
	closed     bool
}

func (r *pinnedReader) Read(p []byte) (int, error) {
	return r.file.Read(p)
}

func (r *pinnedReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.file.Close()
	if unpinErr := r.workspaces.Unpin(r.handle); err == nil {
		err = unpinErr
	}
	return err
}

func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	default:
		return "application/octet-stream"
	}
}
