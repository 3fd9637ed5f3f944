package renderer

import "sync"

// boundedBuffer keeps at most limit bytes of subprocess output and counts
// what it had to drop. It is safe for concurrent writes from the stdout and
// stderr pipes.
type boundedBuffer struct {
	mu      sync.Mutex
	limit   int
	data    []byte
	dropped int64
}

func newBoundedBuffer(limit int) *boundedBuffer {
	if limit <= 0 {
		limit = 64 * 1024
	}
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.limit - len(b.data)
	if room < 0 {
		room = 0
	}
	written := len(p)
	if written > room {
		written = room
	}
	if written > 0 {
		b.data = append(b.data, p[:written]...)
	}
	b.dropped += int64(len(p) - written)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dropped > 0 {
		return string(b.data) + "... [output truncated]"
	}
	return string(b.data)
}
