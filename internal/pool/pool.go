// Package pool implements a bounded-by-demand LIFO cache of read-only file
// handles to the engine's current data file, amortising handle-open cost
// across Get calls.
package pool

import (
	"os"
	"sync"
)

// Pool is safe for concurrent use.
type Pool struct {
	mu      sync.Mutex
	path    string
	handles []*os.File
}

func New(path string) *Pool {
	return &Pool{path: path}
}

// Acquire pops a cached handle, opening a fresh one against the pool's path
// if the pool is empty.
func (p *Pool) Acquire() (*os.File, error) {
	p.mu.Lock()
	n := len(p.handles)
	if n > 0 {
		h := p.handles[n-1]
		p.handles = p.handles[:n-1]
		p.mu.Unlock()
		return h, nil
	}
	p.mu.Unlock()

	return os.Open(p.path)
}

// Release pushes a handle back onto the pool for reuse.
func (p *Pool) Release(h *os.File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handles = append(p.handles, h)
}

// Discard closes a handle that errored in use instead of returning it to
// the pool.
func (p *Pool) Discard(h *os.File) {
	_ = h.Close()
}

// Drain closes and removes every pooled handle. Called by compaction after
// the file swap, so stale handles to the old (unlinked) file aren't reused.
func (p *Pool) Drain() {
	p.mu.Lock()
	handles := p.handles
	p.handles = nil
	p.mu.Unlock()

	for _, h := range handles {
		_ = h.Close()
	}
}

// Retarget points future Acquire calls (on an empty pool) at a new path.
// Existing pooled handles are not touched by this alone; callers should
// Drain first when the underlying file is being replaced.
func (p *Pool) Retarget(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.path = path
}
