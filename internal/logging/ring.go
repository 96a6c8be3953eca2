package logging

import "sync"

// ring is a fixed-capacity buffer of formatted log lines, oldest evicted
// first. It backs Logger.Tail for the /logtail command.
type ring struct {
	mu    sync.Mutex
	lines []string
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{lines: make([]string, capacity)}
}

func (r *ring) append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < len(r.lines) {
		r.lines[(r.start+r.size)%len(r.lines)] = line
		r.size++
		return
	}
	r.lines[r.start] = line
	r.start = (r.start + 1) % len(r.lines)
}

func (r *ring) tail(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n > r.size {
		n = r.size
	}
	out := make([]string, 0, n)
	for i := r.size - n; i < r.size; i++ {
		out = append(out, r.lines[(r.start+i)%len(r.lines)])
	}
	return out
}
