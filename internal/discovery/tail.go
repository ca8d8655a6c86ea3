package discovery

import (
	"strings"
	"sync"
)

// MaxTailLines is how many trailing stderr lines a Tail keeps.
const MaxTailLines = 40

const maxPartialLine = 4096

// Tail is an io.Writer that keeps only the last lines written to it. Module
// stderr is captured with it so a chatty module cannot grow memory unbounded.
type Tail struct {
	mu      sync.Mutex
	limit   int
	lines   []string
	partial string
}

// NewTail keeps up to limit lines (MaxTailLines when limit <= 0).
func NewTail(limit int) *Tail {
	if limit <= 0 {
		limit = MaxTailLines
	}
	return &Tail{limit: limit}
}

// Write implements io.Writer.
func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	chunks := strings.Split(t.partial+string(p), "\n")
	t.partial = chunks[len(chunks)-1]
	if len(t.partial) > maxPartialLine {
		t.partial = t.partial[len(t.partial)-maxPartialLine:]
	}
	for _, line := range chunks[:len(chunks)-1] {
		t.lines = append(t.lines, strings.TrimRight(line, "\r"))
		if len(t.lines) > t.limit {
			t.lines = t.lines[len(t.lines)-t.limit:]
		}
	}
	return len(p), nil
}

// String returns the retained lines, newline separated.
func (t *Tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := t.lines
	if t.partial != "" {
		lines = append(append([]string(nil), lines...), t.partial)
		if len(lines) > t.limit {
			lines = lines[len(lines)-t.limit:]
		}
	}
	return strings.Join(lines, "\n")
}
