package mcpclient

import (
	"bytes"
	"strings"
	"sync"
)

const (
	defaultStderrLines = 200
	traceStderrLines   = 20
	maxPartialLine     = 4096
)

// stderrTail keeps the last lines a child process wrote to stderr. It is an
// io.Writer so it can be attached to exec.Cmd directly.
type stderrTail struct {
	mu      sync.Mutex
	lines   []string
	next    int
	count   int
	partial []byte
}

func newStderrTail(size int) *stderrTail {
	if size <= 0 {
		size = defaultStderrLines
	}
	return &stderrTail{lines: make([]string, size)}
}

func (r *stderrTail) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.partial = append(r.partial, p...)
	for {
		i := bytes.IndexByte(r.partial, '\n')
		if i < 0 {
			break
		}
		r.add(strings.TrimRight(string(r.partial[:i]), "\r"))
		r.partial = r.partial[i+1:]
	}
	if len(r.partial) > maxPartialLine {
		r.add(string(r.partial))
		r.partial = nil
	}
	return len(p), nil
}

func (r *stderrTail) add(line string) {
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// Tail returns up to n of the most recent lines, oldest first. An unfinished
// trailing line is included.
func (r *stderrTail) Tail(n int) []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := strings.TrimRight(string(r.partial), "\r")
	if n <= 0 || (r.count == 0 && pending == "") {
		return nil
	}

	full := n
	if pending != "" {
		full--
	}
	if full > r.count {
		full = r.count
	}

	start := (r.next - full + len(r.lines)) % len(r.lines)
	out := make([]string, 0, full+1)
	for i := 0; i < full; i++ {
		out = append(out, r.lines[(start+i)%len(r.lines)])
	}
	if pending != "" {
		out = append(out, pending)
	}
	return out
}
