package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultTail  = 200
	maxTail      = 5000
	maxLineBytes = 64 * 1024
)

// LogBuffer keeps the most recent log lines in memory so the shore station
// can fetch them over HTTP. It is handed to log.SetOutput alongside stderr.
//
// Lines live in a fixed ring indexed by a monotonic line counter; once the
// ring wraps, the overwritten lines are reported as dropped.
type LogBuffer struct {
	mu      sync.Mutex
	ring    []string
	pending string
	total   uint64
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 2000
	}
	return &LogBuffer{ring: make([]string, maxLines)}
}

// Write implements io.Writer. Chunks are split on newlines; a trailing
// fragment is held until the rest of its line arrives.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rest := p
	for {
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			b.pending += string(rest)
			break
		}
		b.push(b.pending + string(rest[:nl]))
		b.pending = ""
		rest = rest[nl+1:]
	}
	// A writer that never sends a newline must not grow the fragment
	// without bound.
	if len(b.pending) > maxLineBytes {
		b.push(b.pending)
		b.pending = ""
	}
	return len(p), nil
}

func (b *LogBuffer) push(line string) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return
	}
	b.ring[b.total%uint64(len(b.ring))] = line
	b.total++
}

// Snapshot returns up to tail of the newest lines, oldest first, plus the
// count of lines already overwritten by the ring.
func (b *LogBuffer) Snapshot(tail int) ([]string, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tail <= 0 {
		tail = defaultTail
	}
	held := b.total
	if size := uint64(len(b.ring)); held > size {
		held = size
	}
	if uint64(tail) > held {
		tail = int(held)
	}

	out := make([]string, 0, tail)
	for seq := b.total - uint64(tail); seq < b.total; seq++ {
		out = append(out, b.ring[seq%uint64(len(b.ring))])
	}
	return out, b.total - held
}

type logsResponse struct {
	NowUTC  string   `json:"now_utc"`
	Dropped uint64   `json:"dropped"`
	Lines   []string `json:"lines"`
}

func (h *handlers) handleLogs(w http.ResponseWriter, r *http.Request) {
	tail, err := tailParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lines, dropped := h.opts.Logs.Snapshot(tail)

	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if dropped > 0 {
			fmt.Fprintf(w, "# %d older lines dropped\n", dropped)
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
		return
	}

	writeJSON(w, http.StatusOK, logsResponse{
		NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
		Dropped: dropped,
		Lines:   lines,
	})
}

func tailParam(r *http.Request) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get("tail"))
	if s == "" {
		return defaultTail, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 || v > maxTail {
		return 0, fmt.Errorf("tail must be an integer in [1,%d]", maxTail)
	}
	return v, nil
}
