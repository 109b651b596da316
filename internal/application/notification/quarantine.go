package notification

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Quarantine records failures swallowed at the materializer boundary. They
// are counted per event name and written to a logger kept apart from the
// operational log, so lost notifications stay visible.
type Quarantine struct {
	mu     sync.Mutex
	counts map[string]int64
	logger *slog.Logger
}

// NewQuarantine uses logger, or a JSON logger on stderr tagged log=quarantine when nil.
func NewQuarantine(logger *slog.Logger) *Quarantine {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("log", "quarantine")
	}
	return &Quarantine{counts: make(map[string]int64), logger: logger}
}

// Record counts and logs one swallowed failure. The payload is dumped only
// when the error concerns invite fields.
func (q *Quarantine) Record(eventName string, err error, payload map[string]any, stack []byte) {
	q.mu.Lock()
	q.counts[eventName]++
	q.mu.Unlock()

	attrs := []any{"event", eventName, "err", err.Error()}
	if len(stack) > 0 {
		attrs = append(attrs, "stack", string(stack))
	}
	if strings.Contains(strings.ToLower(err.Error()), "invite") {
		attrs = append(attrs, "payload", payload)
	}
	q.logger.Error("notification materialization failed", attrs...)
}

// Snapshot returns a copy of the per-event failure counts.
func (q *Quarantine) Snapshot() map[string]int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int64, len(q.counts))
	for k, v := range q.counts {
		out[k] = v
	}
	return out
}

// Total returns the number of failures recorded since start.
func (q *Quarantine) Total() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, v := range q.counts {
		n += v
	}
	return n
}
