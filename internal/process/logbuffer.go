package process

import (
	"sync"
	"time"
)

// LogEntry is one line of worker output.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Worker    string    `json:"worker"`
	Stream    string    `json:"stream"` // "stdout", "stderr" or "system"
	Line      string    `json:"line"`
}

// LogBuffer is a thread-safe ring buffer that keeps the last N worker lines
// and fans new ones out to subscribers.
type LogBuffer struct {
	mu          sync.RWMutex
	entries     []LogEntry
	maxEntries  int
	subscribers map[chan LogEntry]struct{}
}

// NewLogBuffer creates a log buffer that retains up to maxEntries lines.
func NewLogBuffer(maxEntries int) *LogBuffer {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &LogBuffer{
		entries:     make([]LogEntry, 0, maxEntries),
		maxEntries:  maxEntries,
		subscribers: make(map[chan LogEntry]struct{}),
	}
}

// Write appends a line for worker and broadcasts it.
func (lb *LogBuffer) Write(worker, stream, line string) {
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Worker:    worker,
		Stream:    stream,
		Line:      line,
	}

	lb.mu.Lock()
	if len(lb.entries) >= lb.maxEntries {
		lb.entries = lb.entries[1:]
	}
	lb.entries = append(lb.entries, entry)

	for ch := range lb.subscribers {
		select {
		case ch <- entry:
		default:
			// slow subscriber drops the line
		}
	}
	lb.mu.Unlock()
}

// Recent returns up to n of the newest entries, oldest first. An empty worker
// matches every worker.
func (lb *LogBuffer) Recent(worker string, n int) []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	var matched []LogEntry
	for i := len(lb.entries) - 1; i >= 0; i-- {
		if n > 0 && len(matched) == n {
			break
		}
		if worker == "" || lb.entries[i].Worker == worker {
			matched = append(matched, lb.entries[i])
		}
	}
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}

// Subscribe returns a channel that receives new entries as they arrive.
// Call Unsubscribe when done.
func (lb *LogBuffer) Subscribe() chan LogEntry {
	ch := make(chan LogEntry, 64)
	lb.mu.Lock()
	lb.subscribers[ch] = struct{}{}
	lb.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (lb *LogBuffer) Unsubscribe(ch chan LogEntry) {
	lb.mu.Lock()
	if _, ok := lb.subscribers[ch]; ok {
		delete(lb.subscribers, ch)
		close(ch)
	}
	lb.mu.Unlock()
}
