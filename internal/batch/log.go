package batch

import (
	"sync"

	"github.com/FranksOps/reelcheck/internal/storage"
)

// Log is the append-only result list of the current batch. It is safe for a
// reader to Snapshot while a run appends.
type Log struct {
	mu      sync.Mutex
	records []storage.CheckRecord
	running bool
}

// Snapshot returns a copy of the records in input order.
func (l *Log) Snapshot() []storage.CheckRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]storage.CheckRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records collected so far.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Running reports whether a batch is collecting into the log.
func (l *Log) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// begin marks the log busy and clears it. It fails if a run is active.
func (l *Log) begin() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return false
	}
	l.running = true
	l.records = nil
	return true
}

func (l *Log) end() {
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
}

func (l *Log) append(rec storage.CheckRecord) {
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}
