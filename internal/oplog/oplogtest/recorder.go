// Package oplogtest provides an in-memory operation log recorder for tests.
package oplogtest

import (
	"context"
	"sync"

	"buildinghub_backend/internal/oplog"
)

// Recorder keeps every recorded entry in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []oplog.Entry
}

func (r *Recorder) Record(_ context.Context, entry oplog.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []oplog.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]oplog.Entry(nil), r.entries...)
}

// ByAction returns the entries recorded under action.
func (r *Recorder) ByAction(action string) []oplog.Entry {
	var out []oplog.Entry
	for _, e := range r.Entries() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
