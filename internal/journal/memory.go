package journal

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryJournal is an in-memory Journal, the default with zero
// configuration, grounded on the teacher's MemoryStore/MemoryEventStore
// idiom (map + sync.RWMutex, append-only per key).
type MemoryJournal struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]Entry
}

// NewMemoryJournal returns an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: make(map[uuid.UUID][]Entry)}
}

func (j *MemoryJournal) Record(ctx context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[e.RequestID] = append(j.entries[e.RequestID], e)
	return nil
}

func (j *MemoryJournal) ForRequest(ctx context.Context, requestID uuid.UUID) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Entry, len(j.entries[requestID]))
	copy(out, j.entries[requestID])
	return out, nil
}
