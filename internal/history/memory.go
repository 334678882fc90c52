package history

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. It is the default driver and
// matches the single-session shape of the tool: history disappears with the
// process.
type MemoryStore struct {
	mu      sync.RWMutex
	limit   int
	entries []*Entry // newest first
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryStore{limit: limit}
}

func (s *MemoryStore) Put(_ context.Context, entry *Entry) error {
	if entry == nil {
		return nil
	}
	row := normalizeEntry(entry)
	entry.ID = row.ID
	entry.LoadedAt = row.LoadedAt

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append([]*Entry{row}, s.entries...)
	if len(s.entries) > s.limit {
		s.entries = s.entries[:s.limit]
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.entries {
		if row.ID == id {
			out := *row
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]*Entry, 0, limit)
	for _, row := range s.entries[:limit] {
		summary := *row
		summary.Document = ""
		out = append(out, &summary)
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
