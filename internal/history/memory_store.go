package history

import (
	"context"
	"sync"
)

// MemoryStore is the in-memory Store used when no database is configured.
// A single mutex guards the append-only slice; concurrent scoring requests
// from multiple analysts append safely.
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
}

// NewMemoryStore creates an empty in-memory prediction log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *rec // copy so callers can't mutate stored records
	s.records = append(s.records, &r)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	// Most recent first.
	out := make([]*Record, 0, limit)
	for i := len(s.records) - 1; i >= len(s.records)-limit; i-- {
		r := *s.records[i]
		out = append(out, &r)
	}
	return out, nil
}

func (s *MemoryStore) Summary(ctx context.Context) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summarize(s.records), nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}
