package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// InMemoryRunStore implements RunStore for testing and dry runs.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs []Run
	ids  map[string]bool
}

// NewInMemoryRunStore creates an empty in-memory store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{ids: make(map[string]bool)}
}

// RecordRun implements RunStore.
func (s *InMemoryRunStore) RecordRun(ctx context.Context, r Run) (string, error) {
	r = prepare(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[r.ID] {
		return "", fmt.Errorf("run %s already recorded", r.ID)
	}
	s.ids[r.ID] = true
	s.runs = append(s.runs, r)
	return r.ID, nil
}

// ListRuns implements RunStore.
func (s *InMemoryRunStore) ListRuns(ctx context.Context, f Filter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Run
	for _, r := range s.runs {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Run) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Close implements RunStore.
func (s *InMemoryRunStore) Close() error { return nil }
