package sequence

import (
	"context"
	"sync"

	"labcert/internal/document/models"
)

type counterKey struct {
	kind models.Kind
	year int
}

// InMemoryCounterStore keeps counters behind a mutex. Correct within a
// single process only; deployments spanning instances must use the
// postgres store.
type InMemoryCounterStore struct {
	mu       sync.Mutex
	counters map[counterKey]int64
}

// NewInMemoryCounterStore creates an empty in-memory counter store.
func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{counters: make(map[counterKey]int64)}
}

// Next atomically increments and returns the (kind, year) counter.
func (s *InMemoryCounterStore) Next(_ context.Context, kind models.Kind, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := counterKey{kind: kind, year: year}
	s.counters[key]++
	return s.counters[key], nil
}

// Peek returns the last issued value without advancing. Test helper.
func (s *InMemoryCounterStore) Peek(kind models.Kind, year int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[counterKey{kind: kind, year: year}]
}

// Set pins a counter to a value. Test helper for exhaustion scenarios.
func (s *InMemoryCounterStore) Set(kind models.Kind, year int, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[counterKey{kind: kind, year: year}] = value
}
