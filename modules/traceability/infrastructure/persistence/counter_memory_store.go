package persistence

import (
	"context"
	"strings"
	"sync"

	"github.com/mbellanger/Audits-And-Actions/modules/traceability/domain/types"
)

// CounterMemoryStore is the dev-mode counter backend. A single mutex stands
// in for the database's atomic upsert; sequences start at 1 and are never
// reused, matching the Postgres store observationally.
type CounterMemoryStore struct {
	mu        sync.Mutex
	sequences map[string]int64
}

func NewCounterMemoryStore() *CounterMemoryStore {
	return &CounterMemoryStore{sequences: make(map[string]int64)}
}

func (s *CounterMemoryStore) IncrementAndGet(_ context.Context, key string) (int64, error) {
	if strings.TrimSpace(key) == "" {
		return 0, types.NewInvalidKey("counter key must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[key]++
	return s.sequences[key], nil
}
