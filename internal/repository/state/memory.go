package state

import (
	"context"
	"sync"
)

// MemoryStore keeps values in a map.
type MemoryStore struct {
	mu     sync.Mutex
	values map[Key]string
}

// NewMemoryStore creates a store pre-filled with initial values.
func NewMemoryStore(initial map[Key]string) *MemoryStore {
	values := make(map[Key]string, len(initial))
	for key, value := range initial {
		values[key] = value
	}

	return &MemoryStore{values: values}
}

// Get returns the value of key.
func (s *MemoryStore) Get(_ context.Context, key Key) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[key]

	return value, ok, nil
}

// Set replaces the value of key.
func (s *MemoryStore) Set(_ context.Context, key Key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	return nil
}
