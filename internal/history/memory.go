package history

import (
	"context"
	"sync"

	"attendclient/internal/model"
)

// MemoryStore keeps lists in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	lists map[string][]model.AttendanceRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lists: make(map[string][]model.AttendanceRecord)}
}

func (s *MemoryStore) Replace(_ context.Context, key string, records []model.AttendanceRecord) error {
	cp := clone(records)
	s.mu.Lock()
	s.lists[key] = cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]model.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.lists[key]), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.lists, key)
	s.mu.Unlock()
	return nil
}
