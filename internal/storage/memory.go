package storage

import (
	"context"
	"slices"
	"sync"

	"fintrack/internal/core"
)

// MemoryRepository keeps snapshots in process. Loads and saves copy, so
// callers never share state with the store.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*core.Snapshot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*core.Snapshot)}
}

func (r *MemoryRepository) Load(_ context.Context, userID string) (*core.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, userID string, s *core.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = s.Clone()
	return nil
}

func (r *MemoryRepository) Users(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
