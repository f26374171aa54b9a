package client

import (
	"sync"

	"realtime-service/internal/models"
)

// CursorStore persists the per-scope last-seen message id. It is the only
// durable client state; everything else dies with the delivery session.
// Set never regresses a cursor; Reset is the explicit exception used when a
// scope is abandoned for good.
type CursorStore interface {
	Get(scope models.Scope) (string, error)
	Set(scope models.Scope, id string) error
	Reset(scope models.Scope) error
}

// MemoryCursorStore keeps cursors in memory. Useful for tests and for
// callers who accept a cold start per process.
type MemoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]string
}

// NewMemoryCursorStore constructs an empty store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[string]string)}
}

func (s *MemoryCursorStore) Get(scope models.Scope) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[scope.StorageKey()], nil
}

func (s *MemoryCursorStore) Set(scope models.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := scope.StorageKey()
	if id > s.cursors[key] {
		s.cursors[key] = id
	}
	return nil
}

func (s *MemoryCursorStore) Reset(scope models.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, scope.StorageKey())
	return nil
}
