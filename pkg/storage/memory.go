package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps artifacts in process memory.
// It is safe for concurrent use by multiple goroutines.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts *Artifacts
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save replaces the stored artifacts.
func (s *MemoryStore) Save(ctx context.Context, a Artifacts) error {
	if err := a.Validate(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts = &a
	return nil
}

// Load returns the stored artifacts, if any.
func (s *MemoryStore) Load(ctx context.Context) (Artifacts, bool, error) {
	select {
	case <-ctx.Done():
		return Artifacts{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.artifacts == nil {
		return Artifacts{}, false, nil
	}
	return *s.artifacts, true, nil
}

// Reset removes the stored artifacts.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = nil
}
