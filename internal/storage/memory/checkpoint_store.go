package memory

import (
	"context"
	"sync"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.IngestionCheckpoint // keyed by whale ID
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		data: make(map[string]*domain.IngestionCheckpoint),
	}
}

// Get retrieves the checkpoint for a whale. Returns ErrNotFound if not exists.
func (s *CheckpointStore) Get(_ context.Context, whaleID string) (*domain.IngestionCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[whaleID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	checkpointCopy := *c
	return &checkpointCopy, nil
}

// Upsert writes the checkpoint for a whale, creating or overwriting it.
func (s *CheckpointStore) Upsert(_ context.Context, c *domain.IngestionCheckpoint) error {
	if c == nil || c.WhaleID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	checkpointCopy := *c
	s.data[c.WhaleID] = &checkpointCopy
	return nil
}

// Verify interface compliance at compile time.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)
