package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

// WhaleStore is an in-memory implementation of storage.WhaleStore.
type WhaleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Whale // keyed by whale ID
}

// NewWhaleStore creates a new in-memory whale store.
func NewWhaleStore() *WhaleStore {
	return &WhaleStore{
		data: make(map[string]*domain.Whale),
	}
}

// Insert adds a new whale. Returns ErrDuplicateKey if the ID or address exists.
func (s *WhaleStore) Insert(_ context.Context, w *domain.Whale) error {
	if w == nil || w.ID == "" || w.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[w.ID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, existing := range s.data {
		if strings.EqualFold(existing.Address, w.Address) {
			return storage.ErrDuplicateKey
		}
	}

	// Store a copy to prevent external mutation
	whaleCopy := *w
	s.data[w.ID] = &whaleCopy
	return nil
}

// GetByID retrieves a whale by its ID. Returns ErrNotFound if not exists.
func (s *WhaleStore) GetByID(_ context.Context, whaleID string) (*domain.Whale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.data[whaleID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	whaleCopy := *w
	return &whaleCopy, nil
}

// GetByAddress retrieves a whale by account address (case-insensitive).
func (s *WhaleStore) GetByAddress(_ context.Context, address string) (*domain.Whale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, w := range s.data {
		if strings.EqualFold(w.Address, address) {
			whaleCopy := *w
			return &whaleCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetAll retrieves all whales, ordered by creation time ASC.
func (s *WhaleStore) GetAll(_ context.Context) ([]*domain.Whale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Whale, 0, len(s.data))
	for _, w := range s.data {
		whaleCopy := *w
		result = append(result, &whaleCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// TouchLastActive updates the whale's last-active timestamp.
func (s *WhaleStore) TouchLastActive(_ context.Context, whaleID string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.data[whaleID]
	if !exists {
		return storage.ErrNotFound
	}
	w.LastActiveAt = &ts
	return nil
}

// Verify interface compliance at compile time.
var _ storage.WhaleStore = (*WhaleStore)(nil)
