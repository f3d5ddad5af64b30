package memory

import (
	"context"
	"sync"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

// WalletMetricsStore is an in-memory implementation of storage.WalletMetricsStore.
type WalletMetricsStore struct {
	mu   sync.RWMutex
	data map[string]*domain.WalletMetrics // keyed by whale ID
}

// NewWalletMetricsStore creates a new in-memory wallet metrics store.
func NewWalletMetricsStore() *WalletMetricsStore {
	return &WalletMetricsStore{
		data: make(map[string]*domain.WalletMetrics),
	}
}

// Get retrieves current metrics for a whale. Returns ErrNotFound if not exists.
func (s *WalletMetricsStore) Get(_ context.Context, whaleID string) (*domain.WalletMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.data[whaleID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	metricsCopy := *m
	return &metricsCopy, nil
}

// Upsert writes metrics for a whale, creating or overwriting the row.
func (s *WalletMetricsStore) Upsert(_ context.Context, m *domain.WalletMetrics) error {
	if m == nil || m.WhaleID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	metricsCopy := *m
	s.data[m.WhaleID] = &metricsCopy
	return nil
}

// Verify interface compliance at compile time.
var _ storage.WalletMetricsStore = (*WalletMetricsStore)(nil)
