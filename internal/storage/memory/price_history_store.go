package memory

import (
	"context"
	"sort"
	"sync"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu   sync.RWMutex
	data map[string]map[int64]float64 // asset -> time -> price
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{
		data: make(map[string]map[int64]float64),
	}
}

// UpsertBulk writes price points, overwriting duplicates on (asset, time).
func (s *PriceHistoryStore) UpsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || p.Asset == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		series, ok := s.data[p.Asset]
		if !ok {
			series = make(map[int64]float64)
			s.data[p.Asset] = series
		}
		series[p.Time] = p.PriceUSD
	}
	return nil
}

// GetRange retrieves points for an asset within [start, end] (inclusive),
// ordered by time ASC.
func (s *PriceHistoryStore) GetRange(_ context.Context, asset string, start, end int64) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for ts, price := range s.data[asset] {
		if ts >= start && ts <= end {
			result = append(result, &domain.PricePoint{Asset: asset, Time: ts, PriceUSD: price})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time < result[j].Time
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)
