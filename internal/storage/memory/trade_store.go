package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	data   []*domain.TradeEvent
	seen   map[string]struct{} // (whale_id, tx_hash) dedupe set
	nextID int64
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		seen:   make(map[string]struct{}),
		nextID: 1,
	}
}

// tradeKey generates the dedupe key for a trade.
func tradeKey(whaleID, txHash string) string {
	return fmt.Sprintf("%s|%s", whaleID, txHash)
}

// Insert adds a new trade event and assigns its ID.
// Returns ErrDuplicateKey if (whale_id, tx_hash) exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.TradeEvent) error {
	if t == nil || t.WhaleID == "" || t.TxHash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tradeKey(t.WhaleID, t.TxHash)
	if _, exists := s.seen[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.seen[key] = struct{}{}

	tradeCopy := *t
	tradeCopy.ID = s.nextID
	s.nextID++
	s.data = append(s.data, &tradeCopy)

	t.ID = tradeCopy.ID
	return nil
}

// GetByWhale retrieves all trades for a whale, ordered by time ASC, id ASC.
func (s *TradeStore) GetByWhale(_ context.Context, whaleID string) ([]*domain.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeEvent
	for _, t := range s.data {
		if t.WhaleID == whaleID {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}

	sortTrades(result)
	return result, nil
}

// GetByWhaleRange retrieves trades for a whale within [start, end] (inclusive).
func (s *TradeStore) GetByWhaleRange(_ context.Context, whaleID string, start, end int64) ([]*domain.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeEvent
	for _, t := range s.data {
		if t.WhaleID == whaleID && t.Time >= start && t.Time <= end {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}

	sortTrades(result)
	return result, nil
}

// EntryNotionals retrieves absolute USD notionals of entry-direction trades,
// ordered by time ASC.
func (s *TradeStore) EntryNotionals(_ context.Context, whaleID string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*domain.TradeEvent
	for _, t := range s.data {
		if t.WhaleID == whaleID && t.Direction.IsEntry() {
			entries = append(entries, t)
		}
	}
	sortTrades(entries)

	result := make([]float64, len(entries))
	for i, t := range entries {
		result[i] = t.ValueUSD
	}
	return result, nil
}

// sortTrades orders by time ASC, id ASC.
func sortTrades(trades []*domain.TradeEvent) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].Time != trades[j].Time {
			return trades[i].Time < trades[j].Time
		}
		return trades[i].ID < trades[j].ID
	})
}

// Verify interface compliance at compile time.
var _ storage.TradeStore = (*TradeStore)(nil)
