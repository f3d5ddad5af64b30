package metrics

import (
	"context"
	"fmt"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/exchange"
	"whale-copy-lab/internal/storage"
)

// WalletAggregator recomputes per-whale wallet metrics from stored trades and
// a venue account snapshot, and persists the result.
type WalletAggregator struct {
	tradeStore   storage.TradeStore
	metricsStore storage.WalletMetricsStore
	accounts     exchange.AccountStateSource
}

// NewWalletAggregator creates a wallet metrics aggregator. accounts may be
// nil, in which case account-derived fields stay zero.
func NewWalletAggregator(tradeStore storage.TradeStore, metricsStore storage.WalletMetricsStore, accounts exchange.AccountStateSource) *WalletAggregator {
	return &WalletAggregator{
		tradeStore:   tradeStore,
		metricsStore: metricsStore,
		accounts:     accounts,
	}
}

// Recompute rebuilds the metrics snapshot for one whale as of now (unix ms)
// and upserts it. An account-state fetch failure is not fatal; trade-derived
// metrics are still stored.
func (a *WalletAggregator) Recompute(ctx context.Context, whale *domain.Whale, now int64) (*domain.WalletMetrics, error) {
	trades, err := a.tradeStore.GetByWhale(ctx, whale.ID)
	if err != nil {
		return nil, fmt.Errorf("load trades for %s: %w", whale.ID, err)
	}

	var state *exchange.AccountState
	if a.accounts != nil {
		state, err = a.accounts.AccountState(ctx, whale.Address)
		if err != nil {
			state = nil
		}
	}

	m := ComputeWalletMetrics(whale.ID, trades, state, now)
	if err := a.metricsStore.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("store metrics for %s: %w", whale.ID, err)
	}
	return m, nil
}
