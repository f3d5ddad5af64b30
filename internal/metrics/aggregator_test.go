package metrics

import (
	"context"
	"errors"
	"testing"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/exchange"
	"whale-copy-lab/internal/storage/memory"
)

type stubAccountSource struct {
	state *exchange.AccountState
	err   error
}

func (s *stubAccountSource) AccountState(_ context.Context, _ string) (*exchange.AccountState, error) {
	return s.state, s.err
}

func TestWalletAggregator_Recompute(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewTradeStore()
	metrics := memory.NewWalletMetricsStore()

	now := int64(1_700_000_000_000)
	pnl := 42.0
	events := []*domain.TradeEvent{
		{WhaleID: "w1", Time: now - 1000, Asset: "BTC", Direction: domain.DirectionLong, ValueUSD: 500, TxHash: "h1"},
		{WhaleID: "w1", Time: now - 500, Asset: "BTC", Direction: domain.DirectionCloseLong, ValueUSD: 510, PnLUSD: &pnl, TxHash: "h2"},
	}
	for _, e := range events {
		if err := trades.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	source := &stubAccountSource{state: &exchange.AccountState{
		AccountValueUSD:    2000,
		TotalMarginUsedUSD: 1000,
		Positions:          []exchange.AccountPosition{{Asset: "ETH", SignedSize: 1, UnrealizedPnL: 15}},
	}}

	agg := NewWalletAggregator(trades, metrics, source)
	whale := &domain.Whale{ID: "w1", Address: "0xabc"}

	m, err := agg.Recompute(ctx, whale, now)
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if m.RealizedPnLUSD != 42.0 {
		t.Errorf("Expected realized 42, got %f", m.RealizedPnLUSD)
	}
	if m.Volume30dUSD != 1010.0 {
		t.Errorf("Expected 30d volume 1010, got %f", m.Volume30dUSD)
	}
	if m.AccountValueUSD != 2000 {
		t.Errorf("Expected account value 2000, got %f", m.AccountValueUSD)
	}
	if m.UnrealizedPnLUSD != 15 {
		t.Errorf("Expected unrealized 15, got %f", m.UnrealizedPnLUSD)
	}

	stored, err := metrics.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.AccountValueUSD != 2000 {
		t.Errorf("Stored snapshot mismatch: %+v", stored)
	}
}

func TestWalletAggregator_AccountFetchFailureNotFatal(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewTradeStore()
	metrics := memory.NewWalletMetricsStore()

	pnl := -10.0
	if err := trades.Insert(ctx, &domain.TradeEvent{
		WhaleID: "w1", Time: 1000, Asset: "BTC",
		Direction: domain.DirectionCloseShort, ValueUSD: 100, PnLUSD: &pnl, TxHash: "h1",
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	source := &stubAccountSource{err: errors.New("info endpoint down")}
	agg := NewWalletAggregator(trades, metrics, source)

	m, err := agg.Recompute(ctx, &domain.Whale{ID: "w1", Address: "0xabc"}, 2_000_000)
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if m.RealizedPnLUSD != -10.0 {
		t.Errorf("Expected realized -10, got %f", m.RealizedPnLUSD)
	}
	if m.AccountValueUSD != 0 {
		t.Errorf("Expected zero account value on fetch failure, got %f", m.AccountValueUSD)
	}
	if m.WinRatePercent == nil || *m.WinRatePercent != 0.0 {
		t.Errorf("Expected win rate 0, got %v", m.WinRatePercent)
	}
}

func TestWalletAggregator_NilAccountSource(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewTradeStore()
	metrics := memory.NewWalletMetricsStore()

	agg := NewWalletAggregator(trades, metrics, nil)
	m, err := agg.Recompute(ctx, &domain.Whale{ID: "w1", Address: "0xabc"}, 1000)
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if m.Trades30d != 0 || m.AccountValueUSD != 0 {
		t.Errorf("Expected empty snapshot, got %+v", m)
	}
}
