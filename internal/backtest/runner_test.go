package backtest

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
	"whale-copy-lab/internal/storage/memory"
)

type runnerFixture struct {
	whales *memory.WhaleStore
	trades *memory.TradeStore
	runs   *memory.BacktestRunStore
	prices *memory.PriceHistoryStore
	runner *Runner
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		whales: memory.NewWhaleStore(),
		trades: memory.NewTradeStore(),
		runs:   memory.NewBacktestRunStore(),
		prices: memory.NewPriceHistoryStore(),
	}
	f.runner = NewRunner(RunnerOptions{
		WhaleStore: f.whales,
		TradeStore: f.trades,
		RunStore:   f.runs,
		PriceStore: f.prices,
		Logger:     log.New(io.Discard, "", 0),
	})
	return f
}

func (f *runnerFixture) seedWhale(t *testing.T, id string) {
	t.Helper()
	err := f.whales.Insert(context.Background(), &domain.Whale{
		ID:        id,
		Address:   "0xabc" + id,
		CreatedAt: 1,
	})
	if err != nil {
		t.Fatalf("Insert whale failed: %v", err)
	}
}

func (f *runnerFixture) seedTrade(t *testing.T, tr *domain.TradeEvent) {
	t.Helper()
	if err := f.trades.Insert(context.Background(), tr); err != nil {
		t.Fatalf("Insert trade failed: %v", err)
	}
}

func TestRunner_PersistsRunRecord(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()
	f.seedWhale(t, "w1")
	f.seedTrade(t, &domain.TradeEvent{
		WhaleID: "w1", Time: 60_000, Asset: "BTC",
		Direction: domain.DirectionLong, BaseQty: 1.0, ValueUSD: 100_000, TxHash: "0x1",
	})
	f.seedTrade(t, &domain.TradeEvent{
		WhaleID: "w1", Time: 120_000, Asset: "BTC",
		Direction: domain.DirectionCloseLong, BaseQty: 1.0, ValueUSD: 110_000, TxHash: "0x2",
	})

	f.runner.WithClock(func() int64 { return 999 })
	res, run, err := f.runner.Run(ctx, Request{
		WhaleID:           "w1",
		InitialDepositUSD: 10_000,
		Leverage:          1,
		PositionSizePct:   pctPtr(100),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !approxEqual(res.Summary.NetPnLUSD, 50) {
		t.Errorf("expected net pnl 50, got %f", res.Summary.NetPnLUSD)
	}
	if run.ID == "" {
		t.Error("expected a generated run id")
	}
	if run.WhaleID != "w1" || run.CreatedAt != 999 {
		t.Errorf("unexpected run record: %+v", run)
	}
	if !approxEqual(run.NetPnLUSD, 50) {
		t.Errorf("expected persisted net pnl 50, got %f", run.NetPnLUSD)
	}

	stored, err := f.runs.GetByWhale(ctx, "w1")
	if err != nil {
		t.Fatalf("GetByWhale failed: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != run.ID {
		t.Errorf("expected the run persisted, got %v", stored)
	}
}

func TestRunner_UnknownWhale(t *testing.T) {
	f := newRunnerFixture(t)

	_, _, err := f.runner.Run(context.Background(), Request{
		WhaleID:           "nonexistent",
		InitialDepositUSD: 10_000,
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRunner_RejectsNonPositiveDeposit(t *testing.T) {
	f := newRunnerFixture(t)
	f.seedWhale(t, "w1")

	_, _, err := f.runner.Run(context.Background(), Request{WhaleID: "w1"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRunner_MaxTradesKeepsMostRecent(t *testing.T) {
	f := newRunnerFixture(t)
	f.seedWhale(t, "w1")
	for i, ts := range []int64{60_000, 120_000, 180_000} {
		f.seedTrade(t, &domain.TradeEvent{
			WhaleID: "w1", Time: ts, Asset: "BTC",
			Direction: domain.DirectionLong, BaseQty: 1.0, ValueUSD: 100_000,
			TxHash: "0x" + string(rune('a'+i)),
		})
	}

	res, _, err := f.runner.Run(context.Background(), Request{
		WhaleID:           "w1",
		InitialDepositUSD: 10_000,
		Leverage:          1,
		PositionSizePct:   pctPtr(100),
		MaxTrades:         2,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Summary.TradesCopied != 2 {
		t.Errorf("expected 2 trades copied, got %d", res.Summary.TradesCopied)
	}
	if res.Summary.StartTime != 120_000 {
		t.Errorf("expected window to start at the second trade, got %d", res.Summary.StartTime)
	}
}

func TestRunner_UsesStoredPriceHistory(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()
	f.seedWhale(t, "w1")

	err := f.prices.UpsertBulk(ctx, []*domain.PricePoint{
		{Asset: "BTC", Time: 60_000, PriceUSD: 100_000},
		{Asset: "BTC", Time: 120_000, PriceUSD: 110_000},
	})
	if err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	// Zero quantities leave no implied price; only the stored series can
	// price these events.
	f.seedTrade(t, &domain.TradeEvent{
		WhaleID: "w1", Time: 60_000, Asset: "BTC",
		Direction: domain.DirectionLong, BaseQty: 0, ValueUSD: 100_000, TxHash: "0x1",
	})
	f.seedTrade(t, &domain.TradeEvent{
		WhaleID: "w1", Time: 120_000, Asset: "BTC",
		Direction: domain.DirectionCloseLong, BaseQty: 0, ValueUSD: 110_000, TxHash: "0x2",
	})

	res, _, err := f.runner.Run(ctx, Request{
		WhaleID:           "w1",
		InitialDepositUSD: 10_000,
		Leverage:          1,
		PositionSizePct:   pctPtr(100),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Summary.TradesCopied != 2 {
		t.Fatalf("expected 2 trades copied, got %d", res.Summary.TradesCopied)
	}
	if !approxEqual(res.Summary.NetPnLUSD, 50) {
		t.Errorf("expected net pnl 50 from stored marks, got %f", res.Summary.NetPnLUSD)
	}
}

// recordingBackfiller captures EnsureRange calls and can simulate failures.
type recordingBackfiller struct {
	calls map[string][2]int64
	err   error
}

func (b *recordingBackfiller) EnsureRange(_ context.Context, asset string, start, end int64) error {
	if b.calls == nil {
		b.calls = make(map[string][2]int64)
	}
	b.calls[asset] = [2]int64{start, end}
	return b.err
}

func TestRunner_BackfillsEveryTradedAsset(t *testing.T) {
	f := newRunnerFixture(t)
	f.seedWhale(t, "w1")
	f.seedTrade(t, &domain.TradeEvent{
		WhaleID: "w1", Time: 60_000, Asset: "BTC",
		Direction: domain.DirectionLong, BaseQty: 1.0, ValueUSD: 100_000, TxHash: "0x1",
	})
	f.seedTrade(t, &domain.TradeEvent{
		WhaleID: "w1", Time: 120_000, Asset: "ETH",
		Direction: domain.DirectionLong, BaseQty: 1.0, ValueUSD: 3_000, TxHash: "0x2",
	})

	bf := &recordingBackfiller{}
	f.runner.backfiller = bf

	_, _, err := f.runner.Run(context.Background(), Request{
		WhaleID:           "w1",
		InitialDepositUSD: 10_000,
		Leverage:          1,
		PositionSizePct:   pctPtr(100),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(bf.calls) != 2 {
		t.Fatalf("expected backfill for 2 assets, got %v", bf.calls)
	}
	// One minute of lead before the first event of each asset.
	if got := bf.calls["BTC"]; got != [2]int64{0, 60_000} {
		t.Errorf("unexpected BTC range: %v", got)
	}
	if got := bf.calls["ETH"]; got != [2]int64{60_000, 120_000} {
		t.Errorf("unexpected ETH range: %v", got)
	}
}

func TestRunner_BackfillFailureIsNotFatal(t *testing.T) {
	f := newRunnerFixture(t)
	f.seedWhale(t, "w1")
	f.seedTrade(t, &domain.TradeEvent{
		WhaleID: "w1", Time: 60_000, Asset: "BTC",
		Direction: domain.DirectionLong, BaseQty: 1.0, ValueUSD: 100_000, TxHash: "0x1",
	})

	f.runner.backfiller = &recordingBackfiller{err: errors.New("upstream down")}

	res, _, err := f.runner.Run(context.Background(), Request{
		WhaleID:           "w1",
		InitialDepositUSD: 10_000,
		Leverage:          1,
		PositionSizePct:   pctPtr(100),
	})
	if err != nil {
		t.Fatalf("Run should survive backfill failure: %v", err)
	}
	// Trade-implied prices still let the replay proceed.
	if res.Summary.TradesCopied != 1 {
		t.Errorf("expected 1 trade copied, got %d", res.Summary.TradesCopied)
	}
}
