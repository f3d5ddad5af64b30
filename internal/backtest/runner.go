package backtest

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/pricing"
	"whale-copy-lab/internal/storage"
)

// Backfiller fills gaps in stored price history before a run reads it.
type Backfiller interface {
	// EnsureRange makes candles for [start, end] (ms, inclusive) available
	// for the asset, fetching missing ranges from the upstream source.
	EnsureRange(ctx context.Context, asset string, start, end int64) error
}

// Request parameterizes one runner invocation.
type Request struct {
	WhaleID           string
	InitialDepositUSD float64
	Leverage          float64
	PositionSizePct   *float64 // percent; nil = recommended sizing
	FeeBps            float64
	SlippageBps       float64
	Assets            []string // allow-list; empty = all
	StartTime         int64    // ms inclusive; 0 = from the first stored trade
	EndTime           int64    // ms inclusive; 0 = through the last stored trade
	MaxTrades         int      // keep only the most recent N events; 0 = no cap
}

// Runner loads a whale's stored trades and price history, runs the
// simulator, and persists the resulting run record.
type Runner struct {
	whaleStore storage.WhaleStore
	tradeStore storage.TradeStore
	runStore   storage.BacktestRunStore
	priceStore storage.PriceHistoryStore
	backfiller Backfiller
	logger     *log.Logger
	now        func() int64 // Injectable clock for deterministic run records
	newID      func() string
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	WhaleStore storage.WhaleStore
	TradeStore storage.TradeStore
	RunStore   storage.BacktestRunStore // optional; nil skips persistence
	PriceStore storage.PriceHistoryStore
	Backfiller Backfiller  // optional; nil runs on stored history only
	Logger     *log.Logger // optional
}

// NewRunner creates a backtest runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[backtest] ", log.LstdFlags)
	}
	return &Runner{
		whaleStore: opts.WhaleStore,
		tradeStore: opts.TradeStore,
		runStore:   opts.RunStore,
		priceStore: opts.PriceStore,
		backfiller: opts.Backfiller,
		logger:     logger,
		now:        func() int64 { return time.Now().UnixMilli() },
		newID:      uuid.NewString,
	}
}

// WithClock sets a custom clock function for deterministic run records.
func (r *Runner) WithClock(now func() int64) *Runner {
	r.now = now
	return r
}

// Run executes a full backtest for one whale.
// Steps:
//  1. Load the whale
//  2. Load trades for the requested window
//  3. Load entry notionals for recommended sizing
//  4. Preload price history per traded asset, backfilling gaps when wired
//  5. Run the simulator
//  6. Persist the run record
func (r *Runner) Run(ctx context.Context, req Request) (*Result, *domain.BacktestRun, error) {
	if req.InitialDepositUSD <= 0 {
		return nil, nil, fmt.Errorf("%w: initial deposit must be positive", storage.ErrInvalidInput)
	}

	// 1. Load the whale
	whale, err := r.whaleStore.GetByID(ctx, req.WhaleID)
	if err != nil {
		return nil, nil, err // propagates storage.ErrNotFound
	}

	// 2. Load trades for the requested window
	endTime := req.EndTime
	if endTime <= 0 {
		endTime = math.MaxInt64
	}
	events, err := r.tradeStore.GetByWhaleRange(ctx, whale.ID, req.StartTime, endTime)
	if err != nil {
		return nil, nil, fmt.Errorf("load trades for %s: %w", whale.ID, err)
	}
	if req.MaxTrades > 0 && len(events) > req.MaxTrades {
		r.logger.Printf("whale %s: truncating %d events to the most recent %d", whale.ID, len(events), req.MaxTrades)
		events = events[len(events)-req.MaxTrades:]
	}

	// 3. Load entry notionals for recommended sizing. The heuristic anchors
	// on the whale's full history, not just the requested window.
	entrySizes, err := r.tradeStore.EntryNotionals(ctx, whale.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load entry notionals for %s: %w", whale.ID, err)
	}

	// 4. Preload price history per traded asset
	resolver, err := r.loadPrices(ctx, events)
	if err != nil {
		return nil, nil, err
	}

	// 5. Run the simulator
	result := NewSimulator(resolver).Run(events, Config{
		InitialDepositUSD: req.InitialDepositUSD,
		Leverage:          req.Leverage,
		PositionSizePct:   req.PositionSizePct,
		FeeBps:            req.FeeBps,
		SlippageBps:       req.SlippageBps,
		Assets:            req.Assets,
		EntrySizesUSD:     entrySizes,
	})

	// 6. Persist the run record
	run := result.Run(r.newID(), whale.ID, r.now(), req.PositionSizePct, req.Assets)
	if r.runStore != nil {
		if err := r.runStore.Insert(ctx, run); err != nil {
			return nil, nil, fmt.Errorf("persist run %s: %w", run.ID, err)
		}
	}

	return result, run, nil
}

// loadPrices builds a resolver over stored price history covering the span
// of the given events. Assets without stored history fall back to
// trade-implied prices inside the simulator.
func (r *Runner) loadPrices(ctx context.Context, events []*domain.TradeEvent) (*pricing.Resolver, error) {
	resolver := pricing.NewResolver()
	if r.priceStore == nil || len(events) == 0 {
		return resolver, nil
	}

	type span struct{ first, last int64 }
	spans := make(map[string]*span)
	for _, ev := range events {
		if ev.Asset == "" {
			continue
		}
		sp, ok := spans[ev.Asset]
		if !ok {
			spans[ev.Asset] = &span{first: ev.Time, last: ev.Time}
			continue
		}
		if ev.Time < sp.first {
			sp.first = ev.Time
		}
		if ev.Time > sp.last {
			sp.last = ev.Time
		}
	}

	for asset, sp := range spans {
		// One extra minute before the first event so the opening equity
		// steps have a mark to resolve against.
		start := truncateMinute(sp.first) - minuteMs
		if r.backfiller != nil {
			if err := r.backfiller.EnsureRange(ctx, asset, start, sp.last); err != nil {
				r.logger.Printf("backfill %s: %v (continuing with stored history)", asset, err)
			}
		}
		points, err := r.priceStore.GetRange(ctx, asset, start, sp.last)
		if err != nil {
			return nil, fmt.Errorf("load price history for %s: %w", asset, err)
		}
		if len(points) > 0 {
			resolver.Load(asset, points)
		}
	}
	return resolver, nil
}
