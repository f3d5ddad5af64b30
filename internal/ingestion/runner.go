package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/exchange"
	"whale-copy-lab/internal/metrics"
	"whale-copy-lab/internal/storage"
)

// DefaultPollInterval is how often every tracked whale is polled for fills.
const DefaultPollInterval = 5 * time.Minute

// HistorySource optionally provides deep fill history, paginated past the
// venue's single-response cap. Used on a whale's first sync.
type HistorySource interface {
	UserFillsHistory(ctx context.Context, address string) ([]exchange.Fill, error)
}

// Runner polls tracked whales for new fills, normalizes them into trade
// events, and keeps per-whale checkpoints and wallet metrics current.
type Runner struct {
	whaleStore  storage.WhaleStore
	tradeStore  storage.TradeStore
	checkpoints storage.CheckpointStore
	fills       exchange.FillSource
	history     HistorySource
	aggregator  *metrics.WalletAggregator

	pollInterval time.Duration
	logger       *log.Logger
	now          func() int64
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	WhaleStore  storage.WhaleStore
	TradeStore  storage.TradeStore
	Checkpoints storage.CheckpointStore
	Fills       exchange.FillSource

	// History is consulted for a whale's first sync; nil falls back to a
	// plain fill fetch.
	History HistorySource

	// Aggregator, when set, recomputes wallet metrics after each whale's
	// cycle.
	Aggregator *metrics.WalletAggregator

	PollInterval time.Duration
	Logger       *log.Logger
}

// NewRunner creates an ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[ingest] ", log.LstdFlags)
	}

	return &Runner{
		whaleStore:   opts.WhaleStore,
		tradeStore:   opts.TradeStore,
		checkpoints:  opts.Checkpoints,
		fills:        opts.Fills,
		history:      opts.History,
		aggregator:   opts.Aggregator,
		pollInterval: pollInterval,
		logger:       logger,
		now:          func() int64 { return time.Now().UnixMilli() },
	}
}

// Run polls until the context is cancelled. The first cycle runs
// immediately; later cycles follow the poll interval.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("ingestion started, poll interval %s", r.pollInterval)

	if err := r.ProcessAll(ctx); err != nil {
		r.logger.Printf("ingestion cycle: %v", err)
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Printf("ingestion stopped: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := r.ProcessAll(ctx); err != nil {
				r.logger.Printf("ingestion cycle: %v", err)
			}
		}
	}
}

// ProcessAll runs one ingestion cycle over every tracked whale. A failing
// whale is logged and skipped so one bad address never stalls the rest.
func (r *Runner) ProcessAll(ctx context.Context) error {
	whales, err := r.whaleStore.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("list whales: %w", err)
	}

	for _, whale := range whales {
		inserted, err := r.ProcessWhale(ctx, whale)
		if err != nil {
			r.logger.Printf("whale %s (%s): %v", whale.ID, whale.Address, err)
			continue
		}
		if inserted > 0 {
			r.logger.Printf("whale %s: ingested %d fills", whale.ID, inserted)
		}
	}
	return nil
}

// ProcessWhale syncs one whale: fetch fills past its checkpoint (or deep
// history on first sync), ingest them, then refresh wallet metrics. Returns
// the number of newly stored trade events.
func (r *Runner) ProcessWhale(ctx context.Context, whale *domain.Whale) (int, error) {
	checkpoint, err := r.checkpoints.Get(ctx, whale.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}

	var fills []exchange.Fill
	if checkpoint == nil {
		// First sync walks as deep as the source allows.
		if r.history != nil {
			fills, err = r.history.UserFillsHistory(ctx, whale.Address)
		} else {
			fills, err = r.fills.UserFills(ctx, whale.Address, 0)
		}
	} else {
		// The checkpoint holds the newest stored fill time; the venue's
		// startTime is inclusive.
		fills, err = r.fills.UserFills(ctx, whale.Address, checkpoint.LastFillTime+1)
	}
	if err != nil {
		return 0, fmt.Errorf("fetch fills: %w", err)
	}

	inserted, err := r.ProcessFills(ctx, whale, fills)
	if err != nil {
		return inserted, err
	}

	if r.aggregator != nil {
		if _, err := r.aggregator.Recompute(ctx, whale, r.now()); err != nil {
			r.logger.Printf("whale %s: recompute metrics: %v", whale.ID, err)
		}
	}
	return inserted, nil
}

// ProcessFills ingests a batch of fills for one whale: normalize, insert with
// duplicate suppression, advance the checkpoint and the whale's last-active
// mark. The WS fast path feeds the same method the poller uses.
func (r *Runner) ProcessFills(ctx context.Context, whale *domain.Whale, fills []exchange.Fill) (int, error) {
	if len(fills) == 0 {
		return 0, nil
	}

	var inserted int
	var maxTime int64
	for i := range fills {
		fill := &fills[i]
		if fill.Time > maxTime {
			maxTime = fill.Time
		}
		if fill.Time <= 0 || fill.Asset == "" || fill.ID() == "" {
			continue
		}

		event := FillToTradeEvent(whale.ID, fill)
		if err := r.tradeStore.Insert(ctx, event); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			return inserted, fmt.Errorf("store trade %s: %w", event.TxHash, err)
		}
		inserted++
	}

	if maxTime > 0 {
		cp := &domain.IngestionCheckpoint{
			WhaleID:      whale.ID,
			LastFillTime: maxTime,
			UpdatedAt:    r.now(),
		}
		if err := r.checkpoints.Upsert(ctx, cp); err != nil {
			return inserted, fmt.Errorf("advance checkpoint: %w", err)
		}
		if err := r.whaleStore.TouchLastActive(ctx, whale.ID, maxTime); err != nil {
			return inserted, fmt.Errorf("touch last active: %w", err)
		}
	}
	return inserted, nil
}
