package storage

import (
	"context"

	"whale-copy-lab/internal/domain"
)

// WhaleStore provides access to whales storage.
type WhaleStore interface {
	// Insert adds a new whale. Returns ErrDuplicateKey if the address exists.
	Insert(ctx context.Context, w *domain.Whale) error

	// GetByID retrieves a whale by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, whaleID string) (*domain.Whale, error)

	// GetByAddress retrieves a whale by account address (case-insensitive).
	// Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Whale, error)

	// GetAll retrieves all whales, ordered by creation time ASC.
	GetAll(ctx context.Context) ([]*domain.Whale, error)

	// TouchLastActive updates the whale's last-active timestamp.
	TouchLastActive(ctx context.Context, whaleID string, ts int64) error
}

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Insert adds a new trade event. Returns ErrDuplicateKey if
	// (whale_id, tx_hash) exists.
	Insert(ctx context.Context, t *domain.TradeEvent) error

	// GetByWhale retrieves all trades for a whale, ordered by time ASC, id ASC.
	GetByWhale(ctx context.Context, whaleID string) ([]*domain.TradeEvent, error)

	// GetByWhaleRange retrieves trades for a whale within [start, end] (inclusive, ms),
	// ordered by time ASC, id ASC.
	GetByWhaleRange(ctx context.Context, whaleID string, start, end int64) ([]*domain.TradeEvent, error)

	// EntryNotionals retrieves the absolute USD notionals of all entry-direction
	// trades for a whale, ordered by time ASC. Used for sizing heuristics.
	EntryNotionals(ctx context.Context, whaleID string) ([]float64, error)
}

// BacktestRunStore provides access to backtest_runs storage.
type BacktestRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if the run ID exists.
	Insert(ctx context.Context, r *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetByWhale retrieves all runs for a whale, newest first.
	GetByWhale(ctx context.Context, whaleID string) ([]*domain.BacktestRun, error)
}

// CheckpointStore provides access to ingestion_checkpoints storage.
type CheckpointStore interface {
	// Get retrieves the checkpoint for a whale. Returns ErrNotFound if not exists.
	Get(ctx context.Context, whaleID string) (*domain.IngestionCheckpoint, error)

	// Upsert writes the checkpoint for a whale, creating or overwriting it.
	Upsert(ctx context.Context, c *domain.IngestionCheckpoint) error
}

// WalletMetricsStore provides access to wallet_metrics storage.
type WalletMetricsStore interface {
	// Get retrieves current metrics for a whale. Returns ErrNotFound if not exists.
	Get(ctx context.Context, whaleID string) (*domain.WalletMetrics, error)

	// Upsert writes metrics for a whale, creating or overwriting the row.
	Upsert(ctx context.Context, m *domain.WalletMetrics) error
}

// PriceHistoryStore provides access to price_history storage.
type PriceHistoryStore interface {
	// UpsertBulk writes price points, overwriting duplicates on (asset, time).
	// Safe to call repeatedly with overlapping ranges.
	UpsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetRange retrieves points for an asset within [start, end] (inclusive, ms),
	// ordered by time ASC.
	GetRange(ctx context.Context, asset string, start, end int64) ([]*domain.PricePoint, error)
}
