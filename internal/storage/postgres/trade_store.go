package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

// entryDirections mirrors domain.Direction.IsEntry for SQL filtering.
var entryDirections = []string{
	string(domain.DirectionBuy),
	string(domain.DirectionLong),
	string(domain.DirectionShort),
}

// TradeStore is a PostgreSQL implementation of storage.TradeStore.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new PostgreSQL trade store.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Insert adds a new trade event and assigns its ID.
// Returns ErrDuplicateKey if (whale_id, tx_hash) exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.TradeEvent) error {
	if t == nil || t.WhaleID == "" || t.TxHash == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (whale_id, time, asset, direction, base_qty, value_usd, pnl_usd, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		t.WhaleID, t.Time, t.Asset, t.Direction, t.BaseQty, t.ValueUSD, t.PnLUSD, t.TxHash,
	).Scan(&t.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}

	return nil
}

// GetByWhale retrieves all trades for a whale, ordered by time ASC, id ASC.
func (s *TradeStore) GetByWhale(ctx context.Context, whaleID string) ([]*domain.TradeEvent, error) {
	query := `
		SELECT id, whale_id, time, asset, direction, base_qty, value_usd, pnl_usd, tx_hash
		FROM trades
		WHERE whale_id = $1
		ORDER BY time ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, whaleID)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByWhaleRange retrieves trades for a whale within [start, end] (inclusive),
// ordered by time ASC, id ASC.
func (s *TradeStore) GetByWhaleRange(ctx context.Context, whaleID string, start, end int64) ([]*domain.TradeEvent, error) {
	query := `
		SELECT id, whale_id, time, asset, direction, base_qty, value_usd, pnl_usd, tx_hash
		FROM trades
		WHERE whale_id = $1 AND time >= $2 AND time <= $3
		ORDER BY time ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, whaleID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query trades by range: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// EntryNotionals retrieves absolute USD notionals of entry-direction trades,
// ordered by time ASC.
func (s *TradeStore) EntryNotionals(ctx context.Context, whaleID string) ([]float64, error) {
	query := `
		SELECT value_usd
		FROM trades
		WHERE whale_id = $1 AND direction = ANY($2)
		ORDER BY time ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, whaleID, entryDirections)
	if err != nil {
		return nil, fmt.Errorf("query entry notionals: %w", err)
	}
	defer rows.Close()

	var notionals []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan notional: %w", err)
		}
		notionals = append(notionals, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notionals: %w", err)
	}

	return notionals, nil
}

// scanTrades scans all trade rows.
func scanTrades(rows pgx.Rows) ([]*domain.TradeEvent, error) {
	var trades []*domain.TradeEvent
	for rows.Next() {
		var t domain.TradeEvent
		err := rows.Scan(
			&t.ID, &t.WhaleID, &t.Time, &t.Asset, &t.Direction,
			&t.BaseQty, &t.ValueUSD, &t.PnLUSD, &t.TxHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, nil
}

// Verify interface compliance at compile time.
var _ storage.TradeStore = (*TradeStore)(nil)
