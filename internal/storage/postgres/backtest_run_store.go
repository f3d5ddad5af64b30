package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

// BacktestRunStore is a PostgreSQL implementation of storage.BacktestRunStore.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new PostgreSQL backtest run store.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Insert adds a new run. Returns ErrDuplicateKey if the run ID exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if r == nil || r.ID == "" || r.WhaleID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO backtest_runs (
			id, whale_id, created_at, leverage, position_size_pct, assets,
			initial_deposit_usd, net_pnl_usd, roi_percent, win_rate_percent,
			trades_copied, max_drawdown_percent, max_drawdown_usd,
			start_time, end_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	assets := r.Assets
	if assets == nil {
		assets = []string{}
	}

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.WhaleID, r.CreatedAt, r.Leverage, r.PositionSizePct, assets,
		r.InitialDepositUSD, r.NetPnLUSD, r.ROIPercent, r.WinRatePercent,
		r.TradesCopied, r.MaxDrawdownPercent, r.MaxDrawdownUSD,
		r.StartTime, r.EndTime,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}

	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `
		SELECT id, whale_id, created_at, leverage, position_size_pct, assets,
			initial_deposit_usd, net_pnl_usd, roi_percent, win_rate_percent,
			trades_copied, max_drawdown_percent, max_drawdown_usd,
			start_time, end_time
		FROM backtest_runs
		WHERE id = $1
	`

	r, err := scanBacktestRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run: %w", err)
	}

	return r, nil
}

// GetByWhale retrieves all runs for a whale, newest first.
func (s *BacktestRunStore) GetByWhale(ctx context.Context, whaleID string) ([]*domain.BacktestRun, error) {
	query := `
		SELECT id, whale_id, created_at, leverage, position_size_pct, assets,
			initial_deposit_usd, net_pnl_usd, roi_percent, win_rate_percent,
			trades_copied, max_drawdown_percent, max_drawdown_usd,
			start_time, end_time
		FROM backtest_runs
		WHERE whale_id = $1
		ORDER BY created_at DESC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, whaleID)
	if err != nil {
		return nil, fmt.Errorf("query backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanBacktestRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest runs: %w", err)
	}

	return runs, nil
}

// scanBacktestRun scans a single run row.
func scanBacktestRun(row pgx.Row) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	err := row.Scan(
		&r.ID, &r.WhaleID, &r.CreatedAt, &r.Leverage, &r.PositionSizePct, &r.Assets,
		&r.InitialDepositUSD, &r.NetPnLUSD, &r.ROIPercent, &r.WinRatePercent,
		&r.TradesCopied, &r.MaxDrawdownPercent, &r.MaxDrawdownUSD,
		&r.StartTime, &r.EndTime,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Verify interface compliance at compile time.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)
