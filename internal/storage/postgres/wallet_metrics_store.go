package postgres

import (
	"context"
	"fmt"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

// WalletMetricsStore is a PostgreSQL implementation of storage.WalletMetricsStore.
type WalletMetricsStore struct {
	pool *Pool
}

// NewWalletMetricsStore creates a new PostgreSQL wallet metrics store.
func NewWalletMetricsStore(pool *Pool) *WalletMetricsStore {
	return &WalletMetricsStore{pool: pool}
}

// Get retrieves current metrics for a whale. Returns ErrNotFound if not exists.
func (s *WalletMetricsStore) Get(ctx context.Context, whaleID string) (*domain.WalletMetrics, error) {
	query := `
		SELECT whale_id, account_value_usd, realized_pnl_usd, unrealized_pnl_usd,
			roi_percent, volume_30d_usd, trades_30d, win_rate_percent, computed_at
		FROM wallet_metrics
		WHERE whale_id = $1
	`

	var m domain.WalletMetrics
	err := s.pool.QueryRow(ctx, query, whaleID).Scan(
		&m.WhaleID, &m.AccountValueUSD, &m.RealizedPnLUSD, &m.UnrealizedPnLUSD,
		&m.ROIPercent, &m.Volume30dUSD, &m.Trades30d, &m.WinRatePercent, &m.ComputedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet metrics: %w", err)
	}

	return &m, nil
}

// Upsert writes metrics for a whale, creating or overwriting the row.
func (s *WalletMetricsStore) Upsert(ctx context.Context, m *domain.WalletMetrics) error {
	if m == nil || m.WhaleID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wallet_metrics (
			whale_id, account_value_usd, realized_pnl_usd, unrealized_pnl_usd,
			roi_percent, volume_30d_usd, trades_30d, win_rate_percent, computed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (whale_id) DO UPDATE SET
			account_value_usd = EXCLUDED.account_value_usd,
			realized_pnl_usd = EXCLUDED.realized_pnl_usd,
			unrealized_pnl_usd = EXCLUDED.unrealized_pnl_usd,
			roi_percent = EXCLUDED.roi_percent,
			volume_30d_usd = EXCLUDED.volume_30d_usd,
			trades_30d = EXCLUDED.trades_30d,
			win_rate_percent = EXCLUDED.win_rate_percent,
			computed_at = EXCLUDED.computed_at
	`

	_, err := s.pool.Exec(ctx, query,
		m.WhaleID, m.AccountValueUSD, m.RealizedPnLUSD, m.UnrealizedPnLUSD,
		m.ROIPercent, m.Volume30dUSD, m.Trades30d, m.WinRatePercent, m.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert wallet metrics: %w", err)
	}

	return nil
}

// Verify interface compliance at compile time.
var _ storage.WalletMetricsStore = (*WalletMetricsStore)(nil)
