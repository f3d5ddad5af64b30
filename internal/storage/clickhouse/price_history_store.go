package clickhouse

import (
	"context"
	"fmt"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

// PriceHistoryStore is a ClickHouse implementation of storage.PriceHistoryStore.
//
// The table is a ReplacingMergeTree keyed on (asset, time), so an upsert is
// a plain insert; duplicate rows collapse on merge and reads use FINAL to
// dedupe before merges run.
type PriceHistoryStore struct {
	conn *Conn
}

// NewPriceHistoryStore creates a new ClickHouse price history store.
func NewPriceHistoryStore(conn *Conn) *PriceHistoryStore {
	return &PriceHistoryStore{conn: conn}
}

// UpsertBulk writes price points, overwriting duplicates on (asset, time).
// Safe to call repeatedly with overlapping ranges.
func (s *PriceHistoryStore) UpsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || p.Asset == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO price_history (asset, time, price_usd)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Asset, uint64(p.Time), p.PriceUSD); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetRange retrieves points for an asset within [start, end] (inclusive, ms),
// ordered by time ASC.
func (s *PriceHistoryStore) GetRange(ctx context.Context, asset string, start, end int64) ([]*domain.PricePoint, error) {
	// Stored timestamps are unsigned; clamp so negative bounds do not wrap.
	if end < 0 {
		return nil, nil
	}
	if start < 0 {
		start = 0
	}

	query := `
		SELECT asset, time, price_usd
		FROM price_history FINAL
		WHERE asset = ? AND time >= ? AND time <= ?
		ORDER BY time ASC
	`

	rows, err := s.conn.Query(ctx, query, asset, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var points []*domain.PricePoint
	for rows.Next() {
		var (
			p  domain.PricePoint
			ts uint64
		)
		if err := rows.Scan(&p.Asset, &ts, &p.PriceUSD); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		p.Time = int64(ts)
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price points: %w", err)
	}

	return points, nil
}

// Verify interface compliance at compile time.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)
