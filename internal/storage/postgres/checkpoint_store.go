package postgres

import (
	"context"
	"fmt"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

// CheckpointStore is a PostgreSQL implementation of storage.CheckpointStore.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new PostgreSQL checkpoint store.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Get retrieves the checkpoint for a whale. Returns ErrNotFound if not exists.
func (s *CheckpointStore) Get(ctx context.Context, whaleID string) (*domain.IngestionCheckpoint, error) {
	query := `
		SELECT whale_id, last_fill_time, updated_at
		FROM ingestion_checkpoints
		WHERE whale_id = $1
	`

	var c domain.IngestionCheckpoint
	err := s.pool.QueryRow(ctx, query, whaleID).Scan(&c.WhaleID, &c.LastFillTime, &c.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}

	return &c, nil
}

// Upsert writes the checkpoint for a whale, creating or overwriting it.
func (s *CheckpointStore) Upsert(ctx context.Context, c *domain.IngestionCheckpoint) error {
	if c == nil || c.WhaleID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO ingestion_checkpoints (whale_id, last_fill_time, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (whale_id) DO UPDATE SET
			last_fill_time = EXCLUDED.last_fill_time,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query, c.WhaleID, c.LastFillTime, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}

	return nil
}

// Verify interface compliance at compile time.
var _ storage.CheckpointStore = (*CheckpointStore)(nil)
