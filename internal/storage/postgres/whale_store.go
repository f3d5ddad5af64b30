package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

// WhaleStore is a PostgreSQL implementation of storage.WhaleStore.
type WhaleStore struct {
	pool *Pool
}

// NewWhaleStore creates a new PostgreSQL whale store.
func NewWhaleStore(pool *Pool) *WhaleStore {
	return &WhaleStore{pool: pool}
}

// Insert adds a new whale. Returns ErrDuplicateKey if the ID or address
// (case-insensitive) already exists.
func (s *WhaleStore) Insert(ctx context.Context, w *domain.Whale) error {
	if w == nil || w.ID == "" || w.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO whales (id, address, label, created_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query, w.ID, w.Address, w.Label, w.CreatedAt, w.LastActiveAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert whale: %w", err)
	}

	return nil
}

// GetByID retrieves a whale by its ID. Returns ErrNotFound if not exists.
func (s *WhaleStore) GetByID(ctx context.Context, whaleID string) (*domain.Whale, error) {
	query := `
		SELECT id, address, label, created_at, last_active_at
		FROM whales
		WHERE id = $1
	`

	w, err := scanWhale(s.pool.QueryRow(ctx, query, whaleID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get whale: %w", err)
	}

	return w, nil
}

// GetByAddress retrieves a whale by account address (case-insensitive).
func (s *WhaleStore) GetByAddress(ctx context.Context, address string) (*domain.Whale, error) {
	query := `
		SELECT id, address, label, created_at, last_active_at
		FROM whales
		WHERE lower(address) = lower($1)
	`

	w, err := scanWhale(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get whale by address: %w", err)
	}

	return w, nil
}

// GetAll retrieves all whales, ordered by creation time ASC.
func (s *WhaleStore) GetAll(ctx context.Context) ([]*domain.Whale, error) {
	query := `
		SELECT id, address, label, created_at, last_active_at
		FROM whales
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query whales: %w", err)
	}
	defer rows.Close()

	return scanWhales(rows)
}

// TouchLastActive updates the whale's last-active timestamp.
// Returns ErrNotFound if the whale does not exist.
func (s *WhaleStore) TouchLastActive(ctx context.Context, whaleID string, ts int64) error {
	query := `UPDATE whales SET last_active_at = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, whaleID, ts)
	if err != nil {
		return fmt.Errorf("touch whale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// scanWhale scans a single whale row.
func scanWhale(row pgx.Row) (*domain.Whale, error) {
	var w domain.Whale
	err := row.Scan(&w.ID, &w.Address, &w.Label, &w.CreatedAt, &w.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// scanWhales scans all whale rows.
func scanWhales(rows pgx.Rows) ([]*domain.Whale, error) {
	var whales []*domain.Whale
	for rows.Next() {
		var w domain.Whale
		err := rows.Scan(&w.ID, &w.Address, &w.Label, &w.CreatedAt, &w.LastActiveAt)
		if err != nil {
			return nil, fmt.Errorf("scan whale: %w", err)
		}
		whales = append(whales, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whales: %w", err)
	}
	return whales, nil
}

// Verify interface compliance at compile time.
var _ storage.WhaleStore = (*WhaleStore)(nil)
