package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

func TestPriceHistoryStore_UpsertBulkAndGetRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceHistoryStore(conn)
	ctx := context.Background()

	points := []*domain.PricePoint{
		{Asset: "BTC", Time: 1700000060000, PriceUSD: 43000},
		{Asset: "BTC", Time: 1700000120000, PriceUSD: 43100},
		{Asset: "BTC", Time: 1700000180000, PriceUSD: 43050},
		{Asset: "BTC", Time: 1700000240000, PriceUSD: 43200},
		{Asset: "ETH", Time: 1700000060000, PriceUSD: 2300},
	}

	err := store.UpsertBulk(ctx, points)
	require.NoError(t, err)

	// Inclusive on both bounds, BTC only, ascending.
	got, err := store.GetRange(ctx, "BTC", 1700000120000, 1700000240000)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1700000120000), got[0].Time)
	assert.Equal(t, 43100.0, got[0].PriceUSD)
	assert.Equal(t, int64(1700000180000), got[1].Time)
	assert.Equal(t, int64(1700000240000), got[2].Time)
	for _, p := range got {
		assert.Equal(t, "BTC", p.Asset)
	}

	empty, err := store.GetRange(ctx, "BTC", 1700009000000, 1700009900000)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPriceHistoryStore_UpsertOverwritesDuplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceHistoryStore(conn)
	ctx := context.Background()

	err := store.UpsertBulk(ctx, []*domain.PricePoint{
		{Asset: "SOL", Time: 1700000060000, PriceUSD: 58.2},
	})
	require.NoError(t, err)

	// Backfilling the same minute again must replace, not duplicate.
	err = store.UpsertBulk(ctx, []*domain.PricePoint{
		{Asset: "SOL", Time: 1700000060000, PriceUSD: 58.9},
	})
	require.NoError(t, err)

	got, err := store.GetRange(ctx, "SOL", 1700000060000, 1700000060000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 58.9, got[0].PriceUSD)
}

func TestPriceHistoryStore_EmptyBatchIsNoOp(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceHistoryStore(conn)
	ctx := context.Background()

	assert.NoError(t, store.UpsertBulk(ctx, nil))
	assert.NoError(t, store.UpsertBulk(ctx, []*domain.PricePoint{}))
}

func TestPriceHistoryStore_RejectsInvalidPoints(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPriceHistoryStore(conn)
	ctx := context.Background()

	err := store.UpsertBulk(ctx, []*domain.PricePoint{nil})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.UpsertBulk(ctx, []*domain.PricePoint{
		{Asset: "", Time: 1700000060000, PriceUSD: 1},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
