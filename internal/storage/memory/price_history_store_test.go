package memory

import (
	"context"
	"errors"
	"testing"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

func TestPriceHistoryStore_UpsertAndGetRange(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	points := []*domain.PricePoint{
		{Asset: "BTC", Time: 3000, PriceUSD: 103},
		{Asset: "BTC", Time: 1000, PriceUSD: 101},
		{Asset: "BTC", Time: 2000, PriceUSD: 102},
		{Asset: "ETH", Time: 1000, PriceUSD: 11},
	}
	if err := store.UpsertBulk(ctx, points); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	got, err := store.GetRange(ctx, "BTC", 1000, 3000)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(got))
	}
	// Ordered by time ASC regardless of insert order.
	for i, wantTs := range []int64{1000, 2000, 3000} {
		if got[i].Time != wantTs {
			t.Errorf("Position %d: got ts %d, want %d", i, got[i].Time, wantTs)
		}
	}
}

func TestPriceHistoryStore_UpsertOverwrites(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	if err := store.UpsertBulk(ctx, []*domain.PricePoint{{Asset: "BTC", Time: 1000, PriceUSD: 100}}); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}
	if err := store.UpsertBulk(ctx, []*domain.PricePoint{{Asset: "BTC", Time: 1000, PriceUSD: 105}}); err != nil {
		t.Fatalf("Second UpsertBulk failed: %v", err)
	}

	got, err := store.GetRange(ctx, "BTC", 0, 2000)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 point, got %d", len(got))
	}
	if got[0].PriceUSD != 105 {
		t.Errorf("Expected overwritten price 105, got %f", got[0].PriceUSD)
	}
}

func TestPriceHistoryStore_RangeBoundsInclusive(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	points := []*domain.PricePoint{
		{Asset: "BTC", Time: 1000, PriceUSD: 1},
		{Asset: "BTC", Time: 2000, PriceUSD: 2},
		{Asset: "BTC", Time: 3000, PriceUSD: 3},
		{Asset: "BTC", Time: 4000, PriceUSD: 4},
	}
	if err := store.UpsertBulk(ctx, points); err != nil {
		t.Fatalf("UpsertBulk failed: %v", err)
	}

	got, err := store.GetRange(ctx, "BTC", 2000, 3000)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(got) != 2 || got[0].Time != 2000 || got[1].Time != 3000 {
		t.Errorf("Bounds not inclusive: %+v", got)
	}
}

func TestPriceHistoryStore_InvalidInput(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	if err := store.UpsertBulk(ctx, nil); err != nil {
		t.Errorf("Empty batch should be a no-op, got %v", err)
	}

	err := store.UpsertBulk(ctx, []*domain.PricePoint{{Asset: "", Time: 1000, PriceUSD: 1}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestPriceHistoryStore_UnknownAsset(t *testing.T) {
	store := NewPriceHistoryStore()
	ctx := context.Background()

	got, err := store.GetRange(ctx, "DOGE", 0, 10_000)
	if err != nil {
		t.Fatalf("GetRange failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no points, got %d", len(got))
	}
}
