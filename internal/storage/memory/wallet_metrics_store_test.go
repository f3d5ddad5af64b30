package memory

import (
	"context"
	"errors"
	"testing"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

func TestWalletMetricsStore_GetNotFound(t *testing.T) {
	store := NewWalletMetricsStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "w1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestWalletMetricsStore_UpsertOverwrites(t *testing.T) {
	store := NewWalletMetricsStore()
	ctx := context.Background()

	winRate := 60.0
	first := &domain.WalletMetrics{
		WhaleID:         "w1",
		AccountValueUSD: 1000,
		RealizedPnLUSD:  50,
		WinRatePercent:  &winRate,
		ComputedAt:      1000,
	}
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	second := &domain.WalletMetrics{
		WhaleID:         "w1",
		AccountValueUSD: 1100,
		RealizedPnLUSD:  75,
		ComputedAt:      2000,
	}
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AccountValueUSD != 1100 {
		t.Errorf("Expected account value 1100, got %f", got.AccountValueUSD)
	}
	if got.WinRatePercent != nil {
		t.Errorf("Expected nil win rate after overwrite, got %v", *got.WinRatePercent)
	}
}

func TestWalletMetricsStore_InvalidInput(t *testing.T) {
	store := NewWalletMetricsStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if err := store.Upsert(ctx, &domain.WalletMetrics{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
