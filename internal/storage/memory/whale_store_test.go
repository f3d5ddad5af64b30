package memory

import (
	"context"
	"errors"
	"testing"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

func TestWhaleStore_InsertAndGet(t *testing.T) {
	store := NewWhaleStore()
	ctx := context.Background()

	label := "hl-whale-1"
	w := &domain.Whale{
		ID:        "w1",
		Address:   "0xAbC123",
		Label:     &label,
		CreatedAt: 1704067200000,
	}

	if err := store.Insert(ctx, w); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "w1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Address != w.Address {
		t.Errorf("Address mismatch: got %s, want %s", got.Address, w.Address)
	}

	// Lookup by address is case-insensitive.
	got, err = store.GetByAddress(ctx, "0xabc123")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if got.ID != "w1" {
		t.Errorf("ID mismatch: got %s, want w1", got.ID)
	}
}

func TestWhaleStore_DuplicateAddress(t *testing.T) {
	store := NewWhaleStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.Whale{ID: "w1", Address: "0xABC", CreatedAt: 1}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, &domain.Whale{ID: "w2", Address: "0xabc", CreatedAt: 2})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for same address, got %v", err)
	}

	err = store.Insert(ctx, &domain.Whale{ID: "w1", Address: "0xDEF", CreatedAt: 3})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey for same ID, got %v", err)
	}
}

func TestWhaleStore_NotFound(t *testing.T) {
	store := NewWhaleStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "nonexistent"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetByAddress(ctx, "0x404"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestWhaleStore_GetAllOrdered(t *testing.T) {
	store := NewWhaleStore()
	ctx := context.Background()

	whales := []*domain.Whale{
		{ID: "w3", Address: "0x3", CreatedAt: 3000},
		{ID: "w1", Address: "0x1", CreatedAt: 1000},
		{ID: "w2", Address: "0x2", CreatedAt: 2000},
	}
	for _, w := range whales {
		if err := store.Insert(ctx, w); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 whales, got %d", len(all))
	}
	for i, wantID := range []string{"w1", "w2", "w3"} {
		if all[i].ID != wantID {
			t.Errorf("Position %d: got %s, want %s", i, all[i].ID, wantID)
		}
	}
}

func TestWhaleStore_TouchLastActive(t *testing.T) {
	store := NewWhaleStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.Whale{ID: "w1", Address: "0x1", CreatedAt: 1}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.TouchLastActive(ctx, "w1", 5000); err != nil {
		t.Fatalf("TouchLastActive failed: %v", err)
	}

	got, err := store.GetByID(ctx, "w1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.LastActiveAt == nil || *got.LastActiveAt != 5000 {
		t.Errorf("Expected last active 5000, got %v", got.LastActiveAt)
	}

	if err := store.TouchLastActive(ctx, "nonexistent", 5000); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
