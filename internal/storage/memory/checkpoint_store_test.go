package memory

import (
	"context"
	"errors"
	"testing"

	"whale-copy-lab/internal/domain"
	"whale-copy-lab/internal/storage"
)

func TestCheckpointStore_GetNotFound(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "w1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCheckpointStore_UpsertOverwrites(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, &domain.IngestionCheckpoint{WhaleID: "w1", LastFillTime: 1000, UpdatedAt: 1}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, &domain.IngestionCheckpoint{WhaleID: "w1", LastFillTime: 2000, UpdatedAt: 2}); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.LastFillTime != 2000 {
		t.Errorf("Expected last fill time 2000, got %d", got.LastFillTime)
	}
}

func TestCheckpointStore_InvalidInput(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if err := store.Upsert(ctx, &domain.IngestionCheckpoint{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
