package redisstore

import (
	"context"
	"testing"

	"github.com/Error404m/aws-voice-bot/domain/entities"
)

func TestMemoryHistoryStoreAppendAndLoad(t *testing.T) {
	store := NewMemoryHistoryStore(0)
	ctx := context.Background()

	turns := []entities.ChatTurn{
		{UserText: "hello", AssistantText: "hi there"},
		{UserText: "what is s3", AssistantText: "object storage"},
	}
	for _, turn := range turns {
		if err := store.AppendTurn(ctx, "session-1", turn); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	loaded, err := store.Turns(ctx, "session-1")
	if err != nil {
		t.Fatalf("Turns failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d turns, want 2", len(loaded))
	}
	if loaded[1].UserText != "what is s3" {
		t.Errorf("turn order not preserved, got %q", loaded[1].UserText)
	}

	other, err := store.Turns(ctx, "session-2")
	if err != nil {
		t.Fatalf("Turns failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("unrelated session has %d turns, want 0", len(other))
	}
}

func TestMemoryHistoryStoreTruncation(t *testing.T) {
	store := NewMemoryHistoryStore(2)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		if err := store.AppendTurn(ctx, "s", entities.ChatTurn{UserText: text}); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	loaded, _ := store.Turns(ctx, "s")
	if len(loaded) != 2 {
		t.Fatalf("loaded %d turns, want 2", len(loaded))
	}
	if loaded[0].UserText != "two" || loaded[1].UserText != "three" {
		t.Errorf("oldest turn should be evicted, got %q, %q", loaded[0].UserText, loaded[1].UserText)
	}
}

func TestMemoryHistoryStoreDelete(t *testing.T) {
	store := NewMemoryHistoryStore(0)
	ctx := context.Background()

	store.AppendTurn(ctx, "s", entities.ChatTurn{UserText: "hello"})
	if err := store.Delete(ctx, "s"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	loaded, _ := store.Turns(ctx, "s")
	if len(loaded) != 0 {
		t.Errorf("deleted session has %d turns, want 0", len(loaded))
	}
}
