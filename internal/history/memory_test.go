package history

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStorePutAssignsID(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(10)
	entry := &Entry{Source: "paste", Document: `{"took":5}`, TookMS: 5}
	if err := store.Put(context.Background(), entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("expected Put to assign an ID")
	}
	if entry.LoadedAt.IsZero() {
		t.Fatal("expected Put to assign LoadedAt")
	}

	got, err := store.Get(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Document != `{"took":5}` {
		t.Fatalf("Document = %q", got.Document)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(10)
	if _, err := store.Get(context.Background(), "prof_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListNewestFirstWithoutDocuments(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(10)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := &Entry{
			ID:       string(rune('a' + i)),
			Source:   "paste",
			LoadedAt: base.Add(time.Duration(i) * time.Minute),
			Document: `{"took":1}`,
		}
		if err := store.Put(context.Background(), entry); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	entries, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if entries[0].ID != "c" || entries[2].ID != "a" {
		t.Fatalf("unexpected order: %s, %s, %s", entries[0].ID, entries[1].ID, entries[2].ID)
	}
	for _, entry := range entries {
		if entry.Document != "" {
			t.Fatalf("List entry %q carried a document", entry.ID)
		}
	}
}

func TestMemoryStoreEvictsBeyondLimit(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(2)
	for _, id := range []string{"one", "two", "three"} {
		if err := store.Put(context.Background(), &Entry{ID: id, Document: "{}"}); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}

	entries, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if _, err := store.Get(context.Background(), "one"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected oldest entry evicted, got %v", err)
	}
}
