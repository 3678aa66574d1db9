package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

type note struct {
	ID      string `json:"id"`
	Body    string `json:"body"`
	Version int64  `json:"version"`
}

func openNotes(t *testing.T) *Collection[note] {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), "notes")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewCollection(db, "notes", func(n note) int64 { return n.Version })
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	notes := openNotes(t)

	if err := notes.Create(ctx, "n1", note{ID: "n1", Body: "hello", Version: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := notes.Get(ctx, "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Body != "hello" {
		t.Fatalf("expected body hello, got %q", got.Body)
	}

	if err := notes.Create(ctx, "n1", note{ID: "n1"}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on duplicate create, got %v", err)
	}
	if _, err := notes.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompareAndSwapRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	notes := openNotes(t)
	if err := notes.Create(ctx, "n1", note{ID: "n1", Body: "v1", Version: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := notes.CompareAndSwap(ctx, "n1", 1, note{ID: "n1", Body: "v2", Version: 2}); err != nil {
		t.Fatalf("first swap: %v", err)
	}
	if err := notes.CompareAndSwap(ctx, "n1", 1, note{ID: "n1", Body: "stale", Version: 2}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if err := notes.CompareAndSwap(ctx, "nope", 0, note{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	got, _ := notes.Get(ctx, "n1")
	if got.Body != "v2" {
		t.Fatalf("expected v2 to survive, got %q", got.Body)
	}
}

func TestFindFilters(t *testing.T) {
	ctx := context.Background()
	notes := openNotes(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := notes.Create(ctx, id, note{ID: id, Body: id}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	all, err := notes.Find(ctx, nil)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(all))
	}

	some, err := notes.Find(ctx, func(n note) bool { return n.ID != "b" })
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(some) != 2 || some[0].ID != "a" || some[1].ID != "c" {
		t.Fatalf("unexpected filtered notes: %+v", some)
	}

	ids, err := notes.IDs(ctx)
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if len(ids) != 3 || ids[0] != "a" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
