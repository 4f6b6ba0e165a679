package cache

import (
	"context"
	"testing"
)

func TestStoreSeenRecordCount(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	const digest = "deadbeef"

	seen, err := store.Seen(ctx, digest)
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatalf("digest reported seen before being recorded")
	}

	if err := store.Record(ctx, digest); err != nil {
		t.Fatalf("Record: %v", err)
	}

	seen, err = store.Seen(ctx, digest)
	if err != nil {
		t.Fatalf("Seen after Record: %v", err)
	}
	if !seen {
		t.Fatalf("digest not reported seen after being recorded")
	}

	// Recording twice is idempotent.
	if err := store.Record(ctx, digest); err != nil {
		t.Fatalf("second Record: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("Count = %d, want 1", count)
	}
}

func TestDisabledStoreAlwaysMisses(t *testing.T) {
	store := Disabled()
	defer store.Close()

	ctx := context.Background()
	if err := store.Record(ctx, "anything"); err != nil {
		t.Fatalf("Record on disabled store: %v", err)
	}
	seen, err := store.Seen(ctx, "anything")
	if err != nil {
		t.Fatalf("Seen on disabled store: %v", err)
	}
	if seen {
		t.Fatalf("disabled store reported a digest seen")
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count on disabled store: %v", err)
	}
	if count != 0 {
		t.Fatalf("Count on disabled store = %d, want 0", count)
	}
}
