package db_test

import (
	"errors"
	"testing"

	"github.com/sameehj/xweb/internal/db"
	"github.com/sameehj/xweb/internal/testutil"
)

func TestFeedCRUD(t *testing.T) {
	store, ctx := testutil.NewStore(t)

	a, err := store.InsertFeed(ctx, "A", "http://a.example/rss")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	b, err := store.InsertFeed(ctx, "B", "http://b.example/rss")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if b.ID <= a.ID {
		t.Fatalf("expected increasing ids, got %d then %d", a.ID, b.ID)
	}

	feeds, err := store.ListFeeds(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(feeds) != 2 || feeds[0].Name != "A" || feeds[1].URL != "http://b.example/rss" {
		t.Fatalf("unexpected feeds %+v", feeds)
	}
	if feeds[0].CreatedAt.IsZero() {
		t.Fatalf("expected created_at to round-trip")
	}

	if err := store.DeleteFeed(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteFeed(ctx, a.ID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	n, err := store.CountFeeds(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 feed, got %d (%v)", n, err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	if err := db.ApplyMigrations(ctx, store.DB()); err != nil {
		t.Fatalf("reapply: %v", err)
	}
	v, err := db.CurrentVersion(ctx, store.DB())
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 2 {
		t.Fatalf("expected schema version 2, got %d", v)
	}
}
