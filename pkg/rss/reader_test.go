package rss

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sameehj/xweb/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/good.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestReaderSeedAndFeeds(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	ts := newFeedServer(t)
	r := NewReader(store, ts.Client())

	require.NoError(t, r.Seed(ctx, Subscription{Name: "Good", URL: ts.URL + "/good.xml"}, Subscription{Name: "Broken", URL: ts.URL + "/broken.xml"}))
	require.NoError(t, r.Seed(ctx, Subscription{Name: "Ignored", URL: ts.URL + "/good.xml"}), "seeding twice is a no-op")

	feeds, err := r.Feeds(ctx)
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	assert.Equal(t, "Good", feeds[0].Name)
	assert.Len(t, feeds[0].Items, 2)
	assert.Equal(t, "Broken", feeds[1].Name)
	assert.NotNil(t, feeds[1].Items)
	assert.Empty(t, feeds[1].Items)
}

func TestReaderAddFetchesInBackground(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	ts := newFeedServer(t)
	r := NewReader(store, ts.Client())

	feed, err := r.Add(ctx, "Good", ts.URL+"/good.xml")
	require.NoError(t, err)
	assert.Empty(t, feed.Items)

	require.Eventually(t, func() bool {
		feeds, err := r.snapshot(ctx)
		return err == nil && len(feeds) == 1 && len(feeds[0].Items) == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestReaderAddValidates(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	r := NewReader(store, nil)
	for _, tc := range []struct{ name, url string }{
		{"", "http://example.com/rss"},
		{"x", "ftp://example.com/rss"},
		{"x", "not a url"},
	} {
		_, err := r.Add(ctx, tc.name, tc.url)
		assert.ErrorIs(t, err, ErrInvalidFeed)
	}
}

func TestReaderRemove(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	r := NewReader(store, nil)
	stored, err := store.InsertFeed(ctx, "x", "http://example.invalid/rss")
	require.NoError(t, err)

	require.NoError(t, r.Remove(ctx, stored.ID))
	err = r.Remove(ctx, stored.ID)
	assert.True(t, errors.Is(err, ErrFeedNotFound))
}

func TestReaderRunStopsOnCancel(t *testing.T) {
	store, _ := testutil.NewStore(t)
	r := NewReader(store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 10*time.Millisecond) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
