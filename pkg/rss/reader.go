package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sameehj/xweb/internal/db"
)

const (
	maxFeedBytes = 4 * 1024 * 1024
	fetchTimeout = 15 * time.Second
)

var (
	ErrFeedNotFound = errors.New("feed not found")
	ErrInvalidFeed  = errors.New("feed name and http(s) url required")
)

// FeedStore persists subscriptions.
type FeedStore interface {
	ListFeeds(ctx context.Context) ([]db.Feed, error)
	InsertFeed(ctx context.Context, name, url string) (db.Feed, error)
	DeleteFeed(ctx context.Context, id int64) error
	CountFeeds(ctx context.Context) (int, error)
}

// Feed is a subscription together with its most recently fetched items.
type Feed struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Items []Item `json:"items"`
}

type Subscription struct {
	Name string
	URL  string
}

// Reader keeps feed items in memory and subscriptions in the store.
type Reader struct {
	store  FeedStore
	client *http.Client
	logger *slog.Logger

	mu    sync.RWMutex
	items map[int64][]Item
}

func NewReader(store FeedStore, client *http.Client) *Reader {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Reader{store: store, client: client, items: make(map[int64][]Item)}
}

func (r *Reader) SetLogger(logger *slog.Logger) {
	r.logger = logger
}

// Seed inserts subs when no feeds are stored yet.
func (r *Reader) Seed(ctx context.Context, subs ...Subscription) error {
	n, err := r.store.CountFeeds(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, sub := range subs {
		if _, err := r.store.InsertFeed(ctx, sub.Name, sub.URL); err != nil {
			return err
		}
	}
	return nil
}

// Feeds refreshes every subscription and returns the result.
func (r *Reader) Feeds(ctx context.Context) ([]Feed, error) {
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	return r.snapshot(ctx)
}

// Refresh fetches each feed in turn. A feed that fails keeps no items.
func (r *Reader) Refresh(ctx context.Context) error {
	feeds, err := r.store.ListFeeds(ctx)
	if err != nil {
		return err
	}
	for _, f := range feeds {
		r.update(ctx, f)
	}
	return nil
}

func (r *Reader) Add(ctx context.Context, name, rawURL string) (Feed, error) {
	name = strings.TrimSpace(name)
	if name == "" || !validURL(rawURL) {
		return Feed{}, ErrInvalidFeed
	}
	stored, err := r.store.InsertFeed(ctx, name, rawURL)
	if err != nil {
		return Feed{}, err
	}
	go func() {
		fetchCtx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		r.update(fetchCtx, stored)
	}()
	return Feed{ID: stored.ID, Name: stored.Name, URL: stored.URL, Items: []Item{}}, nil
}

func (r *Reader) Remove(ctx context.Context, id int64) error {
	if err := r.store.DeleteFeed(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrFeedNotFound
		}
		return err
	}
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
	return nil
}

// Run refreshes feeds every interval until ctx is done.
func (r *Reader) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logWarn("rss_refresh_failed", "error", err)
			}
		}
	}
}

// Fetch downloads and parses one feed document.
func (r *Reader) Fetch(ctx context.Context, feedURL string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", feedURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return Parse(string(body)), nil
}

func (r *Reader) update(ctx context.Context, f db.Feed) {
	items, err := r.Fetch(ctx, f.URL)
	if err != nil {
		r.logWarn("rss_fetch_failed", "feed", f.Name, "url", f.URL, "error", err)
		items = []Item{}
	}
	r.mu.Lock()
	r.items[f.ID] = items
	r.mu.Unlock()
}

func (r *Reader) snapshot(ctx context.Context) ([]Feed, error) {
	stored, err := r.store.ListFeeds(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Feed, 0, len(stored))
	for _, f := range stored {
		items := r.items[f.ID]
		if items == nil {
			items = []Item{}
		}
		out = append(out, Feed{ID: f.ID, Name: f.Name, URL: f.URL, Items: items})
	}
	return out, nil
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (r *Reader) logWarn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
