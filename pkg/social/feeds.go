// Package social serves placeholder social media feeds until real API
// credentials are configured.
package social

import (
	"sync"
	"time"
)

type Post struct {
	ID        int    `json:"id"`
	User      string `json:"user,omitempty"`
	Subreddit string `json:"subreddit,omitempty"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Likes     *int   `json:"likes,omitempty"`
	Retweets  *int   `json:"retweets,omitempty"`
	Upvotes   *int   `json:"upvotes,omitempty"`
}

type Feed struct {
	Platform    string `json:"platform"`
	Posts       []Post `json:"posts"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

type Service struct {
	mu    sync.Mutex
	feeds []Feed
	now   func() time.Time
}

func NewService() *Service {
	s := &Service{now: time.Now}
	s.feeds = demoFeeds(s.now())
	return s
}

func (s *Service) Feeds() []Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneFeeds(s.feeds)
}

// Refresh stamps every feed with the current time.
func (s *Service) Refresh() []Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp := s.now().UTC().Format(time.RFC3339)
	for i := range s.feeds {
		s.feeds[i].LastUpdated = stamp
	}
	return cloneFeeds(s.feeds)
}

func demoFeeds(now time.Time) []Feed {
	zero := func() *int { v := 0; return &v }
	stamp := now.UTC().Format(time.RFC3339)
	return []Feed{
		{
			Platform: "Twitter",
			Posts: []Post{{
				ID:        1,
				User:      "Example User",
				Content:   "This is a sample tweet. Connect your social media API keys to see real feeds.",
				Timestamp: stamp,
				Likes:     zero(),
				Retweets:  zero(),
			}},
		},
		{
			Platform: "Reddit",
			Posts: []Post{{
				ID:        1,
				Subreddit: "programming",
				Title:     "Sample Reddit Post",
				Content:   "This is a sample Reddit post. Configure API keys to see real feeds.",
				Timestamp: stamp,
				Upvotes:   zero(),
			}},
		},
	}
}

func cloneFeeds(in []Feed) []Feed {
	out := make([]Feed, len(in))
	for i, f := range in {
		out[i] = f
		out[i].Posts = append([]Post(nil), f.Posts...)
	}
	return out
}
