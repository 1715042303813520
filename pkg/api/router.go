package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sameehj/xweb/pkg/diagnostics"
	"github.com/sameehj/xweb/pkg/files"
	"github.com/sameehj/xweb/pkg/irc"
	"github.com/sameehj/xweb/pkg/rss"
	"github.com/sameehj/xweb/pkg/session"
	"github.com/sameehj/xweb/pkg/social"
)

// SessionLister reports the open channel connections, oldest first.
type SessionLister interface {
	List() []*session.Connection
}

// Services are the collaborators behind the HTTP facade. Nil members leave
// their routes unregistered.
type Services struct {
	Channel     http.Handler
	Sessions    SessionLister
	Feeds       *rss.Reader
	IRC         *irc.Manager
	Social      *social.Service
	Diagnostics *diagnostics.Collector
	Files       *files.Workspace
	StaticDir   string
	Logger      *slog.Logger
}

type handlers struct {
	Services
	started time.Time
}

func NewRouter(s Services) *mux.Router {
	h := &handlers{Services: s, started: time.Now()}
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/healthz", h.health).Methods("GET")

	if s.Feeds != nil {
		r.HandleFunc("/api/rss/feeds", h.rssFeeds).Methods("GET")
		r.HandleFunc("/api/rss/add", h.rssAdd).Methods("POST")
		r.HandleFunc("/api/rss/remove/{id}", h.rssRemove).Methods("DELETE")
	}
	if s.IRC != nil {
		r.HandleFunc("/api/irc/channels", h.ircChannels).Methods("GET")
		r.HandleFunc("/api/irc/connect", h.ircConnect).Methods("POST")
		r.HandleFunc("/api/irc/disconnect", h.ircDisconnect).Methods("POST")
		r.HandleFunc("/api/irc/messages/{channel}", h.ircMessages).Methods("GET")
	}
	if s.Social != nil {
		r.HandleFunc("/api/social/feeds", h.socialFeeds).Methods("GET")
		r.HandleFunc("/api/social/refresh", h.socialRefresh).Methods("POST")
	}
	if s.Diagnostics != nil {
		r.HandleFunc("/api/diagnostics/system", h.systemInfo).Methods("GET")
		r.HandleFunc("/api/diagnostics/process", h.processInfo).Methods("GET")
		r.HandleFunc("/api/diagnostics/disk", h.diskUsage).Methods("GET")
	}
	if s.Files != nil {
		r.HandleFunc("/api/files/list", h.listFiles).Methods("GET")
		r.HandleFunc("/api/files/read", h.readFile).Methods("GET")
		r.HandleFunc("/api/files/write", h.writeFile).Methods("POST")
	}

	if s.Channel != nil {
		r.Path("/").MatcherFunc(func(req *http.Request, _ *mux.RouteMatch) bool {
			return websocket.IsWebSocketUpgrade(req)
		}).Handler(s.Channel)
	}
	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir))).Methods("GET", "HEAD")
	}
	return r
}

func (h *handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if h.Logger != nil && !websocket.IsWebSocketUpgrade(r) {
			h.Logger.Debug("http_request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		}
	})
}

func (h *handlers) logError(msg string, args ...any) {
	if h.Logger != nil {
		h.Logger.Error(msg, args...)
	}
}
