package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sameehj/xweb/pkg/files"
	"github.com/sameehj/xweb/pkg/irc"
	"github.com/sameehj/xweb/pkg/rss"
	"github.com/sameehj/xweb/pkg/version"
)

type healthResponse struct {
	Status      string           `json:"status"`
	Uptime      string           `json:"uptime"`
	Sessions    int              `json:"sessions"`
	Connections []connectionInfo `json:"connections"`
	Version     string           `json:"version"`
}

type connectionInfo struct {
	ID         string    `json:"id"`
	RemoteAddr string    `json:"remoteAddr"`
	StartedAt  time.Time `json:"startedAt"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Version: version.Version,
	}
	resp.Connections = []connectionInfo{}
	if h.Sessions != nil {
		for _, c := range h.Sessions.List() {
			resp.Connections = append(resp.Connections, connectionInfo{ID: c.ID, RemoteAddr: c.RemoteAddr, StartedAt: c.StartedAt})
		}
	}
	resp.Sessions = len(resp.Connections)
	writeJSON(w, http.StatusOK, resp)
}

type addFeedRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (h *handlers) rssFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.Feeds.Feeds(r.Context())
	if err != nil {
		h.logError("rss_list_failed", "error", err)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, feeds)
}

func (h *handlers) rssAdd(w http.ResponseWriter, r *http.Request) {
	var req addFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	feed, err := h.Feeds.Add(r.Context(), req.Name, req.URL)
	if errors.Is(err, rss.ErrInvalidFeed) {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logError("rss_add_failed", "url", req.URL, "error", err)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *handlers) rssRemove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid feed id")
		return
	}
	err = h.Feeds.Remove(r.Context(), id)
	if errors.Is(err, rss.ErrFeedNotFound) {
		writeFailure(w, http.StatusNotFound, "Feed not found")
		return
	}
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type connectRequest struct {
	Server  string `json:"server"`
	Port    int    `json:"port"`
	Nick    string `json:"nick"`
	Channel string `json:"channel"`
}

func (h *handlers) ircChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.IRC.Channels())
}

func (h *handlers) ircConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := h.IRC.Connect(r.Context(), req.Server, req.Port, req.Nick, req.Channel)
	if errors.Is(err, irc.ErrInvalidRequest) {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Connected to IRC"})
}

func (h *handlers) ircDisconnect(w http.ResponseWriter, r *http.Request) {
	h.IRC.Disconnect()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handlers) ircMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.IRC.Messages(mux.Vars(r)["channel"]))
}

func (h *handlers) socialFeeds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Social.Feeds())
}

func (h *handlers) socialRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "feeds": h.Social.Refresh()})
}

func (h *handlers) systemInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.Diagnostics.System()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handlers) processInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Diagnostics.Process())
}

func (h *handlers) diskUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.Diagnostics.Disk()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"diskUsage": usage})
}

type writeFileRequest struct {
	Path    string  `json:"path"`
	Content *string `json:"content"`
}

func (h *handlers) listFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Files.List(r.URL.Query().Get("dir"))
	if err != nil {
		writeFileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) readFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	content, err := h.Files.Read(path)
	if err != nil {
		writeFileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content, "path": path})
}

func (h *handlers) writeFile(w http.ResponseWriter, r *http.Request) {
	var req writeFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" || req.Content == nil {
		writeError(w, http.StatusBadRequest, "File path and content required")
		return
	}
	if err := h.Files.Write(req.Path, *req.Content); err != nil {
		writeFileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "path": req.Path})
}

func writeFileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, files.ErrPathRequired):
		writeError(w, http.StatusBadRequest, "File path required")
	case errors.Is(err, files.ErrOutsideWorkspace):
		writeError(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, files.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure is the error shape of the rss and irc routes.
func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
