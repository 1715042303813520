package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sameehj/xweb/internal/testutil"
	"github.com/sameehj/xweb/pkg/diagnostics"
	"github.com/sameehj/xweb/pkg/exec"
	"github.com/sameehj/xweb/pkg/files"
	"github.com/sameehj/xweb/pkg/gateway"
	"github.com/sameehj/xweb/pkg/irc"
	"github.com/sameehj/xweb/pkg/rss"
	"github.com/sameehj/xweb/pkg/runtime/logging"
	"github.com/sameehj/xweb/pkg/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedXML = `<rss><channel><item><title>One</title><link>https://example.com/1</link></item></channel></rss>`

type echoRunner struct{}

func (echoRunner) Execute(command string) exec.Outcome {
	return exec.Outcome{Status: exec.StatusSuccess, Output: "ran:" + command}
}

type fixture struct {
	router http.Handler
	root   string
	static string
	origin *httptest.Server
	reader *rss.Reader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, _ := testutil.NewStore(t)
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedXML))
	}))
	t.Cleanup(origin.Close)

	root := t.TempDir()
	ws, err := files.NewWorkspace(root, 16, 2)
	require.NoError(t, err)

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>xweb</h1>"), 0o644))

	channel := gateway.NewServer(echoRunner{}, nil)
	t.Cleanup(func() { _ = channel.Close() })

	reader := rss.NewReader(store, origin.Client())
	router := NewRouter(Services{
		Channel:     channel,
		Sessions:    channel.Registry(),
		Feeds:       reader,
		IRC:         irc.NewManager(10),
		Social:      social.NewService(),
		Diagnostics: diagnostics.NewCollector(echoRunner{}),
		Files:       ws,
		StaticDir:   static,
		Logger:      logging.Discard(),
	})
	return &fixture{router: router, root: root, static: static, origin: origin, reader: reader}
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[healthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Sessions)
	assert.Empty(t, resp.Connections)
}

func TestHealthListsOpenConnections(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.router)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var resp healthResponse
	require.Eventually(t, func() bool {
		rec := f.do(t, "GET", "/healthz", nil)
		resp = healthResponse{}
		return json.Unmarshal(rec.Body.Bytes(), &resp) == nil && resp.Sessions == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Len(t, resp.Connections, 1)
	assert.NotEmpty(t, resp.Connections[0].ID)
	assert.False(t, resp.Connections[0].StartedAt.IsZero())
}

func TestRSSRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/rss/add", addFeedRequest{Name: "Example", URL: f.origin.URL + "/feed.xml"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	added := decode[rss.Feed](t, rec)
	assert.Equal(t, "Example", added.Name)

	rec = f.do(t, "GET", "/api/rss/feeds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feeds := decode[[]rss.Feed](t, rec)
	require.Len(t, feeds, 1)
	require.Len(t, feeds[0].Items, 1)
	assert.Equal(t, "One", feeds[0].Items[0].Title)

	rec = f.do(t, "POST", "/api/rss/add", addFeedRequest{Name: "", URL: "ftp://nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["success"])

	rec = f.do(t, "DELETE", "/api/rss/remove/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Feed not found", decode[map[string]any](t, rec)["error"])

	rec = f.do(t, "DELETE", "/api/rss/remove/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "DELETE", "/api/rss/remove/"+strconv.FormatInt(added.ID, 10), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["success"])
}

func TestIRCRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/irc/channels", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = f.do(t, "POST", "/api/irc/connect", connectRequest{Server: "", Nick: "x", Channel: "#go"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["success"])

	rec = f.do(t, "GET", "/api/irc/messages/%23go", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = f.do(t, "POST", "/api/irc/disconnect", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSocialRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/social/feeds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]social.Feed](t, rec), 2)

	rec = f.do(t, "POST", "/api/social/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool          `json:"success"`
		Feeds   []social.Feed `json:"feeds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	for _, feed := range resp.Feeds {
		assert.NotEmpty(t, feed.LastUpdated)
	}
}

func TestDiagnosticsRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/diagnostics/system", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[diagnostics.SystemInfo](t, rec).Platform)

	rec = f.do(t, "GET", "/api/diagnostics/process", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Positive(t, decode[diagnostics.ProcessInfo](t, rec).PID)

	rec = f.do(t, "GET", "/api/diagnostics/disk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(decode[map[string]string](t, rec)["diskUsage"], "ran:"))
}

func TestFileRoutes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "big.txt"), []byte(strings.Repeat("x", 64)), 0o644))

	content := "hello"
	rec := f.do(t, "POST", "/api/files/write", writeFileRequest{Path: "notes.txt", Content: &content})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, "GET", "/api/files/read?path=notes.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", decode[map[string]string](t, rec)["content"])

	rec = f.do(t, "GET", "/api/files/list", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]files.Entry](t, rec), 2)

	cases := []struct {
		name   string
		method string
		target string
		body   any
		status int
		msg    string
	}{
		{"read missing path", "GET", "/api/files/read", nil, http.StatusBadRequest, "File path required"},
		{"read outside", "GET", "/api/files/read?path=../../etc/passwd", nil, http.StatusForbidden, "Access denied"},
		{"read too large", "GET", "/api/files/read?path=big.txt", nil, http.StatusRequestEntityTooLarge, "File too large"},
		{"write without content", "POST", "/api/files/write", map[string]string{"path": "a.txt"}, http.StatusBadRequest, "File path and content required"},
		{"write outside", "POST", "/api/files/write", writeFileRequest{Path: "../escape.txt", Content: &content}, http.StatusForbidden, "Access denied"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.target, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.msg, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestStaticFiles(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>xweb</h1>")
}

func TestWebSocketUpgradeOnRoot(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.router)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(gateway.CommandEnvelope{Type: gateway.KindTerminal, Command: "ls; rm -rf /"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var result gateway.ResultEnvelope
	require.NoError(t, conn.ReadJSON(&result))
	assert.Equal(t, "terminal", result.Type)
	assert.Equal(t, "ran:ls", result.Output)
}
