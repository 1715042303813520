package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sameehj/xweb/pkg/exec"
	"github.com/sameehj/xweb/pkg/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultQueueSize  = 16
	outboundQueueSize = 32

	// maxMessageSize caps one inbound frame.
	maxMessageSize = 1 << 20
)

// Runner executes one already-sanitized command.
type Runner interface {
	Execute(command string) exec.Outcome
}

// HandlerFunc answers an envelope of a registered type. A nil reply sends
// nothing back.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Server is the persistent message channel. Each connection gets a reader,
// a writer draining a FIFO queue, and a command worker that runs that
// connection's commands one at a time in arrival order.
type Server struct {
	runner      Runner
	registry    *session.Registry
	upgrader    websocket.Upgrader
	queueSize   int
	maxSessions int
	active      atomic.Int64
	logger      *slog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewServer(runner Runner, registry *session.Registry) *Server {
	if registry == nil {
		registry = session.NewRegistry()
	}
	return &Server{
		runner:    runner,
		registry:  registry,
		queueSize: defaultQueueSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		handlers: make(map[string]HandlerFunc),
	}
}

func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *Server) SetMaxSessions(max int) {
	s.maxSessions = max
}

// SetQueueSize bounds how many commands one connection may have waiting.
func (s *Server) SetQueueSize(size int) {
	if size > 0 {
		s.queueSize = size
	}
}

// Handle registers a handler for an envelope type other than terminal.
func (s *Server) Handle(kind string, fn HandlerFunc) {
	if kind == KindTerminal {
		panic("gateway: terminal envelopes are handled by the server")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = fn
}

func (s *Server) Registry() *session.Registry {
	return s.registry
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.reserve() {
		s.logWarn("session_limit_reached", "remote", r.RemoteAddr, "limit", s.maxSessions)
		http.Error(w, "too many sessions", http.StatusServiceUnavailable)
		return
	}
	defer s.active.Add(-1)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logWarn("ws_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(s, ws, r.RemoteAddr)
	s.registry.Register(c.conn)
	s.logInfo("session_start", "id", c.conn.ID, "remote", c.conn.RemoteAddr)

	go c.writeLoop()
	go c.commandLoop()
	c.readLoop()

	s.logInfo("session_end", "id", c.conn.ID, "remote", c.conn.RemoteAddr,
		"duration", time.Since(c.conn.StartedAt).Round(time.Millisecond))
}

// reserve claims a session slot before the upgrade so concurrent dials
// cannot overshoot maxSessions.
func (s *Server) reserve() bool {
	for {
		n := s.active.Load()
		if s.maxSessions > 0 && n >= int64(s.maxSessions) {
			return false
		}
		if s.active.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Close tears down every open connection. In-flight commands keep running
// until they finish or time out; their results are discarded.
func (s *Server) Close() error {
	errs := s.registry.CloseAll()
	if len(errs) > 0 {
		return fmt.Errorf("close sessions: %v", errs)
	}
	return nil
}

func (s *Server) dispatch(c *client, data []byte) {
	kind, err := decodeHeader(data)
	if err != nil {
		s.logWarn("ws_malformed_message", "id", c.conn.ID, "error", err)
		return
	}

	if kind == KindTerminal {
		env, err := decodeCommand(data)
		if err != nil {
			s.logWarn("ws_malformed_message", "id", c.conn.ID, "type", kind, "error", err)
			return
		}
		c.enqueue(env.Command)
		return
	}

	s.mu.RLock()
	fn, ok := s.handlers[kind]
	s.mu.RUnlock()
	if !ok {
		s.logWarn("ws_unknown_type", "id", c.conn.ID, "type", kind)
		return
	}
	go s.runHandler(c, kind, fn, data)
}

func (s *Server) runHandler(c *client, kind string, fn HandlerFunc, data []byte) {
	reply, err := fn(c.ctx, json.RawMessage(data))
	if err != nil {
		s.logWarn("ws_handler_failed", "id", c.conn.ID, "type", kind, "error", err)
		return
	}
	if reply != nil {
		s.deliver(c, reply)
	}
}

func (s *Server) execute(c *client, raw string) {
	command := exec.Sanitize(raw)
	if command != raw {
		s.logDebug("command_sanitized", "id", c.conn.ID, "raw", raw, "command", command)
	}
	outcome := s.runner.Execute(command)
	s.logInfo("command_finished", "id", c.conn.ID, "command", command,
		"status", string(outcome.Status), "exit_code", outcome.ExitCode,
		"truncated", outcome.Truncated, "duration", outcome.Duration.Round(time.Millisecond))
	s.deliver(c, terminalResult(outcome.Text()))
}

// deliver sends msg to c only while the registry still reports it open.
func (s *Server) deliver(c *client, msg any) {
	if !s.registry.IsOpen(c.conn.ID) {
		s.logDebug("result_discarded", "id", c.conn.ID)
		return
	}
	c.send(msg)
}

func (s *Server) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Server) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Server) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
