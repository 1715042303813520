package irc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultPort         = 6667
	DefaultHistoryLimit = 100
	defaultJoinDelay    = 2 * time.Second
	dialTimeout         = 10 * time.Second
	realName            = "xweb IRC client"
)

var privmsgRe = regexp.MustCompile(`^:(.+?)!.+? PRIVMSG (.+?) :(.+)$`)

var ErrInvalidRequest = errors.New("server, nick and channel are required")

type Message struct {
	User      string `json:"user"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type Channel struct {
	Server    string `json:"server"`
	Channel   string `json:"channel"`
	Nick      string `json:"nick"`
	Connected bool   `json:"connected"`
}

// Manager owns every IRC connection and the per-channel message history.
type Manager struct {
	historyLimit int
	joinDelay    time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	conns    []*conn
	messages map[string][]Message
}

func NewManager(historyLimit int) *Manager {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Manager{
		historyLimit: historyLimit,
		joinDelay:    defaultJoinDelay,
		messages:     make(map[string][]Message),
	}
}

func (m *Manager) SetLogger(logger *slog.Logger) {
	m.logger = logger
}

// SetJoinDelay sets how long to wait after registering before joining.
func (m *Manager) SetJoinDelay(d time.Duration) {
	m.joinDelay = d
}

// Connect registers with server and joins channel after the join delay.
func (m *Manager) Connect(ctx context.Context, server string, port int, nick, channel string) error {
	if server == "" || nick == "" || channel == "" {
		return ErrInvalidRequest
	}
	if port <= 0 {
		port = DefaultPort
	}
	dialer := net.Dialer{Timeout: dialTimeout}
	nc, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(server, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("connect %s:%d: %w", server, port, err)
	}
	c := &conn{manager: m, nc: nc, server: server, nick: nick, channel: channel, done: make(chan struct{})}
	if err := c.register(); err != nil {
		_ = nc.Close()
		return err
	}
	c.setConnected(true)

	m.mu.Lock()
	m.conns = append(m.conns, c)
	m.mu.Unlock()

	m.logInfo("irc_connected", "server", server, "port", port, "nick", nick)
	go c.readLoop()
	go c.joinAfter(m.joinDelay)
	return nil
}

// Disconnect quits and drops every connection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conns := m.conns
	m.conns = nil
	m.mu.Unlock()
	for _, c := range conns {
		c.quit()
	}
}

func (m *Manager) Channels() []Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Channel, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, Channel{Server: c.server, Channel: c.channel, Nick: c.nick, Connected: c.isConnected()})
	}
	return out
}

// Messages returns a copy of the history for channel.
func (m *Manager) Messages(channel string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message{}, m.messages[channel]...)
}

// Send writes a PRIVMSG on every connection joined to channel.
func (m *Manager) Send(channel, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sent := false
	for _, c := range m.conns {
		if c.channel == channel && c.isConnected() {
			if err := c.write("PRIVMSG %s :%s", channel, text); err != nil {
				return err
			}
			sent = true
		}
	}
	if !sent {
		return fmt.Errorf("not connected to %s", channel)
	}
	return nil
}

func (m *Manager) record(channel string, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := append(m.messages[channel], msg)
	if len(history) > m.historyLimit {
		history = history[len(history)-m.historyLimit:]
	}
	m.messages[channel] = history
}

func (m *Manager) logInfo(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}

func (m *Manager) logWarn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}

type conn struct {
	manager *Manager
	nc      net.Conn
	server  string
	nick    string
	channel string

	writeMu   sync.Mutex
	stateMu   sync.Mutex
	connected bool
	done      chan struct{}
	closeOnce sync.Once
}

func (c *conn) register() error {
	if err := c.write("NICK %s", c.nick); err != nil {
		return err
	}
	return c.write("USER %s 0 * :%s", c.nick, realName)
}

func (c *conn) joinAfter(d time.Duration) {
	select {
	case <-c.done:
	case <-time.After(d):
		if err := c.write("JOIN %s", c.channel); err != nil {
			c.manager.logWarn("irc_join_failed", "channel", c.channel, "error", err)
		}
	}
}

func (c *conn) readLoop() {
	defer c.close()
	scanner := bufio.NewScanner(c.nc)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, "PING") {
			_ = c.write("PONG%s", strings.TrimPrefix(line, "PING"))
			continue
		}
		if m := privmsgRe.FindStringSubmatch(line); m != nil {
			c.manager.record(m[2], Message{
				User:      m[1],
				Message:   m[3],
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
	c.manager.logInfo("irc_connection_closed", "server", c.server)
}

func (c *conn) write(format string, args ...any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.nc.SetWriteDeadline(time.Now().Add(dialTimeout))
	_, err := fmt.Fprintf(c.nc, format+"\r\n", args...)
	return err
}

func (c *conn) quit() {
	_ = c.write("QUIT :%s", realName)
	c.close()
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.setConnected(false)
		close(c.done)
		_ = c.nc.Close()
	})
}

func (c *conn) setConnected(v bool) {
	c.stateMu.Lock()
	c.connected = v
	c.stateMu.Unlock()
}

func (c *conn) isConnected() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.connected
}
