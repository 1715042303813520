package gateway

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sameehj/xweb/pkg/session"
)

const queueFullOutput = "Error: command queue full"

type client struct {
	server *Server
	conn   *session.Connection
	ws     *websocket.Conn

	ctx      context.Context
	cancel   context.CancelFunc
	out      chan any
	commands chan string
	done     chan struct{}
	once     sync.Once
}

func newClient(s *Server, ws *websocket.Conn, remoteAddr string) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		server:   s,
		conn:     session.NewConnection(remoteAddr, ws.Close),
		ws:       ws,
		ctx:      ctx,
		cancel:   cancel,
		out:      make(chan any, outboundQueueSize),
		commands: make(chan string, s.queueSize),
		done:     make(chan struct{}),
	}
}

func (c *client) readLoop() {
	defer c.shutdown()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.readFailed(err)
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		c.server.dispatch(c, data)
	}
}

// readFailed logs why the reader stopped. gorilla answers an oversized frame
// with a 1009 close and the connection cannot be read from afterwards.
func (c *client) readFailed(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.server.logWarn("ws_message_too_large", "id", c.conn.ID, "limit", maxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.server.logDebug("ws_closed", "id", c.conn.ID)
	case errors.Is(err, net.ErrClosed):
		// closed locally by Server.Close or a failed write
		c.server.logDebug("ws_closed_locally", "id", c.conn.ID)
	default:
		c.server.logWarn("ws_read_failed", "id", c.conn.ID, "error", err)
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.server.logWarn("ws_write_failed", "id", c.conn.ID, "error", err)
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.ws.Close()
				return
			}
		}
	}
}

// commandLoop runs queued commands one at a time. A command that is already
// running when the connection closes is left to finish; queued ones are skipped.
func (c *client) commandLoop() {
	for {
		select {
		case <-c.done:
			return
		case raw := <-c.commands:
			if c.closed() {
				return
			}
			c.server.execute(c, raw)
		}
	}
}

// enqueue never blocks the reader. A full queue is answered immediately.
func (c *client) enqueue(command string) {
	select {
	case c.commands <- command:
	default:
		c.server.logWarn("command_queue_full", "id", c.conn.ID, "capacity", cap(c.commands))
		select {
		case c.out <- terminalResult(queueFullOutput):
		default:
		}
	}
}

func (c *client) send(msg any) {
	select {
	case c.out <- msg:
	case <-c.done:
	}
}

func (c *client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *client) shutdown() {
	c.once.Do(func() {
		c.server.registry.Unregister(c.conn.ID)
		close(c.done)
		c.cancel()
		_ = c.ws.Close()
	})
}
