package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sameehj/xweb/pkg/gateway"
)

// Client submits terminal commands over a server's message channel.
type Client struct {
	conn    *websocket.Conn
	timeout time.Duration
}

// Dial connects to a channel URL such as ws://127.0.0.1:3000/.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	conn, err := dialWebSocket(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Run sends one command and waits for its result. Envelopes of other types
// are skipped.
func (c *Client) Run(command string) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", errors.New("command is required")
	}
	msg := gateway.CommandEnvelope{Type: gateway.KindTerminal, Command: command}
	if err := writeWSMessage(c.conn, msg); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}
	if c.timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	for {
		var resp gateway.ResultEnvelope
		if err := readWSMessage(c.conn, &resp); err != nil {
			return "", fmt.Errorf("read result: %w", err)
		}
		if resp.Type == gateway.KindTerminal {
			return resp.Output, nil
		}
	}
}

// Interactive runs each non-empty line of in and prints the result to out
// until in is exhausted or a line reads "exit".
func (c *Client) Interactive(in io.Reader, out io.Writer, prompt string) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt != "" {
			fmt.Fprint(out, prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" {
			return nil
		}
		output, err := c.Run(line)
		if err != nil {
			return err
		}
		fmt.Fprint(out, output)
		if output != "" && !strings.HasSuffix(output, "\n") {
			fmt.Fprintln(out)
		}
	}
}

func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}
