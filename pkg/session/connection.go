package session

import (
	"time"

	"github.com/google/uuid"
)

// Connection tracks a single open channel to one browser client.
type Connection struct {
	ID         string
	RemoteAddr string
	StartedAt  time.Time

	close func() error
}

// NewConnection returns a connection with a fresh identity. closeFn, when
// non-nil, is used by Registry.CloseAll to tear the channel down.
func NewConnection(remoteAddr string, closeFn func() error) *Connection {
	return &Connection{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		StartedAt:  time.Now(),
		close:      closeFn,
	}
}

func (c *Connection) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}
