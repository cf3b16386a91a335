package models

import (
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
)

// Conn is the write side of a WebSocket connection. *websocket.Conn
// satisfies it; tests substitute in-memory fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

// Client is one connected subscriber. Writes are serialized through Send
// because the broadcaster and control-message replies may run on different
// goroutines.
type Client struct {
	Id   uuid.UUID `json:"clientid"`
	Conn Conn      `json:"-"`

	mu     sync.Mutex
	closed bool
}

func NewClient(conn Conn) *Client {
	return &Client{Id: uuid.New(), Conn: conn}
}

// Send writes one text frame. After the first write failure the client is
// marked closed and further sends are dropped; cleanup of its subscriptions
// is the disconnect handler's job, not the send path's.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.closed = true
		return err
	}
	return nil
}

// Closed reports whether a previous write already failed.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
