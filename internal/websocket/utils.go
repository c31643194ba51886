package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn serializes writes to one WebSocket connection. Engine callbacks
// (ticks, transcript fragments) and the read loop's replies write
// concurrently; gorilla allows only one writer at a time.
type Conn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewConn wraps a raw connection.
func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(code, errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// ReadMessage reads the next frame with a read deadline. Binary frames
// carry audio chunks; text frames carry JSON actions.
func (c *Conn) ReadMessage() (int, []byte, error) {
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return c.conn.ReadMessage()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
