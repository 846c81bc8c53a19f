package bridge

import (
	"context"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// readLimit leaves room for data URI icons in announcements
const readLimit = 256 << 10

// Conn is the browser end of a tab session
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, f Outbound) error
	Close(reason string) error
}

type wsConn struct {
	conn *websocket.Conn
}

// NewWSConn adapts an accepted WebSocket connection
func NewWSConn(c *websocket.Conn) Conn {
	c.SetReadLimit(readLimit)
	return &wsConn{conn: c}
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, f Outbound) error {
	return wsjson.Write(ctx, c.conn, f)
}

func (c *wsConn) Close(reason string) error {
	return c.conn.Close(websocket.StatusNormalClosure, reason)
}
