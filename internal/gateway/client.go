package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// maxWSMessageSize bounds inbound messages. The realtime channel is
// push-only; clients have no business sending anything large.
const maxWSMessageSize = 4 * 1024

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Client is one live realtime subscription, annotated with the credential id
// that authenticated it. That id is the only value the revocation sweep ever
// compares.
type Client struct {
	id      string
	tokenID string
	conn    *websocket.Conn
	send    chan []byte

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, tokenID string) *Client {
	return &Client{
		id:      uuid.NewString(),
		tokenID: tokenID,
		conn:    conn,
		send:    make(chan []byte, 64),
	}
}

// ID returns the connection's unique identifier.
func (c *Client) ID() string { return c.id }

// TokenID returns the credential id bound at connect time.
func (c *Client) TokenID() string { return c.tokenID }

// readPump drains inbound frames so control messages are processed and a
// dead peer is detected. Returns when the connection closes.
func (c *Client) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxWSMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("realtime read error", "client", c.id, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

// writePump writes queued events and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue hands a marshaled frame to the write pump without blocking.
func (c *Client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
		slog.Warn("realtime send buffer full, dropping event", "client", c.id)
	}
}

// close shuts the connection down. Idempotent: the revocation sweep and the
// read pump may both reach it.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
