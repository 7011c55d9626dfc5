package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pederhe/rockets/pkg/rockets/common"
)

const closeGracePeriod = time.Second

// WebSocketDialer dials Rockets servers using the WebSocket protocol
type WebSocketDialer struct {
	// Header is sent with the opening handshake
	Header http.Header
	// HandshakeTimeout bounds the opening handshake; zero means no limit
	HandshakeTimeout time.Duration
}

// Dial opens a WebSocket connection negotiating the given sub-protocols
func (d *WebSocketDialer) Dial(ctx context.Context, url string, subprotocols []string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		Subprotocols:     subprotocols,
		HandshakeTimeout: d.HandshakeTimeout,
	}

	socket, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket server: %w", err)
	}

	return newWebSocketConn(socket), nil
}

// webSocketConn adapts a gorilla connection to Conn. Gorilla allows one
// concurrent writer, so writes go through writeMu.
type webSocketConn struct {
	socket    *websocket.Conn
	writeMu   sync.Mutex
	open      atomic.Bool
	closeOnce sync.Once
}

func newWebSocketConn(socket *websocket.Conn) *webSocketConn {
	c := &webSocketConn{socket: socket}
	c.open.Store(true)
	return c
}

// WriteText sends a text frame
func (c *webSocketConn) WriteText(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if !c.open.Load() {
		return common.ErrSocketClosed
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.socket.SetWriteDeadline(deadline)
		defer c.socket.SetWriteDeadline(time.Time{})
	}

	if err := c.socket.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write WebSocket message error: %w", err)
	}
	return nil
}

// ReadText returns the next text or binary frame
func (c *webSocketConn) ReadText() ([]byte, error) {
	_, message, err := c.socket.ReadMessage()
	if err != nil {
		c.open.Store(false)
		return nil, fmt.Errorf("read WebSocket message error: %w", err)
	}
	return message, nil
}

// Close performs the closing handshake and releases the socket
func (c *webSocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.open.Store(false)

		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		c.writeMu.Unlock()

		if closeErr := c.socket.Close(); closeErr != nil {
			err = fmt.Errorf("close WebSocket connection error: %w", closeErr)
		}
	})
	return err
}

// IsOpen reports whether the socket is still usable
func (c *webSocketConn) IsOpen() bool {
	return c.open.Load()
}
