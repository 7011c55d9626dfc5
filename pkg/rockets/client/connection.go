package client

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// State is the connection state
type State int

// Connection states
const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// connection owns the single duplex connection of a client. It connects
// lazily on the first send and runs one reader per live connection.
type connection struct {
	url          string
	subprotocols []string
	dialer       Dialer
	logger       *zap.Logger

	// onFrame and onClose are called from the reader goroutine
	onFrame func(data []byte)
	onClose func()

	mu         sync.Mutex
	state      State
	conn       Conn
	readerDone chan struct{}
	dialing    *dialAttempt
}

// dialAttempt is a dial in progress. err is set before done is closed.
type dialAttempt struct {
	done chan struct{}
	err  error
}

func newConnection(url string, subprotocols []string, dialer Dialer, logger *zap.Logger) *connection {
	return &connection{
		url:          url,
		subprotocols: subprotocols,
		dialer:       dialer,
		logger:       logger,
		onFrame:      func([]byte) {},
		onClose:      func() {},
	}
}

// Connect opens the connection unless it is already live. Concurrent
// callers share one dial.
func (c *connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	for {
		if c.conn != nil && c.conn.IsOpen() {
			c.mu.Unlock()
			return nil
		}
		if c.dialing == nil {
			break
		}
		attempt := c.dialing
		c.mu.Unlock()
		select {
		case <-attempt.done:
			if attempt.err != nil {
				return attempt.err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
	}

	attempt := &dialAttempt{done: make(chan struct{})}
	c.dialing = attempt
	c.state = Connecting
	old, oldReader := c.conn, c.readerDone
	c.conn = nil
	c.mu.Unlock()

	if old != nil {
		// the old reader must report the closure before a new stream starts
		old.Close()
		<-oldReader
	}
	conn, err := c.dialer.Dial(ctx, c.url, c.subprotocols)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialing = nil
	attempt.err = err
	close(attempt.done)

	if err != nil {
		c.state = Disconnected
		c.logger.Debug("connect failed", zap.String("url", c.url), zap.Error(err))
		return err
	}

	c.conn = conn
	c.state = Connected
	c.readerDone = make(chan struct{})
	c.logger.Debug("connected", zap.String("url", c.url), zap.Strings("subprotocols", c.subprotocols))

	go c.readLoop(conn, c.readerDone)
	return nil
}

// Disconnect closes the connection and waits for its reader to stop. A dial
// in progress is allowed to finish first.
func (c *connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.dialing != nil {
		attempt := c.dialing
		c.mu.Unlock()
		<-attempt.done
		c.mu.Lock()
	}

	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	c.state = Disconnected

	err := conn.Close()
	<-c.readerDone
	c.logger.Debug("disconnected", zap.String("url", c.url))
	return err
}

// Send writes data, connecting first if needed
func (c *connection) Send(ctx context.Context, data []byte) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("failed to send: not connected")
	}

	if err := conn.WriteText(ctx, data); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

// Connected reports the live socket state
func (c *connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.IsOpen()
}

// State returns the current state
func (c *connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Connected && (c.conn == nil || !c.conn.IsOpen()) {
		return Disconnected
	}
	return c.state
}

// readLoop never takes c.mu, so Connect and Disconnect may wait for it
func (c *connection) readLoop(conn Conn, done chan struct{}) {
	defer close(done)

	for {
		data, err := conn.ReadText()
		if err != nil {
			c.logger.Debug("connection closed", zap.String("url", c.url), zap.Error(err))
			c.onClose()
			return
		}
		c.onFrame(data)
	}
}
