package client

import (
	"context"
	"errors"
	"sync"

	"github.com/pederhe/rockets/pkg/rockets/common"
)

// MockConn implements Conn for testing. Frames pushed with Deliver are
// returned by ReadText in order.
type MockConn struct {
	inbound chan []byte
	closed  chan struct{}

	mutex     sync.Mutex
	sent      [][]byte
	closeOnce sync.Once
}

// NewMockConn creates an open mock connection
func NewMockConn() *MockConn {
	return &MockConn{
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

// WriteText records the frame
func (c *MockConn) WriteText(ctx context.Context, data []byte) error {
	if !c.IsOpen() {
		return common.ErrSocketClosed
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

// ReadText returns the next delivered frame, or an error once closed
func (c *MockConn) ReadText() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, errors.New("mock connection closed")
	}
}

// Close closes the connection
func (c *MockConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// IsOpen reports whether Close has been called
func (c *MockConn) IsOpen() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// Deliver makes the connection receive data
func (c *MockConn) Deliver(data string) {
	c.inbound <- []byte(data)
}

// SentMessages returns a copy of everything written so far
func (c *MockConn) SentMessages() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	out := make([]string, len(c.sent))
	for i, data := range c.sent {
		out[i] = string(data)
	}
	return out
}

// MockDialer hands out MockConns and records how it was called
type MockDialer struct {
	mutex        sync.Mutex
	conns        []*MockConn
	urls         []string
	subprotocols [][]string
	err          error
}

// Dial returns a fresh MockConn, or the configured error
func (d *MockDialer) Dial(ctx context.Context, url string, subprotocols []string) (Conn, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	conn := NewMockConn()
	d.conns = append(d.conns, conn)
	d.urls = append(d.urls, url)
	d.subprotocols = append(d.subprotocols, subprotocols)
	return conn, nil
}

// Dials returns the number of successful dials
func (d *MockDialer) Dials() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.conns)
}

// Last returns the most recent connection
func (d *MockDialer) Last() *MockConn {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}
