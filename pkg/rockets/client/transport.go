package client

import "context"

// DefaultSubprotocols is negotiated when no sub-protocols are configured
var DefaultSubprotocols = []string{"rockets"}

// Conn is one duplex connection to a Rockets server.
type Conn interface {
	// WriteText writes one frame. Concurrent writes are serialized and
	// never reordered. Writing to a closed connection fails.
	WriteText(ctx context.Context, data []byte) error

	// ReadText blocks for the next frame. It returns an error once the
	// connection is closed for any reason.
	ReadText() ([]byte, error)

	// Close closes the connection.
	Close() error

	// IsOpen reports the live socket state.
	IsOpen() bool
}

// Dialer opens connections. Implementations must not impose a message size
// limit or an idle timeout.
type Dialer interface {
	Dial(ctx context.Context, url string, subprotocols []string) (Conn, error)
}
