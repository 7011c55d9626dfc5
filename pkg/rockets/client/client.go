package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pederhe/rockets/pkg/rockets/common"
)

var (
	// ErrUnknownEnvironment is returned by blocking calls made while the
	// shared loop is busy and the client has no dedicated loop to use
	ErrUnknownEnvironment = errors.New("unknown working environment: blocking call on a running loop")

	// ErrResponseTimeout is returned when a blocking call does not complete
	// within its timeout. The request itself is left running.
	ErrResponseTimeout = errors.New("request was not answered within the given timeout")
)

// Client offers blocking calls on top of an AsyncClient.
//
// If the loop handed in through Options is idle (or none is given), every
// call drives that loop on the calling goroutine until the call completes.
// If the loop is already running elsewhere, the client starts a dedicated
// loop goroutine and hands each call over to it.
type Client struct {
	async     *AsyncClient
	loop      *Loop
	dedicated bool
	stop      context.CancelFunc
	stopped   chan struct{}
}

// NewClient creates a blocking client for url
func NewClient(url string, options *Options) *Client {
	var opts Options
	if options != nil {
		opts = *options
	}

	c := &Client{loop: opts.Loop}
	if c.loop == nil {
		c.loop = NewLoop()
	}

	if c.loop.IsRunning() {
		c.loop = NewLoop()
		c.dedicated = true
		ctx, cancel := context.WithCancel(context.Background())
		c.stop = cancel
		c.stopped = make(chan struct{})
		go func() {
			defer close(c.stopped)
			_ = c.loop.Run(ctx)
		}()
	}

	opts.Loop = c.loop
	c.async = NewAsyncClient(url, &opts)
	return c
}

// Async returns the underlying AsyncClient
func (c *Client) Async() *AsyncClient {
	return c.async
}

// Dedicated reports whether the client runs its own loop goroutine
func (c *Client) Dedicated() bool {
	return c.dedicated
}

// URL returns the normalized address of the server
func (c *Client) URL() string {
	return c.async.URL()
}

// Connected returns true if the WebSocket is connected to the server
func (c *Client) Connected() bool {
	return c.async.Connected()
}

// Connect connects the client to the server
func (c *Client) Connect() error {
	return c.callSync(0, func(ctx context.Context) error {
		return c.async.Connect(ctx)
	})
}

// Disconnect disconnects the client from the server
func (c *Client) Disconnect() error {
	return c.callSync(0, func(ctx context.Context) error {
		if err := c.async.Disconnect(); err != nil {
			return err
		}
		// deliver the closure to outstanding requests
		return c.loop.Call(ctx, func() {})
	})
}

// Send sends any message to the server
func (c *Client) Send(data []byte) error {
	return c.callSync(0, func(ctx context.Context) error {
		return c.async.Send(ctx, data)
	})
}

// Notify invokes method on the server without expecting a response
func (c *Client) Notify(method string, params any) error {
	return c.callSync(0, func(ctx context.Context) error {
		return c.async.Notify(ctx, method, params)
	})
}

// Request invokes method on the server and waits up to timeout for the
// response. A zero timeout waits forever.
func (c *Client) Request(method string, params any, timeout time.Duration) (common.Response, error) {
	var resp common.Response
	err := c.callSync(timeout, func(ctx context.Context) error {
		var err error
		resp, err = c.async.Request(ctx, method, params)
		return err
	})
	return resp, err
}

// Call is Request decoding the result into a generic value
func (c *Client) Call(method string, params any, timeout time.Duration) (any, error) {
	resp, err := c.Request(method, params, timeout)
	if err != nil {
		return nil, err
	}
	return resp.Value()
}

// Batch sends the batch and waits up to timeout for the responses
func (c *Client) Batch(batch common.Batch, timeout time.Duration) ([]common.Response, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	var responses []common.Response
	err := c.callSync(timeout, func(ctx context.Context) error {
		var err error
		responses, err = c.async.Batch(ctx, batch)
		return err
	})
	return responses, err
}

// SubscribeNotifications calls fn for every server notification. With a
// shared loop, fn only runs while a blocking call is driving the loop.
func (c *Client) SubscribeNotifications(fn func(common.Notification)) *Subscription {
	return c.async.SubscribeNotifications(fn)
}

// SubscribeMessages calls fn for every inbound JSON frame
func (c *Client) SubscribeMessages(fn func(json.RawMessage)) *Subscription {
	return c.async.SubscribeMessages(fn)
}

// Close disconnects and stops the dedicated loop, if any
func (c *Client) Close() error {
	err := c.Disconnect()
	if c.dedicated {
		c.stop()
		<-c.stopped
	}
	return err
}

// callSync runs op to completion. The result of an op that outlives its
// timeout is discarded.
func (c *Client) callSync(timeout time.Duration, op func(ctx context.Context) error) error {
	// a shared loop is claimed before op starts, so a rejected call sends nothing
	if !c.dedicated {
		if !c.loop.claim() {
			return ErrUnknownEnvironment
		}
		defer c.loop.release()
	}

	done := make(chan struct{})
	var opErr error
	go func() {
		defer close(done)
		opErr = op(context.Background())
	}()

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if c.dedicated {
		select {
		case <-done:
			return opErr
		case <-ctx.Done():
			return ErrResponseTimeout
		}
	}

	if err := c.loop.drive(ctx, done); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrResponseTimeout
		}
		return err
	}
	return opErr
}
