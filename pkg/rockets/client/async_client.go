package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pederhe/rockets/pkg/log"
	"github.com/pederhe/rockets/pkg/rockets/common"
	"go.uber.org/zap"
)

// cancelSendTimeout bounds the cancel notifications sent for an abandoned
// request
const cancelSendTimeout = 5 * time.Second

// Options configures a client
type Options struct {
	// Sub-protocols negotiated on connect; defaults to DefaultSubprotocols
	Subprotocols []string

	// Loop the client runs on. When nil, AsyncClient starts and owns one.
	Loop *Loop

	// Dialer used to open the connection; defaults to a WebSocketDialer
	Dialer Dialer

	// Logger defaults to the pkg/log logger
	Logger *zap.Logger
}

// AsyncClient invokes remote procedures on a Rockets server over one
// WebSocket connection. Requests, notifications, replies and progress
// events share that connection and are told apart by shape and id.
//
// The connection is not established before the first Connect, Send,
// Notify, Request or Batch.
type AsyncClient struct {
	url    string
	logger *zap.Logger

	conn       *connection
	loop       *Loop
	stopLoop   context.CancelFunc
	loopDone   chan struct{}
	closeOnce  sync.Once
	dispatcher *Dispatcher
	pending    *pendingTable
}

// NewAsyncClient creates a client for url. The url is normalized with
// common.SetWSProtocol.
func NewAsyncClient(url string, options *Options) *AsyncClient {
	var opts Options
	if options != nil {
		opts = *options
	}
	if len(opts.Subprotocols) == 0 {
		opts.Subprotocols = DefaultSubprotocols
	}
	if opts.Dialer == nil {
		opts.Dialer = &WebSocketDialer{}
	}
	if opts.Logger == nil {
		opts.Logger = log.L()
	}

	c := &AsyncClient{
		url:        common.SetWSProtocol(url),
		logger:     opts.Logger,
		loop:       opts.Loop,
		dispatcher: newDispatcher(),
	}
	c.pending = newPendingTable(c.dispatcher)

	c.conn = newConnection(c.url, opts.Subprotocols, opts.Dialer, c.logger)
	c.conn.onFrame = c.handleFrame
	c.conn.onClose = func() {
		c.loop.Post(c.dispatcher.complete)
	}

	if c.loop == nil {
		c.loop = NewLoop()
		ctx, cancel := context.WithCancel(context.Background())
		c.stopLoop = cancel
		c.loopDone = make(chan struct{})
		go func() {
			defer close(c.loopDone)
			_ = c.loop.Run(ctx)
		}()
	}

	return c
}

// URL returns the normalized address of the server
func (c *AsyncClient) URL() string {
	return c.url
}

// Loop returns the loop the client runs on
func (c *AsyncClient) Loop() *Loop {
	return c.loop
}

// Connected returns true if the WebSocket is connected to the server
func (c *AsyncClient) Connected() bool {
	return c.conn.Connected()
}

// State returns the connection state
func (c *AsyncClient) State() State {
	return c.conn.State()
}

// Connect connects the client to the server. It does nothing when already
// connected.
func (c *AsyncClient) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Disconnect disconnects the client from the server. Outstanding requests
// fail with common.ErrSocketClosed.
func (c *AsyncClient) Disconnect() error {
	return c.conn.Disconnect()
}

// Close disconnects and stops the loop if the client owns it
func (c *AsyncClient) Close() error {
	err := c.Disconnect()
	c.closeOnce.Do(func() {
		if c.stopLoop == nil {
			return
		}
		// let the loop deliver the closure before it stops
		ctx, cancel := context.WithTimeout(context.Background(), cancelSendTimeout)
		_ = c.loop.Call(ctx, func() {})
		cancel()
		c.stopLoop()
		<-c.loopDone
	})
	return err
}

// Send sends any message to the server
func (c *AsyncClient) Send(ctx context.Context, data []byte) error {
	return c.conn.Send(ctx, data)
}

// Notify invokes method on the server without expecting a response
func (c *AsyncClient) Notify(ctx context.Context, method string, params any) error {
	data, err := common.Encode(common.NewNotification(method, params))
	if err != nil {
		return err
	}
	return c.Send(ctx, data)
}

// Request invokes method on the server and returns its response. If ctx is
// cancelled before the reply arrives a cancel notification is sent and
// ctx.Err() is returned. A reply carrying an error object is returned as a
// *common.RequestError.
func (c *AsyncClient) Request(ctx context.Context, method string, params any) (common.Response, error) {
	return c.AsyncRequest(ctx, method, params).Response()
}

// Batch sends requests and notifications as one frame and returns the
// responses in batch order. Notifications contribute no response.
func (c *AsyncClient) Batch(ctx context.Context, batch common.Batch) ([]common.Response, error) {
	task, err := c.AsyncBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	return task.Responses()
}

// AsyncRequest is Request returning a RequestTask that reports progress
func (c *AsyncClient) AsyncRequest(ctx context.Context, method string, params any) *RequestTask {
	req := common.NewRequest(method, common.NormalizeParams(params))
	return c.start(ctx, func(ctx context.Context, task *RequestTask) {
		c.request(ctx, req, task)
	})
}

// AsyncBatch is Batch returning a RequestTask that reports aggregated
// progress. An invalid batch fails with common.ErrInvalidRequest before
// anything is sent.
func (c *AsyncClient) AsyncBatch(ctx context.Context, batch common.Batch) (*RequestTask, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return c.start(ctx, func(ctx context.Context, task *RequestTask) {
		c.batch(ctx, batch, task)
	}), nil
}

// PendingCount returns the number of unresolved requests and batches
func (c *AsyncClient) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := c.loop.Call(ctx, func() { n = c.pending.Len() })
	return n, err
}

func (c *AsyncClient) start(ctx context.Context, run func(context.Context, *RequestTask)) *RequestTask {
	ctx, cancel := context.WithCancel(ctx)
	task := newRequestTask(cancel)
	go func() {
		defer cancel()
		run(ctx, task)
	}()
	return task
}

func (c *AsyncClient) request(ctx context.Context, req *common.Request, task *RequestTask) {
	data, err := common.Encode(req)
	if err != nil {
		task.finish(common.Response{}, nil, err)
		return
	}
	if err := c.Connect(ctx); err != nil {
		task.finish(common.Response{}, nil, err)
		return
	}

	var op *pendingOperation
	if err := c.loop.Call(ctx, func() {
		op = c.pending.trackRequest(req.ID, task.callProgressCallbacks)
	}); err != nil {
		c.loop.Post(func() { op.resolve(common.Response{}, nil, err) })
		task.finish(common.Response{}, nil, err)
		return
	}

	if err := c.Send(ctx, data); err != nil {
		c.loop.Post(func() { op.resolve(common.Response{}, nil, err) })
		task.finish(common.Response{}, nil, err)
		return
	}

	select {
	case <-op.Done():
		task.finish(op.response, nil, op.err)
	case <-ctx.Done():
		c.sendCancel(req.ID)
		task.finish(common.Response{}, nil, ctx.Err())
	}
}

func (c *AsyncClient) batch(ctx context.Context, batch common.Batch, task *RequestTask) {
	data, err := common.Encode(batch)
	if err != nil {
		task.finish(common.Response{}, nil, err)
		return
	}
	if err := c.Connect(ctx); err != nil {
		task.finish(common.Response{}, nil, err)
		return
	}

	ids := batch.RequestIDs()
	if len(ids) == 0 {
		// notifications only, the server will not reply
		err := c.Send(ctx, data)
		task.finish(common.Response{}, []common.Response{}, err)
		return
	}

	var op *pendingOperation
	if err := c.loop.Call(ctx, func() {
		op = c.pending.trackBatch(ids, task.callProgressCallbacks)
	}); err != nil {
		c.loop.Post(func() { op.resolve(common.Response{}, nil, err) })
		task.finish(common.Response{}, nil, err)
		return
	}

	if err := c.Send(ctx, data); err != nil {
		c.loop.Post(func() { op.resolve(common.Response{}, nil, err) })
		task.finish(common.Response{}, nil, err)
		return
	}

	select {
	case <-op.Done():
		task.finish(common.Response{}, op.responses, op.err)
	case <-ctx.Done():
		for _, id := range ids {
			c.sendCancel(id)
		}
		task.finish(common.Response{}, nil, ctx.Err())
	}
}

func (c *AsyncClient) sendCancel(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelSendTimeout)
	defer cancel()

	if err := c.Notify(ctx, common.MethodCancel, map[string]any{"id": id}); err != nil {
		c.logger.Debug("failed to send cancel", zap.String("id", id), zap.Error(err))
		return
	}
	c.logger.Debug("request cancelled", zap.String("id", id))
}

// handleFrame runs on the reader goroutine. It classifies the frame there
// and hands it to the loop in arrival order.
func (c *AsyncClient) handleFrame(data []byte) {
	ev := Event{Data: data, Frame: common.Classify(data)}
	if ev.Frame.Kind == common.KindMalformed {
		c.logger.Debug("dropping malformed frame", zap.Int("bytes", len(data)))
	}
	c.loop.Post(func() { c.dispatcher.publish(ev) })
}

// Subscription is a live subscription to the inbound stream. It ends when
// unsubscribed or when the connection closes.
type Subscription struct {
	client  *AsyncClient
	dispose func()
	done    chan struct{}
	once    sync.Once
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.client.loop.Post(func() {
		if s.dispose != nil {
			s.dispose()
		}
		s.finish()
	})
}

// Done is closed when the subscription has ended
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) finish() {
	s.once.Do(func() { close(s.done) })
}

func (c *AsyncClient) subscribe(match func(Event) bool, next func(Event)) *Subscription {
	sub := &Subscription{client: c, done: make(chan struct{})}
	c.loop.Post(func() {
		select {
		case <-sub.done:
			return
		default:
		}
		sub.dispose = c.dispatcher.subscribe(&subscription{
			match:    match,
			next:     next,
			complete: sub.finish,
		})
	})
	return sub
}

// SubscribeRaw calls fn with every inbound frame as received, including
// frames that are not JSON. fn runs on the client's loop.
func (c *AsyncClient) SubscribeRaw(fn func(data []byte)) *Subscription {
	return c.subscribe(nil, func(ev Event) { fn(ev.Data) })
}

// SubscribeMessages calls fn with every inbound JSON frame. fn runs on the
// client's loop.
func (c *AsyncClient) SubscribeMessages(fn func(msg json.RawMessage)) *Subscription {
	return c.subscribe(isJSON, func(ev Event) { fn(ev.Frame.Raw) })
}

// SubscribeNotifications calls fn with every notification from the server
// except progress notifications. fn runs on the client's loop.
func (c *AsyncClient) SubscribeNotifications(fn func(notification common.Notification)) *Subscription {
	return c.subscribe(isNotification, func(ev Event) { fn(*ev.Frame.Notification) })
}

// String implements fmt.Stringer
func (c *AsyncClient) String() string {
	return fmt.Sprintf("AsyncClient(%s, %s)", c.url, c.State())
}
