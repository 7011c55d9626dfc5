package client

import (
	"context"
	"sync"

	"github.com/pederhe/rockets/pkg/rockets/common"
)

// RequestTask is the handle of an asynchronous request or batch. Progress
// callbacks can be added at any time before the task completes.
type RequestTask struct {
	mu        sync.Mutex
	callbacks []common.ProgressCallback

	cancel context.CancelFunc
	done   chan struct{}

	response  common.Response
	responses []common.Response
	err       error
}

func newRequestTask(cancel context.CancelFunc) *RequestTask {
	return &RequestTask{cancel: cancel, done: make(chan struct{})}
}

// AddProgressCallback adds a callback run every time a progress update
// arrives. Callbacks run on the client's loop and must not block.
func (t *RequestTask) AddProgressCallback(fn common.ProgressCallback) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.callbacks = append(t.callbacks, fn)
	t.mu.Unlock()
}

func (t *RequestTask) callProgressCallbacks(progress common.Progress) {
	t.mu.Lock()
	callbacks := append([]common.ProgressCallback(nil), t.callbacks...)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn(progress)
	}
}

// Cancel abandons the wait and tells the server to cancel the request
func (t *RequestTask) Cancel() {
	t.cancel()
}

// Done is closed when the task has completed
func (t *RequestTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task completes or ctx is done. A ctx that expires
// only stops the wait; use Cancel to cancel the request itself.
func (t *RequestTask) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error the task completed with. It is nil while the task
// is still running.
func (t *RequestTask) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Response returns the reply of a single request. It blocks until the task
// has completed.
func (t *RequestTask) Response() (common.Response, error) {
	<-t.done
	return t.response, t.err
}

// Responses returns the replies of a batch in batch order. It blocks until
// the task has completed.
func (t *RequestTask) Responses() ([]common.Response, error) {
	<-t.done
	return t.responses, t.err
}

func (t *RequestTask) finish(response common.Response, responses []common.Response, err error) {
	t.response = response
	t.responses = responses
	t.err = err
	close(t.done)
}
