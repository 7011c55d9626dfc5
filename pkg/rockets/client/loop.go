package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrLoopRunning is returned when a loop is asked to run while it already runs
var ErrLoopRunning = errors.New("event loop is already running")

// Loop is a single logical thread of control. Closures posted to it run one
// at a time, in posting order, on whichever goroutine is running the loop.
// State confined to a loop needs no locking.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	running atomic.Bool
}

// NewLoop creates an idle loop
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post schedules fn on the loop. It never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call schedules fn and waits until it has run. It must not be called from
// the loop itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether some goroutine is currently running the loop
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// Run runs the loop on the calling goroutine until ctx is done
func (l *Loop) Run(ctx context.Context) error {
	return l.run(ctx, nil)
}

// RunUntil runs the loop on the calling goroutine until done is closed or
// ctx is done, whichever comes first.
func (l *Loop) RunUntil(ctx context.Context, done <-chan struct{}) error {
	return l.run(ctx, done)
}

func (l *Loop) run(ctx context.Context, done <-chan struct{}) error {
	if !l.claim() {
		return ErrLoopRunning
	}
	defer l.release()
	return l.drive(ctx, done)
}

// claim marks the loop running for the caller. It fails if another
// goroutine already runs it.
func (l *Loop) claim() bool {
	return l.running.CompareAndSwap(false, true)
}

func (l *Loop) release() {
	l.running.Store(false)
}

// drive runs queued work until done is closed or ctx is done. The caller
// must hold the claim.
func (l *Loop) drive(ctx context.Context, done <-chan struct{}) error {
	for {
		for {
			select {
			case <-done:
				return nil
			default:
			}

			fn := l.pop()
			if fn == nil {
				break
			}
			fn()
		}

		select {
		case <-l.wake:
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Loop) pop() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}
