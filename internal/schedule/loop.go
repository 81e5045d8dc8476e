package schedule

import (
	"context"
	"errors"
	"sync"
)

// defaultQueueSize bounds the number of closures waiting for the loop.
const defaultQueueSize = 64

// ErrLoopClosed is returned when work is submitted to a closed loop.
var ErrLoopClosed = errors.New("event loop closed")

// Loop runs posted closures one at a time on a single goroutine.
type Loop struct {
	// events queues closures for the loop goroutine.
	events chan func()
	// done is closed when the loop stops accepting work.
	done chan struct{}
	// finished is closed when Run returns.
	finished chan struct{}

	closeOnce sync.Once
	runOnce   sync.Once
}

// NewLoop creates a loop that is not running yet.
func NewLoop() *Loop {
	return &Loop{
		events:   make(chan func(), defaultQueueSize),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Run executes posted closures until ctx is cancelled or Close is called.
// Only the first call runs the loop; later calls return immediately.
func (l *Loop) Run(ctx context.Context) {
	ran := false

	l.runOnce.Do(func() {
		ran = true
	})

	if !ran {
		return
	}

	defer close(l.finished)
	defer l.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case fn := <-l.events:
			fn()
		}
	}
}

// Post queues fn for execution on the loop. It reports false if the loop is closed.
// Post must not be called from the loop goroutine while the queue may be full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.events <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	completed := make(chan struct{})

	if !l.Post(func() {
		defer close(completed)
		fn()
	}) {
		return ErrLoopClosed
	}

	select {
	case <-completed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// The closure may have run right before the loop stopped.
		select {
		case <-completed:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}

// Done is closed once the loop stops accepting work.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Close stops the loop. Closures still queued are dropped.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
	})
}

// Wait blocks until Run has returned or ctx is done.
func (l *Loop) Wait(ctx context.Context) error {
	select {
	case <-l.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
