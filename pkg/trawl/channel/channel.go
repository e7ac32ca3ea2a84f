// Package channel provides an unbounded multi-producer/multi-consumer FIFO
// paired with an exact count of the items currently buffered in it.
//
// A Channel is used for job submission in the worker pool and for result
// propagation from workers back to the scheduler. Unlike len() on a Go
// channel, BufferedCount changes under the same lock as the queue itself,
// so a producer that has returned from Send is always reflected in it.
package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Errors returned by receive operations.
var (
	// ErrEmpty is returned by TryRecv when no item is buffered.
	ErrEmpty = errors.New("channel empty")

	// ErrClosed is returned by Send after Close, and by receive operations
	// once the channel is closed and fully drained.
	ErrClosed = errors.New("channel closed")

	// ErrTimeout is returned by RecvTimeout when no item arrives in time.
	ErrTimeout = errors.New("receive timed out")
)

// Channel is an unbounded FIFO guarded by a mutex, with a wakeup signal for
// blocked receivers and atomic send/receive counters.
// The zero value is not usable; create channels with New.
type Channel[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool

	// ready holds at most one token and is signalled whenever an item is
	// added or the channel is closed.
	ready chan struct{}

	buffered atomic.Int64
	sent     atomic.Int64
	received atomic.Int64
}

// New creates an empty, open channel.
func New[T any]() *Channel[T] {
	return &Channel[T]{
		ready: make(chan struct{}, 1),
	}
}

// Send appends v to the channel. It never blocks.
func (c *Channel[T]) Send(v T) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.items = append(c.items, v)
	c.buffered.Add(1)
	c.sent.Add(1)
	c.mu.Unlock()

	c.signal()
	return nil
}

// TryRecv removes and returns the oldest item without blocking.
// It returns ErrEmpty when nothing is buffered and ErrClosed when the
// channel is closed and drained.
func (c *Channel[T]) TryRecv() (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.popLocked()
}

// RecvTimeout waits up to d for an item.
func (c *Channel[T]) RecvTimeout(d time.Duration) (T, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		v, err := c.TryRecv()
		if !errors.Is(err, ErrEmpty) {
			return v, err
		}

		select {
		case <-c.ready:
		case <-timer.C:
			// One last look: an item may have landed with the signal
			// consumed by a competing receiver.
			v, err := c.TryRecv()
			if errors.Is(err, ErrEmpty) {
				return v, ErrTimeout
			}
			return v, err
		}
	}
}

// Recv blocks until an item is available, the channel is closed and
// drained, or ctx is done.
func (c *Channel[T]) Recv(ctx context.Context) (T, error) {
	for {
		v, err := c.TryRecv()
		if !errors.Is(err, ErrEmpty) {
			return v, err
		}

		select {
		case <-c.ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// BufferedCount returns the number of items sent but not yet received.
func (c *Channel[T]) BufferedCount() int64 {
	return c.buffered.Load()
}

// SentCount returns the total number of successful sends.
func (c *Channel[T]) SentCount() int64 {
	return c.sent.Load()
}

// ReceivedCount returns the total number of successful receives.
// Items discarded by Drain are not counted.
func (c *Channel[T]) ReceivedCount() int64 {
	return c.received.Load()
}

// Drain discards every buffered item and returns how many were dropped.
func (c *Channel[T]) Drain() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items) - c.head
	c.items = nil
	c.head = 0
	c.buffered.Add(-int64(n))
	return n
}

// Close marks the channel closed. Buffered items can still be received.
// Closing an already closed channel is a no-op.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	// Receivers re-check state after every wakeup, so a single token is
	// enough to cascade the close to all of them.
	c.signal()
}

// IsClosed reports whether Close has been called.
func (c *Channel[T]) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// popLocked removes the head item. Must be called with c.mu held.
func (c *Channel[T]) popLocked() (T, error) {
	var zero T
	if c.head == len(c.items) {
		if c.closed {
			c.signal()
			return zero, ErrClosed
		}
		return zero, ErrEmpty
	}

	v := c.items[c.head]
	c.items[c.head] = zero
	c.head++

	// Reclaim the consumed prefix once it dominates the slice.
	if c.head == len(c.items) {
		c.items = c.items[:0]
		c.head = 0
	} else if c.head > 64 && c.head*2 >= len(c.items) {
		c.items = append(c.items[:0], c.items[c.head:]...)
		c.head = 0
	}

	c.buffered.Add(-1)
	c.received.Add(1)

	// Wake another receiver if work remains or the channel is closed.
	if c.head < len(c.items) || c.closed {
		c.signal()
	}
	return v, nil
}

// signal posts a wakeup token without blocking.
func (c *Channel[T]) signal() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}
