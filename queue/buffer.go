// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by [Buffer.Put] once [Buffer.Close] has been called.
var ErrClosed = errors.New("queue: buffer closed")

// Buffer is a bounded FIFO coupling two pipeline stages.
//
// Writers block while the buffer is full, which is how backpressure
// propagates upstream to the remote queue. Close is one-way and
// idempotent: readers observe the remaining items followed by
// end-of-stream, and any write racing or following the close fails with
// [ErrClosed] instead of panicking.
type Buffer[T any] struct {
	ch chan T

	closeOnce sync.Once
	closed    chan struct{}
}

// NewBuffer returns an empty buffer holding at most capacity items.
func NewBuffer[T any](capacity int) *Buffer[T] {
	return &Buffer[T]{
		ch:     make(chan T, capacity),
		closed: make(chan struct{}),
	}
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return cap(b.ch)
}

// Len returns the number of items currently buffered.
func (b *Buffer[T]) Len() int {
	return len(b.ch)
}

// Full reports whether a Put would block.
func (b *Buffer[T]) Full() bool {
	return len(b.ch) == cap(b.ch)
}

// Closed reports whether Close has been called.
func (b *Buffer[T]) Closed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

// Close marks the buffer closed. Items already buffered remain readable.
func (b *Buffer[T]) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)
		close(b.ch)
	})
}

// Put appends v, blocking while the buffer is full. It returns ctx.Err()
// if ctx is done first, or [ErrClosed] if the buffer was closed before or
// during the write.
func (b *Buffer[T]) Put(ctx context.Context, v T) (err error) {
	// Close can race a blocked send; the send then panics on the closed
	// channel and is converted to ErrClosed here.
	defer func() {
		if recover() != nil {
			err = ErrClosed
		}
	}()

	select {
	case <-b.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case b.ch <- v:
		return nil
	}
}

// TryPut appends v without blocking. It reports whether v was buffered.
func (b *Buffer[T]) TryPut(v T) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case <-b.closed:
		return false
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// Get removes and returns the oldest item. It blocks until an item is
// available, the buffer is closed and drained (ok is false), or ctx is
// done (ok is false).
func (b *Buffer[T]) Get(ctx context.Context) (T, bool) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, false
	case v, ok := <-b.ch:
		return v, ok
	}
}

// next removes and returns the oldest item, blocking until one is
// available or the buffer is closed and drained. Unlike Get it cannot be
// interrupted, which is exactly what the draining stages of the pipeline
// want during shutdown.
func (b *Buffer[T]) next() (T, bool) {
	v, ok := <-b.ch
	return v, ok
}
