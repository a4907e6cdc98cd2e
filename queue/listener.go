// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// roomPollInterval is how often a listener re-checks buffer headroom while
// waiting for space to hold a full batch.
const roomPollInterval = 5 * time.Millisecond

// listener long-polls the remote queue and deposits each fetched message
// into the message buffer. Writes block while the buffer is full, which
// throttles the remote queue naturally.
type listener struct {
	id  int
	log *slog.Logger

	client QueueClient
	conn   Connection

	buffer       *Buffer[Message]
	dequeueLimit int
	pollTimeout  time.Duration

	metrics *metricsRecorder
}

func (l *listener) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Only fetch once the buffer can hold a full batch. Without this
		// gate a fetched batch would sit in client memory outside the
		// buffer and backpressure would stop at the listener instead of
		// the remote queue.
		if err := l.waitForRoom(ctx); err != nil {
			return nil
		}

		msgs, err := l.dequeue(ctx)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			continue
		}

		l.metrics.recordDequeued(ctx, l.conn.QueueName(), len(msgs))
		l.log.DebugContext(
			ctx,
			"dequeued batch",
			ListenerAttr(l.id),
			BatchSizeAttr(len(msgs)),
		)

		for _, msg := range msgs {
			err := l.buffer.Put(ctx, msg)
			if err != nil {
				// Stop was raised mid-batch. Nothing has been acked, so
				// the abandoned remainder redelivers after the visibility
				// timeout.
				return nil
			}
		}
	}
}

func (l *listener) waitForRoom(ctx context.Context) error {
	for l.buffer.Cap()-l.buffer.Len() < l.dequeueLimit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(roomPollInterval):
		}
	}
	return nil
}

// dequeue fetches one batch, retrying transient failures with exponential
// backoff. A [FatalError] is returned to the listener pool, which cancels
// the sibling listeners. On stop it returns no messages and no error.
func (l *listener) dequeue(ctx context.Context) ([]Message, error) {
	var msgs []Message
	op := func() error {
		var err error
		msgs, err = l.client.Dequeue(ctx, l.conn, l.dequeueLimit, l.pollTimeout)
		if err == nil {
			return nil
		}

		var fatal FatalError
		if errors.As(err, &fatal) {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		l.log.WarnContext(
			ctx,
			"failed to dequeue, will retry",
			ListenerAttr(l.id),
			slog.Any("error", err),
		)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if err == nil {
		return msgs, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, nil
	}
	return nil, err
}
