// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
)

// ackRetryLimit bounds how long the dispatcher retries a failing ack or
// nack. A lost ack is self-healing: the message reappears after its
// visibility timeout and the idempotent handler absorbs the duplicate.
const ackRetryLimit = 30 * time.Second

// dispatcher consumes completion signals from the done channel and routes
// each to Ack or Nack on the queue client. It releases one in-flight
// permit per completion, closing the loop opened when a worker took the
// message.
type dispatcher struct {
	log *slog.Logger

	client QueueClient
	conn   Connection

	done     *Buffer[Message]
	inflight *semaphore.Weighted

	metrics *metricsRecorder
}

func (d *dispatcher) run(ctx context.Context) {
	for {
		msg, ok := d.done.next()
		if !ok {
			return
		}

		d.dispatch(ctx, msg)
		d.inflight.Release(1)
		d.metrics.recordWorkCompleted(ctx, d.conn.QueueName())
	}
}

func (d *dispatcher) dispatch(ctx context.Context, msg Message) {
	op := func() error {
		if msg.Nack {
			return d.client.Nack(ctx, d.conn, msg)
		}
		return d.client.Ack(ctx, d.conn, msg)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = ackRetryLimit

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	if err != nil {
		d.log.ErrorContext(
			ctx,
			"failed to settle message, relying on redelivery",
			MessageIDAttr(msg.ID),
			slog.Bool("nack", msg.Nack),
			slog.Any("error", err),
		)
		return
	}

	if msg.Nack {
		d.metrics.recordNacked(ctx, d.conn.QueueName())
	} else {
		d.metrics.recordAcked(ctx, d.conn.QueueName())
	}
}
