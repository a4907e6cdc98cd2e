// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"log/slog"

	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// worker owns one of the W worker slots. It repeatedly acquires an
// in-flight permit, takes a message from the buffer, and invokes the
// handler. The slot frees as soon as the handler returns control; the
// permit is held until the handler's completion lands on the done channel
// and is consumed by the dispatcher.
type worker struct {
	log    *slog.Logger
	tracer trace.Tracer

	queue   string
	handler Handler

	messages *Buffer[Message]
	done     *Buffer[Message]
	inflight *semaphore.Weighted

	// handleCtx outlives the stop signal so handlers finishing during
	// shutdown can still write their completion.
	handleCtx context.Context

	metrics *metricsRecorder
}

func (w *worker) run(ctx context.Context) error {
	for {
		// The permit gates the buffer read so a message is only removed
		// once the pipeline has room to track it in flight. On stop,
		// workers parked here exit; anything still buffered redelivers
		// via the visibility timeout.
		if err := w.inflight.Acquire(ctx, 1); err != nil {
			return nil
		}

		msg, ok := w.messages.next()
		if !ok {
			w.inflight.Release(1)
			return nil
		}

		w.process(msg)
	}
}

func (w *worker) process(msg Message) {
	spanCtx, span := w.tracer.Start(
		w.handleCtx,
		"process "+w.queue,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingOperationTypeProcess,
			semconv.MessagingDestinationName(w.queue),
		),
	)
	defer span.End()

	w.metrics.recordWorkStarted(spanCtx, w.queue)

	defer func() {
		r := recover()
		if r == nil {
			return
		}

		w.log.ErrorContext(
			spanCtx,
			"handler panicked, nacking message",
			MessageIDAttr(msg.ID),
			slog.Any("panic", r),
		)
		w.metrics.recordHandlerFailure(spanCtx, w.queue)

		// Complete on the handler's behalf so the permit is not leaked
		// and the message redelivers promptly instead of waiting out its
		// visibility timeout.
		msg.Nack = true
		_ = w.done.Put(w.handleCtx, msg)
	}()

	w.handler.Handle(spanCtx, msg, w.done)
	w.metrics.recordProcessed(spanCtx, w.queue)
}
