// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package queue implements a concurrent message-consumer engine for
// queues with at-least-once delivery semantics: long-poll dequeue,
// visibility timeout, explicit acknowledgment, dead-letter redirection.
//
// The engine decouples three concerns and lets each run at its own rate:
//
//   - Listeners: N long-polling fetchers dequeue batches from the remote
//     queue and deposit messages into a bounded buffer. Writes block when
//     the buffer is full, so backpressure reaches the remote queue.
//   - Workers: W slots invoke the user [Handler] on buffered messages.
//     A separate in-flight limit M >= W admits handler invocations which
//     are suspended on I/O without tying up a worker slot.
//   - Ack dispatcher: consumes completion signals from the done channel
//     and routes each to Ack or Nack on the [QueueClient].
//
// Data flows client -> listener -> message buffer -> worker -> handler ->
// done channel -> dispatcher -> client. Shutdown propagates the same
// direction: listeners stop fetching and the buffer closes, workers finish
// their in-flight handlers, and the dispatcher flushes pending acks. After
// a fatal client failure the workers drain the buffer first. On
// [Consumer.Stop] they do not: a worker exits when it next asks for an
// in-flight permit, and messages left in the buffer are not handled; they
// return to the queue once their visibility timeout expires.
//
// # Two-level concurrency control
//
// The worker count W sizes the CPU budget. The in-flight limit M sizes
// total concurrency including I/O waits. A handler that forks background
// I/O frees its worker slot as soon as it returns control, but holds its
// in-flight permit until the completion lands on the done channel. The
// permit, not goroutine identity, tracks outstanding work; handlers may
// complete from any goroutine.
//
// # Example Usage
//
//	client := sqs.NewFromConfig(awsCfg)
//
//	handler := queue.HandlerFunc(func(ctx context.Context, msg queue.Message, done *queue.Buffer[queue.Message]) {
//	    if err := process(ctx, msg.Body); err != nil {
//	        msg.Nack = true
//	    }
//	    done.Put(ctx, msg)
//	})
//
//	consumer, err := queue.Start(ctx, client, "orders", handler,
//	    queue.WithNumWorkers(8),
//	    queue.WithMaxConcurrentWork(80),
//	)
//	if err != nil {
//	    return err
//	}
//	defer consumer.Stop()
//
// The engine provides no ordering guarantees across messages and no
// exactly-once delivery; handlers must be idempotent.
package queue
