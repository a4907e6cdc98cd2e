// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/z5labs/chute"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/semaphore"
)

// Consumer is a handle to a running pipeline. It is created by [Start],
// mutated only by its own listener, worker, and dispatcher tasks, and
// torn down by [Consumer.Stop]. All pipeline state lives here; the
// package holds no process-wide state.
type Consumer struct {
	log  *slog.Logger
	conn Connection

	messages *Buffer[Message]
	done     *Buffer[Message]

	cancel       context.CancelFunc
	pipelineDone chan struct{}

	stopOnce sync.Once
	stopErr  error

	mu  sync.Mutex
	err error
}

// Start connects to queueName and spins up the pipeline: N long-polling
// listeners feeding a bounded message buffer, W workers invoking handler,
// and an ack dispatcher settling completions back to the client.
//
// Misconfiguration and connection failures are reported synchronously;
// everything after Start returns is handled inside the pipeline. The
// returned Consumer is the only legitimate input to Stop.
func Start(ctx context.Context, client QueueClient, queueName string, handler Handler, opts ...Option) (*Consumer, error) {
	if client == nil {
		return nil, errors.New("queue: client must not be nil")
	}
	if queueName == "" {
		return nil, errors.New("queue: queue name must not be empty")
	}
	if handler == nil {
		return nil, errors.New("queue: handler must not be nil")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	o.resolve(queueName)

	err := o.validate()
	if err != nil {
		return nil, err
	}

	log := chute.Logger("github.com/z5labs/chute/queue").With(QueueAttr(queueName))
	if o.messageChannelSize < o.dequeueLimit*o.numListeners {
		log.WarnContext(
			ctx,
			"message buffer holds fewer than one batch per listener, some listeners may starve",
			slog.Int("message_channel_size", o.messageChannelSize),
			slog.Int("dequeue_limit", o.dequeueLimit),
			slog.Int("num_listeners", o.numListeners),
		)
	}

	metrics, err := newMetricsRecorder()
	if err != nil {
		return nil, err
	}

	conn, err := client.MkConnection(ctx, queueName, o.deadLetterQueue)
	if err != nil {
		return nil, fmt.Errorf("queue: failed to connect to %q: %w", queueName, err)
	}

	// pipeCtx survives the stop signal so in-flight handlers can still
	// complete and the dispatcher can flush pending acks while draining.
	pipeCtx := context.WithoutCancel(ctx)
	stopCtx, cancel := context.WithCancel(ctx)

	c := &Consumer{
		log:          log,
		conn:         conn,
		messages:     NewBuffer[Message](o.messageChannelSize),
		done:         NewBuffer[Message](o.numWorkers),
		cancel:       cancel,
		pipelineDone: make(chan struct{}),
	}

	inflight := semaphore.NewWeighted(int64(o.maxConcurrentWork))
	tracer := otel.GetTracerProvider().Tracer("github.com/z5labs/chute/queue")

	listeners := pool.New().WithContext(stopCtx).WithCancelOnError()
	for i := range o.numListeners {
		l := &listener{
			id:           i,
			log:          log,
			client:       client,
			conn:         conn,
			buffer:       c.messages,
			dequeueLimit: o.dequeueLimit,
			pollTimeout:  o.pollTimeout,
			metrics:      metrics,
		}
		listeners.Go(l.run)
	}

	workers := pool.New().WithContext(stopCtx)
	for range o.numWorkers {
		w := &worker{
			log:       log,
			tracer:    tracer,
			queue:     queueName,
			handler:   handler,
			messages:  c.messages,
			done:      c.done,
			inflight:  inflight,
			handleCtx: pipeCtx,
			metrics:   metrics,
		}
		workers.Go(w.run)
	}

	d := &dispatcher{
		log:      log,
		client:   client,
		conn:     conn,
		done:     c.done,
		inflight: inflight,
		metrics:  metrics,
	}
	go func() {
		d.run(pipeCtx)
		close(c.pipelineDone)
	}()

	// Shutdown propagates upstream to downstream: once the listeners are
	// gone the message buffer closes, the workers finish (draining it after
	// a fatal failure, exiting at their next permit request after Stop),
	// and only then does the done channel close so the dispatcher can
	// finish.
	go func() {
		err := listeners.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			c.setErr(err)
			log.ErrorContext(pipeCtx, "listener pool terminated", slog.Any("error", err))
		}

		c.messages.Close()
		_ = workers.Wait()
		c.done.Close()
	}()

	return c, nil
}

// Stop raises the stop signal and drains the pipeline: listeners stop
// fetching, workers finish their in-flight handlers, and the dispatcher
// flushes pending acks before Stop returns. No Ack or Nack occurs
// afterwards. Stop is idempotent; subsequent calls return the first
// call's result without further effect.
func (c *Consumer) Stop() error {
	c.stopOnce.Do(func() {
		c.cancel()
		<-c.pipelineDone
		c.stopErr = c.Err()
	})
	return c.stopErr
}

// MessageChannel exposes the buffer between listeners and workers for
// diagnostics and tests.
func (c *Consumer) MessageChannel() *Buffer[Message] {
	return c.messages
}

// DoneChannel exposes the buffer between handlers and the ack dispatcher
// for diagnostics and tests. Handlers receive it on every invocation.
func (c *Consumer) DoneChannel() *Buffer[Message] {
	return c.done
}

// Done returns a channel which closes once the pipeline has fully
// stopped, whether by [Consumer.Stop] or by a fatal mid-run failure.
func (c *Consumer) Done() <-chan struct{} {
	return c.pipelineDone
}

// Err returns the fatal error which terminated the listener pool, if any.
func (c *Consumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Consumer) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}
