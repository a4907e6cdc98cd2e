// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package queuetest provides an in-memory queue.QueueClient for tests
// and local development.
//
// The client mimics the observable semantics of a hosted queue with
// at-least-once delivery: dequeues long-poll, every delivery attempt
// carries a fresh receipt handle, nacked messages are requeued, and
// ack/nack counts are recorded for assertions.
package queuetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/z5labs/chute/queue"

	"github.com/google/uuid"
)

// pollInterval is how often a blocked Dequeue re-checks for messages.
const pollInterval = 2 * time.Millisecond

// Client is an in-memory implementation of [queue.QueueClient].
// It is safe for concurrent use.
type Client struct {
	mu     sync.Mutex
	queues map[string]*Queue
}

// NewClient returns a Client with no queues. Queues are created on
// demand by [Client.Queue] and [Client.MkConnection].
func NewClient() *Client {
	return &Client{
		queues: make(map[string]*Queue),
	}
}

// Queue returns the named queue, creating it if necessary.
func (c *Client) Queue(name string) *Queue {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[name]
	if !ok {
		q = &Queue{name: name}
		c.queues[name] = q
	}
	return q
}

type connection struct {
	queueName   string
	dlQueueName string
}

func (c *connection) QueueName() string {
	return c.queueName
}

func (c *connection) DeadLetterQueueName() string {
	return c.dlQueueName
}

// MkConnection implements the [queue.QueueClient] interface.
func (c *Client) MkConnection(ctx context.Context, queueName, deadLetterQueueName string) (queue.Connection, error) {
	c.Queue(queueName)
	c.Queue(deadLetterQueueName)
	return &connection{
		queueName:   queueName,
		dlQueueName: deadLetterQueueName,
	}, nil
}

// Dequeue implements the [queue.QueueClient] interface. It long-polls the
// queue until at least one message is available, pollTimeout elapses, or
// ctx is done.
func (c *Client) Dequeue(ctx context.Context, conn queue.Connection, maxCount int, pollTimeout time.Duration) ([]queue.Message, error) {
	q := c.Queue(conn.QueueName())

	err := q.takeErr()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(pollTimeout)
	for {
		msgs := q.take(maxCount)
		if len(msgs) > 0 {
			return msgs, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Ack implements the [queue.QueueClient] interface.
func (c *Client) Ack(ctx context.Context, conn queue.Connection, msg queue.Message) error {
	c.Queue(conn.QueueName()).ack(msg)
	return nil
}

// Nack implements the [queue.QueueClient] interface. The message is
// requeued at the back of the queue for redelivery.
func (c *Client) Nack(ctx context.Context, conn queue.Connection, msg queue.Message) error {
	c.Queue(conn.QueueName()).nack(msg)
	return nil
}

// Queue is a single in-memory queue.
type Queue struct {
	mu sync.Mutex

	name    string
	pending []queue.Message

	receiveCounts map[string]int
	delivered     int

	acked  []queue.Message
	nacked []queue.Message

	dequeueErr error
}

// Enqueue adds a message with the given body and returns its id.
func (q *Queue) Enqueue(body []byte) string {
	return q.EnqueueMessage(queue.Message{Body: body})
}

// EnqueueMessage adds msg, assigning an id if it has none, and returns
// the id.
func (q *Queue) EnqueueMessage(msg queue.Message) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	q.pending = append(q.pending, msg)
	return msg.ID
}

// FailDequeues makes every subsequent Dequeue return err until called
// again with nil.
func (q *Queue) FailDequeues(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dequeueErr = err
}

// Len returns the number of messages waiting for delivery.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// DeliveredCount returns the number of deliveries made so far, counting
// each redelivery separately.
func (q *Queue) DeliveredCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.delivered
}

// AckCount returns the number of messages acknowledged so far.
func (q *Queue) AckCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked)
}

// NackCount returns the number of messages negatively acknowledged so far.
func (q *Queue) NackCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.nacked)
}

// Acked returns a copy of every acknowledged message, in settle order.
func (q *Queue) Acked() []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queue.Message, len(q.acked))
	copy(out, q.acked)
	return out
}

// Nacked returns a copy of every negatively acknowledged message, in
// settle order.
func (q *Queue) Nacked() []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]queue.Message, len(q.nacked))
	copy(out, q.nacked)
	return out
}

func (q *Queue) takeErr() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dequeueErr
}

func (q *Queue) take(maxCount int) []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := min(maxCount, len(q.pending))
	if n == 0 {
		return nil
	}

	if q.receiveCounts == nil {
		q.receiveCounts = make(map[string]int)
	}

	msgs := make([]queue.Message, n)
	copy(msgs, q.pending[:n])
	q.pending = q.pending[n:]

	q.delivered += n
	for i := range msgs {
		q.receiveCounts[msgs[i].ID]++
		msgs[i].ReceiveCount = q.receiveCounts[msgs[i].ID]
		msgs[i].ReceiptHandle = fmt.Sprintf("%s#%d", msgs[i].ID, msgs[i].ReceiveCount)
	}
	return msgs
}

func (q *Queue) ack(msg queue.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, msg)
}

func (q *Queue) nack(msg queue.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nacked = append(q.nacked, msg)

	// Redeliver with the nack decision cleared so the next handler
	// invocation starts fresh.
	msg.Nack = false
	msg.ReceiptHandle = ""
	q.pending = append(q.pending, msg)
}
