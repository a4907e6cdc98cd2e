// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queuetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_Dequeue(t *testing.T) {
	t.Run("will return buffered messages", func(t *testing.T) {
		client := NewClient()
		q := client.Queue("orders")
		q.Enqueue([]byte("a"))
		q.Enqueue([]byte("b"))
		q.Enqueue([]byte("c"))

		conn, err := client.MkConnection(context.Background(), "orders", "orders-failed")
		require.NoError(t, err)

		msgs, err := client.Dequeue(context.Background(), conn, 2, time.Second)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		require.Equal(t, []byte("a"), msgs[0].Body)
		require.Equal(t, []byte("b"), msgs[1].Body)
		require.Equal(t, 1, q.Len())
	})

	t.Run("will assign a fresh receipt handle per delivery", func(t *testing.T) {
		client := NewClient()
		q := client.Queue("orders")
		q.Enqueue([]byte("a"))

		conn, err := client.MkConnection(context.Background(), "orders", "orders-failed")
		require.NoError(t, err)

		msgs, err := client.Dequeue(context.Background(), conn, 1, time.Second)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.Equal(t, 1, msgs[0].ReceiveCount)
		first := msgs[0].ReceiptHandle

		require.NoError(t, client.Nack(context.Background(), conn, msgs[0]))

		msgs, err = client.Dequeue(context.Background(), conn, 1, time.Second)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.Equal(t, 2, msgs[0].ReceiveCount)
		require.NotEqual(t, first, msgs[0].ReceiptHandle)
		require.False(t, msgs[0].Nack)
	})

	t.Run("will return nothing", func(t *testing.T) {
		t.Run("if the queue stays empty for the whole poll", func(t *testing.T) {
			client := NewClient()

			conn, err := client.MkConnection(context.Background(), "orders", "orders-failed")
			require.NoError(t, err)

			msgs, err := client.Dequeue(context.Background(), conn, 1, 10*time.Millisecond)
			require.NoError(t, err)
			require.Empty(t, msgs)
		})
	})

	t.Run("will return messages enqueued mid-poll", func(t *testing.T) {
		client := NewClient()
		q := client.Queue("orders")

		conn, err := client.MkConnection(context.Background(), "orders", "orders-failed")
		require.NoError(t, err)

		go func() {
			time.Sleep(20 * time.Millisecond)
			q.Enqueue([]byte("late"))
		}()

		msgs, err := client.Dequeue(context.Background(), conn, 1, time.Second)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.Equal(t, []byte("late"), msgs[0].Body)
	})

	t.Run("will fail", func(t *testing.T) {
		t.Run("if a dequeue error is injected", func(t *testing.T) {
			client := NewClient()
			q := client.Queue("orders")

			conn, err := client.MkConnection(context.Background(), "orders", "orders-failed")
			require.NoError(t, err)

			injected := context.DeadlineExceeded
			q.FailDequeues(injected)

			_, err = client.Dequeue(context.Background(), conn, 1, time.Second)
			require.ErrorIs(t, err, injected)

			q.FailDequeues(nil)
			_, err = client.Dequeue(context.Background(), conn, 1, 10*time.Millisecond)
			require.NoError(t, err)
		})
	})
}

func TestQueue_Counters(t *testing.T) {
	t.Run("will track settles separately", func(t *testing.T) {
		client := NewClient()
		q := client.Queue("orders")
		q.Enqueue([]byte("a"))
		q.Enqueue([]byte("b"))

		conn, err := client.MkConnection(context.Background(), "orders", "orders-failed")
		require.NoError(t, err)

		msgs, err := client.Dequeue(context.Background(), conn, 2, time.Second)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		require.Equal(t, 2, q.DeliveredCount())

		require.NoError(t, client.Ack(context.Background(), conn, msgs[0]))
		require.NoError(t, client.Nack(context.Background(), conn, msgs[1]))

		require.Equal(t, 1, q.AckCount())
		require.Equal(t, 1, q.NackCount())
		require.Len(t, q.Acked(), 1)
		require.Len(t, q.Nacked(), 1)
		require.Equal(t, 1, q.Len())
	})
}
