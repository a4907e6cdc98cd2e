// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuffer_Put(t *testing.T) {
	t.Run("will buffer the value", func(t *testing.T) {
		t.Run("if there is room", func(t *testing.T) {
			b := NewBuffer[int](2)

			require.NoError(t, b.Put(context.Background(), 1))
			require.NoError(t, b.Put(context.Background(), 2))

			require.Equal(t, 2, b.Len())
			require.True(t, b.Full())
		})
	})

	t.Run("will block", func(t *testing.T) {
		t.Run("if the buffer is full", func(t *testing.T) {
			b := NewBuffer[int](1)
			require.NoError(t, b.Put(context.Background(), 1))

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			err := b.Put(ctx, 2)
			require.ErrorIs(t, err, context.DeadlineExceeded)
			require.Equal(t, 1, b.Len())
		})
	})

	t.Run("will fail", func(t *testing.T) {
		t.Run("if the buffer is closed", func(t *testing.T) {
			b := NewBuffer[int](1)
			b.Close()

			err := b.Put(context.Background(), 1)
			require.ErrorIs(t, err, ErrClosed)
		})

		t.Run("if the buffer closes while the put is blocked", func(t *testing.T) {
			b := NewBuffer[int](1)
			require.NoError(t, b.Put(context.Background(), 1))

			errCh := make(chan error, 1)
			go func() {
				errCh <- b.Put(context.Background(), 2)
			}()

			time.Sleep(10 * time.Millisecond)
			b.Close()

			select {
			case err := <-errCh:
				require.ErrorIs(t, err, ErrClosed)
			case <-time.After(time.Second):
				t.Fatal("blocked put never returned")
			}
		})
	})
}

func TestBuffer_TryPut(t *testing.T) {
	t.Run("will not block", func(t *testing.T) {
		t.Run("if the buffer is full", func(t *testing.T) {
			b := NewBuffer[int](1)
			require.True(t, b.TryPut(1))
			require.False(t, b.TryPut(2))
		})

		t.Run("if the buffer is closed", func(t *testing.T) {
			b := NewBuffer[int](1)
			b.Close()
			require.False(t, b.TryPut(1))
		})
	})
}

func TestBuffer_Get(t *testing.T) {
	t.Run("will return values in order", func(t *testing.T) {
		b := NewBuffer[int](2)
		require.NoError(t, b.Put(context.Background(), 1))
		require.NoError(t, b.Put(context.Background(), 2))

		v, ok := b.Get(context.Background())
		require.True(t, ok)
		require.Equal(t, 1, v)

		v, ok = b.Get(context.Background())
		require.True(t, ok)
		require.Equal(t, 2, v)
	})

	t.Run("will drain remaining values after close", func(t *testing.T) {
		b := NewBuffer[int](2)
		require.NoError(t, b.Put(context.Background(), 1))
		b.Close()

		v, ok := b.Get(context.Background())
		require.True(t, ok)
		require.Equal(t, 1, v)

		_, ok = b.Get(context.Background())
		require.False(t, ok)
	})

	t.Run("will unblock", func(t *testing.T) {
		t.Run("if the context is cancelled", func(t *testing.T) {
			b := NewBuffer[int](1)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			_, ok := b.Get(ctx)
			require.False(t, ok)
		})
	})
}

func TestBuffer_Close(t *testing.T) {
	t.Run("will be idempotent", func(t *testing.T) {
		b := NewBuffer[int](1)
		require.False(t, b.Closed())

		b.Close()
		b.Close()
		require.True(t, b.Closed())
	})
}
