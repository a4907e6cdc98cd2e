// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	t.Run("will match the documented defaults", func(t *testing.T) {
		o := defaultOptions()
		o.resolve("orders")

		cpus := runtime.NumCPU()

		require.Equal(t, 20, o.messageChannelSize)
		require.Equal(t, 10, o.dequeueLimit)
		require.Equal(t, max(1, cpus-1), o.numWorkers)
		require.Equal(t, max(1, (cpus-1)/10), o.numListeners)
		require.Equal(t, o.numWorkers*10, o.maxConcurrentWork)
		require.Equal(t, "orders-failed", o.deadLetterQueue)
		require.Equal(t, 20*time.Second, o.pollTimeout)

		require.NoError(t, o.validate())
	})

	t.Run("will floor the in-flight limit at the worker count", func(t *testing.T) {
		o := defaultOptions()
		o.numWorkers = 3
		WithMaxConcurrentWork(0)(o)
		o.resolve("orders")

		require.GreaterOrEqual(t, o.maxConcurrentWork, o.numWorkers)
	})

	t.Run("will keep an explicit dead-letter queue name", func(t *testing.T) {
		o := defaultOptions()
		WithDeadLetterQueue("graveyard")(o)
		o.resolve("orders")

		require.Equal(t, "graveyard", o.deadLetterQueue)
	})
}

func TestOptions_Validate(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		testCases := []struct {
			Name string
			Opts []Option
		}{
			{
				Name: "if the message channel size is not positive",
				Opts: []Option{WithMessageChannelSize(0)},
			},
			{
				Name: "if the worker count is not positive",
				Opts: []Option{WithNumWorkers(-1)},
			},
			{
				Name: "if the listener count is not positive",
				Opts: []Option{WithNumListeners(0)},
			},
			{
				Name: "if the dequeue limit exceeds the message channel size",
				Opts: []Option{
					WithMessageChannelSize(4),
					WithDequeueLimit(5),
				},
			},
			{
				Name: "if the in-flight limit is below the worker count",
				Opts: []Option{
					WithNumWorkers(2),
					WithMaxConcurrentWork(1),
				},
			},
			{
				Name: "if the poll timeout is not positive",
				Opts: []Option{WithPollTimeout(-time.Second)},
			},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				o := defaultOptions()
				for _, opt := range testCase.Opts {
					opt(o)
				}
				o.resolve("orders")

				require.Error(t, o.validate())
			})
		}
	})
}
