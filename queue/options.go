// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"fmt"
	"runtime"
	"time"
)

const (
	defaultMessageChannelSize = 20
	defaultDequeueLimit       = 10
	defaultPollTimeout        = 20 * time.Second

	// Each worker slot admits this many in-flight handler invocations by
	// default, so handlers suspended on I/O do not starve CPU-bound work.
	defaultWorkFactor = 10
)

// Options are the configurable parameters of a [Consumer].
type Options struct {
	messageChannelSize int
	numWorkers         int
	numListeners       int
	dequeueLimit       int
	maxConcurrentWork  int
	deadLetterQueue    string
	pollTimeout        time.Duration
}

// Option sets a value on [Options].
type Option func(*Options)

// WithMessageChannelSize sets the capacity of the buffer between the
// listener pool and the worker pool. Default is 20.
func WithMessageChannelSize(n int) Option {
	return func(o *Options) {
		o.messageChannelSize = n
	}
}

// WithNumWorkers sets the number of worker slots. Default is the host CPU
// count minus one, with a floor of one.
func WithNumWorkers(n int) Option {
	return func(o *Options) {
		o.numWorkers = n
	}
}

// WithNumListeners sets the number of long-polling listeners. Default is
// a tenth of the worker default, with a floor of one.
func WithNumListeners(n int) Option {
	return func(o *Options) {
		o.numListeners = n
	}
}

// WithDequeueLimit sets the maximum number of messages requested per
// Dequeue call. Default is 10.
func WithDequeueLimit(n int) Option {
	return func(o *Options) {
		o.dequeueLimit = n
	}
}

// WithMaxConcurrentWork sets the in-flight limit: the maximum number of
// handler invocations started but not yet completed. Default is ten times
// the worker count. It must be at least the worker count.
func WithMaxConcurrentWork(n int) Option {
	return func(o *Options) {
		o.maxConcurrentWork = n
	}
}

// WithDeadLetterQueue overrides the dead-letter queue name configured on
// connect. Default is "<queueName>-failed".
func WithDeadLetterQueue(name string) Option {
	return func(o *Options) {
		o.deadLetterQueue = name
	}
}

// WithPollTimeout sets the long-poll duration per Dequeue call. Default
// is 20s.
func WithPollTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.pollTimeout = d
	}
}

func defaultOptions() *Options {
	cpus := runtime.NumCPU()

	return &Options{
		messageChannelSize: defaultMessageChannelSize,
		numWorkers:         max(1, cpus-1),
		numListeners:       max(1, (cpus-1)/10),
		dequeueLimit:       defaultDequeueLimit,
		pollTimeout:        defaultPollTimeout,
	}
}

// resolve fills in values which derive from other options once user
// options have been applied.
func (o *Options) resolve(queueName string) {
	if o.deadLetterQueue == "" {
		o.deadLetterQueue = queueName + "-failed"
	}
	if o.maxConcurrentWork == 0 {
		o.maxConcurrentWork = max(o.numWorkers, o.numWorkers*defaultWorkFactor)
	}
}

func (o *Options) validate() error {
	if o.messageChannelSize < 1 {
		return fmt.Errorf("queue: message channel size must be at least 1, got %d", o.messageChannelSize)
	}
	if o.numWorkers < 1 {
		return fmt.Errorf("queue: worker count must be at least 1, got %d", o.numWorkers)
	}
	if o.numListeners < 1 {
		return fmt.Errorf("queue: listener count must be at least 1, got %d", o.numListeners)
	}
	if o.dequeueLimit < 1 {
		return fmt.Errorf("queue: dequeue limit must be at least 1, got %d", o.dequeueLimit)
	}
	if o.dequeueLimit > o.messageChannelSize {
		return fmt.Errorf(
			"queue: dequeue limit (%d) must not exceed message channel size (%d)",
			o.dequeueLimit,
			o.messageChannelSize,
		)
	}
	if o.maxConcurrentWork < o.numWorkers {
		return fmt.Errorf(
			"queue: max concurrent work (%d) must be at least the worker count (%d)",
			o.maxConcurrentWork,
			o.numWorkers,
		)
	}
	if o.pollTimeout <= 0 {
		return fmt.Errorf("queue: poll timeout must be positive, got %s", o.pollTimeout)
	}
	return nil
}
