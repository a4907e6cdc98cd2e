// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
)

// Runtime adapts a consumer pipeline to the app.Runtime interface so it
// can run as the main loop of a service.
type Runtime struct {
	client    QueueClient
	queueName string
	handler   Handler
	opts      []Option
}

// NewRuntime returns a Runtime which starts a [Consumer] when run.
func NewRuntime(client QueueClient, queueName string, handler Handler, opts ...Option) *Runtime {
	return &Runtime{
		client:    client,
		queueName: queueName,
		handler:   handler,
		opts:      opts,
	}
}

// Run starts the pipeline and blocks until ctx is done or the pipeline
// stops itself after a fatal client failure. Either way the pipeline is
// drained before Run returns.
func (rt *Runtime) Run(ctx context.Context) error {
	consumer, err := Start(ctx, rt.client, rt.queueName, rt.handler, rt.opts...)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-consumer.Done():
	}
	return consumer.Stop()
}
