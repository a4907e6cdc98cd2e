// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"log/slog"

	"github.com/z5labs/chute"
	"github.com/z5labs/chute/queue"
	"github.com/z5labs/chute/queue/sqs"
)

// Config holds the application configuration.
type Config struct {
	queue.Config `config:",squash"`

	Queue struct {
		Name       string `config:"name"`
		DeadLetter string `config:"dead_letter"`
		Workers    int    `config:"workers"`
	} `config:"queue"`
}

// Init initializes the consumer runtime from the application config.
func Init(ctx context.Context, cfg Config) (*queue.Runtime, error) {
	client, err := sqs.BuildClient(ctx, sqs.Config{
		Region:   sqs.RegionFromEnv(),
		Endpoint: sqs.EndpointFromEnv(),
	})
	if err != nil {
		return nil, err
	}

	var opts []queue.Option
	if cfg.Queue.Workers > 0 {
		opts = append(opts, queue.WithNumWorkers(cfg.Queue.Workers))
	}
	if cfg.Queue.DeadLetter != "" {
		opts = append(opts, queue.WithDeadLetterQueue(cfg.Queue.DeadLetter))
	}

	return queue.NewRuntime(client, cfg.Queue.Name, handler(), opts...), nil
}

// handler logs each message's id and payload size and acks it. Replace with real business logic.
func handler() queue.Handler {
	log := chute.Logger("example/worker")

	return queue.HandlerFunc(func(ctx context.Context, msg queue.Message, done *queue.Buffer[queue.Message]) {
		log.InfoContext(ctx, "received message", queue.MessageIDAttr(msg.ID), slog.Int("bytes", len(msg.Body)))
		done.Put(ctx, msg)
	})
}
