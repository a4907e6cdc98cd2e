// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/z5labs/chute/queue"

// metricsRecorder holds OTel metric instruments for tracking pipeline throughput.
type metricsRecorder struct {
	messagesDequeued  metric.Int64Counter
	messagesProcessed metric.Int64Counter
	messagesAcked     metric.Int64Counter
	messagesNacked    metric.Int64Counter
	handlerFailures   metric.Int64Counter
	inflight          metric.Int64UpDownCounter
}

// newMetricsRecorder creates a new metricsRecorder with initialized metric instruments.
func newMetricsRecorder() (*metricsRecorder, error) {
	meter := otel.GetMeterProvider().Meter(meterName)

	messagesDequeued, err := meter.Int64Counter(
		"queue.consumer.messages.dequeued",
		metric.WithDescription("Total number of messages fetched from the remote queue"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	messagesProcessed, err := meter.Int64Counter(
		"queue.consumer.messages.processed",
		metric.WithDescription("Total number of handler invocations returned"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	messagesAcked, err := meter.Int64Counter(
		"queue.consumer.messages.acked",
		metric.WithDescription("Total number of messages acknowledged"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	messagesNacked, err := meter.Int64Counter(
		"queue.consumer.messages.nacked",
		metric.WithDescription("Total number of messages negatively acknowledged"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	handlerFailures, err := meter.Int64Counter(
		"queue.consumer.handler.failures",
		metric.WithDescription("Total number of handler invocations which panicked"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	inflight, err := meter.Int64UpDownCounter(
		"queue.consumer.messages.in_flight",
		metric.WithDescription("Number of handler invocations started but not yet completed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsRecorder{
		messagesDequeued:  messagesDequeued,
		messagesProcessed: messagesProcessed,
		messagesAcked:     messagesAcked,
		messagesNacked:    messagesNacked,
		handlerFailures:   handlerFailures,
		inflight:          inflight,
	}, nil
}

func queueAttrs(queue string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("messaging.destination.name", queue),
	)
}

func (m *metricsRecorder) recordDequeued(ctx context.Context, queue string, count int) {
	m.messagesDequeued.Add(ctx, int64(count), queueAttrs(queue))
}

func (m *metricsRecorder) recordProcessed(ctx context.Context, queue string) {
	m.messagesProcessed.Add(ctx, 1, queueAttrs(queue))
}

func (m *metricsRecorder) recordAcked(ctx context.Context, queue string) {
	m.messagesAcked.Add(ctx, 1, queueAttrs(queue))
}

func (m *metricsRecorder) recordNacked(ctx context.Context, queue string) {
	m.messagesNacked.Add(ctx, 1, queueAttrs(queue))
}

func (m *metricsRecorder) recordHandlerFailure(ctx context.Context, queue string) {
	m.handlerFailures.Add(ctx, 1, queueAttrs(queue))
}

func (m *metricsRecorder) recordWorkStarted(ctx context.Context, queue string) {
	m.inflight.Add(ctx, 1, queueAttrs(queue))
}

func (m *metricsRecorder) recordWorkCompleted(ctx context.Context, queue string) {
	m.inflight.Add(ctx, -1, queueAttrs(queue))
}
