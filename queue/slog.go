// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import "log/slog"

// QueueAttr returns a slog attribute for the primary queue name.
func QueueAttr(queue string) slog.Attr {
	return slog.String("messaging.destination.name", queue)
}

// DeadLetterQueueAttr returns a slog attribute for the dead-letter queue name.
func DeadLetterQueueAttr(queue string) slog.Attr {
	return slog.String("messaging.destination.dead_letter.name", queue)
}

// MessageIDAttr returns a slog attribute for the queue-assigned message id.
func MessageIDAttr(id string) slog.Attr {
	return slog.String("messaging.message.id", id)
}

// ListenerAttr returns a slog attribute identifying a listener within the pool.
func ListenerAttr(id int) slog.Attr {
	return slog.Int("messaging.consumer.listener.id", id)
}

// BatchSizeAttr returns a slog attribute for the size of a dequeued batch.
func BatchSizeAttr(n int) slog.Attr {
	return slog.Int("messaging.batch.message_count", n)
}
