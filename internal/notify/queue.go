package notify

import (
	"context"
	"log/slog"

	"regbook/internal/platform/metrics"
)

// Queue buffers notifications between the coordinators and the worker.
// Enqueue never blocks: when the buffer is full the notification is dropped
// and counted, because a slow side channel must never delay a handoff.
type Queue struct {
	inbox   chan Notification
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type QueueOption func(*Queue)

func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = logger }
}

func WithQueueMetrics(m *metrics.Metrics) QueueOption {
	return func(q *Queue) { q.metrics = m }
}

func NewQueue(size int, opts ...QueueOption) *Queue {
	if size <= 0 {
		size = 256
	}
	q := &Queue{
		inbox:  make(chan Notification, size),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Enqueue(n Notification) {
	select {
	case q.inbox <- n:
		if q.metrics != nil {
			q.metrics.NotificationsEnqueued.Inc()
		}
	default:
		if q.metrics != nil {
			q.metrics.NotificationsDropped.Inc()
		}
		q.logger.Warn("notification dropped: queue full",
			"kind", string(n.Kind),
			"asset_id", n.AssetID.String(),
		)
	}
}

// Inbox exposes the channel for the worker.
func (q *Queue) Inbox() <-chan Notification { return q.inbox }

// Worker consumes notifications from the queue and hands them to the
// dispatcher. Dispatch errors are logged and the worker moves on; delivery
// is best-effort from the coordinators' perspective and at-least-once only
// downstream of the bus.
type Worker struct {
	dispatcher Dispatcher
	inbox      <-chan Notification
	logger     *slog.Logger
}

func NewWorker(dispatcher Dispatcher, inbox <-chan Notification, logger *slog.Logger) *Worker {
	return &Worker{dispatcher: dispatcher, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-w.inbox:
			if err := w.dispatcher.Send(ctx, n); err != nil {
				w.logger.ErrorContext(ctx, "notification dispatch failed",
					"kind", string(n.Kind),
					"asset_id", n.AssetID.String(),
					"error", err,
				)
			}
		}
	}
}
