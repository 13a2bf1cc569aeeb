package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clubledger/internal/amqp"
	"clubledger/internal/cache"
	"clubledger/internal/metrics"
)

const (
	defaultSeenSize = 10000
	defaultSeenTTL  = 24 * time.Hour
)

// Sink delivers one notification to its recipient.
type Sink interface {
	Deliver(ctx context.Context, msg *amqp.NotificationMessage) error
}

// NotificationWorker hands queued notifications to a sink. AMQP delivery is
// at-least-once, so message ids already delivered are skipped.
type NotificationWorker struct {
	sink    Sink
	seen    *cache.LRUCache[time.Time]
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewNotificationWorker(sink Sink, m *metrics.Metrics) *NotificationWorker {
	return &NotificationWorker{
		sink:    sink,
		seen:    cache.NewLRUCache[time.Time](defaultSeenSize, defaultSeenTTL),
		metrics: m,
		now:     time.Now,
	}
}

// HandleNotification is the consumer callback. A returned error requeues
// the message.
func (w *NotificationWorker) HandleNotification(ctx context.Context, msg *amqp.NotificationMessage) error {
	if msg.ID == "" || msg.RecipientID == "" {
		slog.WarnContext(ctx, "Dropping notification without id or recipient",
			"id", msg.ID,
			"recipient_id", msg.RecipientID)
		return nil
	}
	if at, ok := w.seen.Get(msg.ID); ok {
		slog.DebugContext(ctx, "Skipping redelivered notification",
			"id", msg.ID,
			"first_delivered", at.Format(time.RFC3339))
		return nil
	}

	if err := w.sink.Deliver(ctx, msg); err != nil {
		w.metrics.Notifications(0, 1)
		return fmt.Errorf("deliver notification %s to %s: %w", msg.ID, msg.RecipientID, err)
	}
	w.seen.Set(msg.ID, w.now())
	w.metrics.Notifications(1, 0)

	slog.InfoContext(ctx, "Notification handled",
		"id", msg.ID,
		"recipient_id", msg.RecipientID,
		"report_id", msg.ReportID,
		"latency", w.now().Sub(msg.Timestamp).Round(time.Millisecond))
	return nil
}

// CleanExpired lets a cache.Manager sweep the delivered-id set.
func (w *NotificationWorker) CleanExpired() int {
	return w.seen.CleanExpired()
}
