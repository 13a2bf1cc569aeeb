// Package notify fans a report notice out to club members over AMQP and
// delivers queued messages on the worker side.
package notify

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"clubledger/internal/amqp"
	"clubledger/internal/core"
)

const defaultConcurrency = 4

// Notice is the content sent to every recipient.
type Notice struct {
	Subject  string
	Body     string
	ReportID string
	Period   string
}

// Dispatcher sends a notice to each recipient and reports the ones that
// failed. It never fails as a whole.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipients []core.Member, n Notice) []core.NotificationFailure
}

// Publisher is the outbound side of the AMQP client.
type Publisher interface {
	PublishNotification(ctx context.Context, msg *amqp.NotificationMessage) error
}

// AMQPDispatcher queues one message per recipient.
type AMQPDispatcher struct {
	pub         Publisher
	concurrency int
}

func NewAMQPDispatcher(pub Publisher, concurrency int) *AMQPDispatcher {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &AMQPDispatcher{pub: pub, concurrency: concurrency}
}

func (d *AMQPDispatcher) Dispatch(ctx context.Context, recipients []core.Member, n Notice) []core.NotificationFailure {
	var (
		mu       sync.Mutex
		failures []core.NotificationFailure
	)

	// Errors are collected per recipient, so the group never cancels.
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, m := range recipients {
		g.Go(func() error {
			msg := amqp.NewNotificationMessage(m.ID, m.Email, n.Subject, n.Body)
			msg.ReportID, msg.Period = n.ReportID, n.Period
			if err := d.pub.PublishNotification(ctx, msg); err != nil {
				slog.WarnContext(ctx, "Notification not queued", "member_id", m.ID, "error", err)
				mu.Lock()
				failures = append(failures, core.NotificationFailure{MemberID: m.ID, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].MemberID < failures[j].MemberID })
	return failures
}

// LogSink is the delivery end used by the notify worker. Push and email
// transports plug in behind the same method.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, msg *amqp.NotificationMessage) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Notification delivered",
		"id", msg.ID,
		"recipient_id", msg.RecipientID,
		"subject", msg.Subject,
		"report_id", msg.ReportID)
	return nil
}
