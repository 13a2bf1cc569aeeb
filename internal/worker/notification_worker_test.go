package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubledger/internal/amqp"
	"clubledger/internal/metrics"
)

type recordingSink struct {
	delivered []string
	fail      error
}

func (s *recordingSink) Deliver(_ context.Context, msg *amqp.NotificationMessage) error {
	if s.fail != nil {
		return s.fail
	}
	s.delivered = append(s.delivered, msg.RecipientID)
	return nil
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestHandleNotificationDeliversOnce(t *testing.T) {
	sink := &recordingSink{}
	m := metrics.New()
	w := NewNotificationWorker(sink, m)
	msg := amqp.NewNotificationMessage("B", "bob@example.com", "Report 2024-03", "Your total is 3.33")

	require.NoError(t, w.HandleNotification(context.Background(), msg))
	require.NoError(t, w.HandleNotification(context.Background(), msg))

	assert.Equal(t, []string{"B"}, sink.delivered)
	assert.Contains(t, scrape(t, m), "clubledger_notifications_sent_total 1")
}

func TestHandleNotificationRequeuesOnFailure(t *testing.T) {
	sink := &recordingSink{fail: errors.New("smtp down")}
	m := metrics.New()
	w := NewNotificationWorker(sink, m)
	msg := amqp.NewNotificationMessage("B", "", "s", "b")

	err := w.HandleNotification(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, sink.fail)
	assert.Contains(t, scrape(t, m), "clubledger_notification_failures_total 1")

	sink.fail = nil
	require.NoError(t, w.HandleNotification(context.Background(), msg), "retry after failure is delivered")
	assert.Equal(t, []string{"B"}, sink.delivered)
}

func TestHandleNotificationDropsMalformed(t *testing.T) {
	sink := &recordingSink{}
	w := NewNotificationWorker(sink, nil)

	require.NoError(t, w.HandleNotification(context.Background(), &amqp.NotificationMessage{ID: "x", Timestamp: time.Now()}))
	assert.Empty(t, sink.delivered)
}
