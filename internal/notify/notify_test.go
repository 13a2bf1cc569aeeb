package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubledger/internal/amqp"
	"clubledger/internal/core"
)

type fakePublisher struct {
	mu       sync.Mutex
	fail     map[string]bool
	sent     []*amqp.NotificationMessage
	inFlight int32
	maxSeen  int32
}

func (p *fakePublisher) PublishNotification(_ context.Context, msg *amqp.NotificationMessage) error {
	n := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&p.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&p.maxSeen, seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[msg.RecipientID] {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func members(ids ...string) []core.Member {
	out := make([]core.Member, len(ids))
	for i, id := range ids {
		out[i] = core.Member{ID: id, Email: id + "@club.test"}
	}
	return out
}

func TestDispatchCollectsPartialFailures(t *testing.T) {
	pub := &fakePublisher{fail: map[string]bool{"c": true, "a": true}}
	d := NewAMQPDispatcher(pub, 2)

	failures := d.Dispatch(context.Background(), members("a", "b", "c", "d"), Notice{Subject: "May", ReportID: "r1", Period: "2025-05"})

	require.Len(t, failures, 2)
	assert.Equal(t, "a", failures[0].MemberID)
	assert.Equal(t, "c", failures[1].MemberID)
	assert.Len(t, pub.sent, 2)
	for _, msg := range pub.sent {
		assert.Equal(t, "r1", msg.ReportID)
		assert.Equal(t, "2025-05", msg.Period)
	}
}

func TestDispatchRespectsConcurrencyLimit(t *testing.T) {
	pub := &fakePublisher{}
	d := NewAMQPDispatcher(pub, 2)

	failures := d.Dispatch(context.Background(), members("a", "b", "c", "d", "e", "f"), Notice{Subject: "x"})

	assert.Empty(t, failures)
	assert.Len(t, pub.sent, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&pub.maxSeen), int32(2))
}

func TestDispatchNoRecipients(t *testing.T) {
	d := NewAMQPDispatcher(&fakePublisher{}, 0)
	assert.Empty(t, d.Dispatch(context.Background(), nil, Notice{}))
}

func TestLogSinkDelivers(t *testing.T) {
	err := LogSink{}.Deliver(context.Background(), amqp.NewNotificationMessage("m1", "", "s", "b"))
	require.NoError(t, err)
}
