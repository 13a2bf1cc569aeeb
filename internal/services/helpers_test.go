package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"clubledger/internal/core"
	"clubledger/internal/notify"
	"clubledger/internal/storage/memory"
)

var testMembers = []core.Member{
	{ID: "A", Email: "ann@club.test", DisplayName: "Ann", Role: core.RoleAdmin},
	{ID: "B", Email: "bob@club.test", DisplayName: "Bob", Role: core.RoleMember},
	{ID: "C", Email: "cleo@club.test", Role: core.RoleMember},
}

func newStore() *memory.Store {
	return memory.New(testMembers)
}

func coffeeInput(date core.Date) core.TicketInput {
	return core.TicketInput{
		OwnerUID:   "A",
		Date:       date,
		Category:   core.CategoryShared,
		LineItems:  []core.LineItem{{Label: "Coffee", UnitPrice: core.Money{Cents: 250}, Quantity: 4}},
		Attendance: []core.Attendance{{UID: "A", AttendeeCount: 2}, {UID: "B", AttendeeCount: 1}},
		EventLabel: "Saturday match",
	}
}

func personalInput(owner string, date core.Date, cents int64) core.TicketInput {
	return core.TicketInput{
		OwnerUID:  owner,
		Date:      date,
		Category:  core.CategoryPersonal,
		LineItems: []core.LineItem{{Label: "Water", UnitPrice: core.Money{Cents: cents}, Quantity: 1}},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// fakeBlobs is an in-memory blob store with injectable failures.
type fakeBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   int
	uploadErr error
	deleteErr error
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Upload(_ context.Context, p string, data []byte, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploadErr != nil {
		return "", &core.StorageError{Op: "upload", Path: p, Err: b.uploadErr}
	}
	b.uploads++
	b.objects[p] = append([]byte(nil), data...)
	return "mem://" + p, nil
}

func (b *fakeBlobs) Delete(_ context.Context, p string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return &core.StorageError{Op: "delete", Path: p, Err: b.deleteErr}
	}
	delete(b.objects, p)
	return nil
}

func (b *fakeBlobs) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for p := range b.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *fakeBlobs) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// fakeNotifier fails for the listed member ids.
type fakeNotifier struct {
	mu      sync.Mutex
	failFor map[string]bool
	calls   int
	sent    []string
}

func (n *fakeNotifier) Dispatch(_ context.Context, recipients []core.Member, _ notify.Notice) []core.NotificationFailure {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	var failures []core.NotificationFailure
	for _, m := range recipients {
		if n.failFor[m.ID] {
			failures = append(failures, core.NotificationFailure{MemberID: m.ID, Err: errors.New("unreachable")})
			continue
		}
		n.sent = append(n.sent, m.ID)
	}
	return failures
}

func seedTickets(t *testing.T, s *memory.Store, n int, category core.Category) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		tk := core.Ticket{
			ID:       fmt.Sprintf("t-%04d", i),
			OwnerUID: "A",
			Date:     core.NewDate(2024, 3, 1+i%28),
			Category: category,
			Amount:   core.Money{Cents: 100},
		}
		if err := s.CreateTicket(ctx, tk); err != nil {
			t.Fatalf("seed ticket %d: %v", i, err)
		}
	}
}
