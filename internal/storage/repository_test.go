package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"clubledger/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "club.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sharedTicket(t *testing.T, id string, date core.Date) core.Ticket {
	t.Helper()
	tk, err := core.BuildTicket(core.TicketInput{
		OwnerUID:   "A",
		Date:       date,
		Category:   core.CategoryShared,
		LineItems:  []core.LineItem{{Label: "Coffee", UnitPrice: core.Money{Cents: 250}, Quantity: 4}},
		Attendance: []core.Attendance{{UID: "A", AttendeeCount: 2}, {UID: "B", AttendeeCount: 1}},
		EventLabel: "Match",
	})
	if err != nil {
		t.Fatalf("build ticket: %v", err)
	}
	tk.ID = id
	return tk
}

func TestTicketRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	in := sharedTicket(t, "t1", core.NewDate(2025, 5, 10))
	if err := repo.CreateTicket(ctx, in); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetTicket(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount != in.Amount || got.TotalAttendees != 3 || got.Description != in.Description {
		t.Fatalf("unexpected ticket %+v", got)
	}
	if !got.AmountPerAttendee.Equal(in.AmountPerAttendee) {
		t.Fatalf("amount per attendee %s != %s", got.AmountPerAttendee, in.AmountPerAttendee)
	}
	if len(got.Participants) != 2 || got.Participants[0].UID != "A" || got.Participants[0].Share.Cents != 667 {
		t.Fatalf("participants not preserved in order: %+v", got.Participants)
	}
	if len(got.LineItems) != 1 || got.LineItems[0].Quantity != 4 {
		t.Fatalf("line items not preserved: %+v", got.LineItems)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("created_at should be set")
	}
}

func TestUpdateTicketReplacesParticipants(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	tk := sharedTicket(t, "t1", core.NewDate(2025, 5, 10))
	if err := repo.CreateTicket(ctx, tk); err != nil {
		t.Fatalf("create: %v", err)
	}

	in := core.InputOf(tk)
	in.Category = core.CategoryPersonal
	in.Attendance = nil
	personal, err := core.RecomputeTicket(tk, in)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if err := repo.UpdateTicket(ctx, personal); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetTicket(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Category != core.CategoryPersonal || len(got.Participants) != 0 || got.TotalAttendees != 0 {
		t.Fatalf("shared fields survived update: %+v", got)
	}

	missing := personal
	missing.ID = "nope"
	if err := repo.UpdateTicket(ctx, missing); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLegacyTicketIsNormalizedOnRead(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, err := repo.db.ExecContext(ctx, `INSERT INTO tickets
		(id, owner_uid, ticket_date, category, line_items, amount_cents, created_at, updated_at, legacy_attendee_count)
		VALUES ('old', 'C', '2025-05-03', 'shared', '[{"label":"Pizza","unit_price_cents":900,"quantity":1}]', 900, ?, ?, 3)`,
		formatTime(time.Now()), formatTime(time.Now()))
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	tickets, err := repo.QueryTickets(ctx, ForPeriod(core.NewPeriod(2025, 5)))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(tickets) != 1 {
		t.Fatalf("expected 1 ticket, got %d", len(tickets))
	}
	got := tickets[0]
	if len(got.Participants) != 1 || got.Participants[0].UID != "C" || got.Participants[0].Share.Cents != 900 {
		t.Fatalf("legacy ticket not normalized: %+v", got.Participants)
	}
	if got.TotalAttendees != 3 {
		t.Fatalf("expected 3 attendees, got %d", got.TotalAttendees)
	}
}

func TestLegacyTicketWithoutCountIsOwnedByOwner(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_, err := repo.db.ExecContext(ctx, `INSERT INTO tickets
		(id, owner_uid, ticket_date, category, line_items, amount_cents, created_at, updated_at, legacy_attendee_count)
		VALUES ('older', 'C', '2025-05-04', 'shared', '[{"label":"Pizza","unit_price_cents":900,"quantity":1}]', 900, ?, ?, NULL)`,
		formatTime(time.Now()), formatTime(time.Now()))
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}

	got, err := repo.GetTicket(ctx, "older")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Participants) != 1 || got.Participants[0].UID != "C" || got.Participants[0].Share.Cents != 900 {
		t.Fatalf("legacy ticket not normalized: %+v", got.Participants)
	}
	if got.TotalAttendees != 1 {
		t.Fatalf("expected 1 attendee, got %d", got.TotalAttendees)
	}

	tickets, err := repo.QueryTickets(ctx, ForPeriod(core.NewPeriod(2025, 5)))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	admin := core.Aggregate(tickets, core.AdminViewer())
	owner := core.Aggregate(tickets, core.Viewer{MemberID: "C", Role: core.RoleMember})
	if admin.GrandTotal.Cents != 900 || owner.GrandTotal.Cents != 900 || admin.TicketCount != 1 {
		t.Fatalf("legacy amount lost: admin=%s owner=%s count=%d", admin.GrandTotal, owner.GrandTotal, admin.TicketCount)
	}
}

func TestQueryTicketsFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	for _, tk := range []core.Ticket{
		sharedTicket(t, "apr", core.NewDate(2025, 4, 30)),
		sharedTicket(t, "may1", core.NewDate(2025, 5, 1)),
		sharedTicket(t, "may31", core.NewDate(2025, 5, 31)),
		sharedTicket(t, "jun", core.NewDate(2025, 6, 1)),
	} {
		if err := repo.CreateTicket(ctx, tk); err != nil {
			t.Fatalf("create %s: %v", tk.ID, err)
		}
	}

	got, err := repo.QueryTickets(ctx, ForPeriod(core.NewPeriod(2025, 5)))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].ID != "may1" || got[1].ID != "may31" {
		t.Fatalf("unexpected period result %+v", got)
	}
	for _, tk := range got {
		if len(tk.Participants) != 2 {
			t.Fatalf("participants missing for %s", tk.ID)
		}
	}

	none, err := repo.QueryTickets(ctx, TicketFilter{Category: core.CategoryPersonal})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no personal tickets, got %d", len(none))
	}
}

func TestDeleteTickets(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := repo.CreateTicket(ctx, sharedTicket(t, id, core.NewDate(2025, 5, 1))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	n, err := repo.DeleteTickets(ctx, []string{"a", "b", "zzz"})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
	if err := repo.DeleteTicket(ctx, "a"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var orphans int
	repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticket_participants WHERE ticket_id IN ('a','b')`).Scan(&orphans)
	if orphans != 0 {
		t.Fatalf("participant rows left behind: %d", orphans)
	}
}

func TestReportReservationIsExclusive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := core.NewPeriod(2025, 5)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Reserve(ctx, p, core.ModeAutomatic)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, core.ErrReportExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if winners != 1 || conflicts != 7 {
		t.Fatalf("expected 1 winner and 7 conflicts, got %d/%d", winners, conflicts)
	}

	if _, err := repo.Reserve(ctx, p, core.ModeManual); err != nil {
		t.Fatalf("manual mode has its own key: %v", err)
	}
}

func TestReportLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	p := core.NewPeriod(2025, 5)

	id, err := repo.Reserve(ctx, p, core.ModeAutomatic)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if list, _ := repo.ListReports(ctx, 2025); len(list) != 0 {
		t.Fatalf("pending reservations must not be listed: %+v", list)
	}

	rep := core.MonthlyReport{ID: id, Period: p, Mode: core.ModeAutomatic,
		PersonalTotal: core.Money{Cents: 100}, SharedTotal: core.Money{Cents: 200}, GrandTotal: core.Money{Cents: 300},
		TicketCount: 2, MemberCount: 2, ArtifactPath: "reports/2025/05/x.csv", ArtifactURL: "file:///x.csv",
		GeneratedAt: time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)}
	if err := repo.Complete(ctx, rep); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := repo.GetReport(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.GrandTotal.Cents != 300 || got.Period != p || !got.GeneratedAt.Equal(rep.GeneratedAt) {
		t.Fatalf("unexpected report %+v", got)
	}
	if err := repo.Release(ctx, id); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := repo.GetReport(ctx, id); err != nil {
		t.Fatalf("release must not drop completed reports: %v", err)
	}

	if err := repo.DeleteReport(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Reserve(ctx, p, core.ModeAutomatic); err != nil {
		t.Fatalf("period should be free after delete: %v", err)
	}
}

func TestReleaseStale(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	repo.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	if _, err := repo.Reserve(ctx, core.NewPeriod(2025, 5), core.ModeAutomatic); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	n, err := repo.ReleaseStale(ctx, time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC))
	if err != nil || n != 1 {
		t.Fatalf("expected 1 stale reservation released, got %d (%v)", n, err)
	}
}

func TestMembersAndSettings(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	for _, m := range []core.Member{
		{ID: "b", Email: "b@club.test", DisplayName: "Bea"},
		{ID: "a", Email: "a@club.test", DisplayName: "Ana", Role: core.RoleAdmin},
	} {
		if err := repo.UpsertMember(ctx, m); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	members, err := repo.ListMembers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(members) != 2 || members[0].ID != "a" || members[1].Role != core.RoleMember {
		t.Fatalf("unexpected members %+v", members)
	}

	enabled, err := repo.NotificationsEnabled(ctx, true)
	if err != nil || !enabled {
		t.Fatalf("expected default true, got %v (%v)", enabled, err)
	}
	if err := repo.SetNotificationsEnabled(ctx, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if enabled, _ := repo.NotificationsEnabled(ctx, true); enabled {
		t.Fatalf("expected stored false to win over default")
	}
}
