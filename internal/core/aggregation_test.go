package core

import (
	"reflect"
	"testing"
)

func sampleTickets() []Ticket {
	shared := Ticket{ID: "s1", OwnerUID: "A", Category: CategoryShared, Amount: Money{Cents: 1000},
		Participants: []Participant{
			{UID: "A", AttendeeCount: 2, Share: Money{Cents: 667}},
			{UID: "B", AttendeeCount: 1, Share: Money{Cents: 333}},
		}}
	legacy := NormalizeLegacy(Ticket{ID: "l1", OwnerUID: "C", Category: CategoryShared, Amount: Money{Cents: 450}}, LegacyShare{AttendeeCount: 4})
	return []Ticket{
		{ID: "p1", OwnerUID: "A", Category: CategoryPersonal, Amount: Money{Cents: 200}},
		{ID: "p2", OwnerUID: "B", Category: CategoryPersonal, Amount: Money{Cents: 1500}},
		shared,
		legacy,
	}
}

func TestAggregateAdmin(t *testing.T) {
	got := Aggregate(sampleTickets(), AdminViewer())
	if got.PersonalTotal.Cents != 1700 || got.SharedTotal.Cents != 1450 || got.GrandTotal.Cents != 3150 {
		t.Fatalf("unexpected totals %+v", got)
	}
	if got.TicketCount != 4 {
		t.Fatalf("expected 4 tickets, got %d", got.TicketCount)
	}
	want := []MemberTotal{
		{MemberID: "B", PersonalTotal: Money{Cents: 1500}, SharedTotal: Money{Cents: 333}, Total: Money{Cents: 1833}},
		{MemberID: "A", PersonalTotal: Money{Cents: 200}, SharedTotal: Money{Cents: 667}, Total: Money{Cents: 867}},
		{MemberID: "C", SharedTotal: Money{Cents: 450}, Total: Money{Cents: 450}},
	}
	if !reflect.DeepEqual(got.PerMember, want) {
		t.Fatalf("unexpected per-member totals:\n%+v", got.PerMember)
	}
}

func TestAggregateMemberSeesOnlyOwnShare(t *testing.T) {
	got := Aggregate(sampleTickets(), Viewer{MemberID: "B", Role: RoleMember})
	if got.PersonalTotal.Cents != 1500 || got.SharedTotal.Cents != 333 || got.GrandTotal.Cents != 1833 {
		t.Fatalf("unexpected totals %+v", got)
	}
	if len(got.PerMember) != 1 || got.PerMember[0].MemberID != "B" {
		t.Fatalf("member view leaked other members: %+v", got.PerMember)
	}

	// Legacy tickets count in full for their owner only.
	c := Aggregate(sampleTickets(), Viewer{MemberID: "C", Role: RoleMember})
	if c.GrandTotal.Cents != 450 || c.TicketCount != 1 {
		t.Fatalf("unexpected legacy owner totals %+v", c)
	}
}

func TestAggregateMemberTotalNeverExceedsOwnShares(t *testing.T) {
	tickets := sampleTickets()
	for _, uid := range []string{"A", "B", "C", "D"} {
		var own int64
		for _, tk := range tickets {
			if m, ok := tk.ShareOf(uid); ok {
				own += m.Cents
			}
		}
		got := Aggregate(tickets, Viewer{MemberID: uid, Role: RoleMember})
		if got.GrandTotal.Cents > own {
			t.Fatalf("%s: grand total %d exceeds own shares %d", uid, got.GrandTotal.Cents, own)
		}
	}
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	tickets := sampleTickets()
	base := Aggregate(tickets, AdminViewer())
	reversed := make([]Ticket, len(tickets))
	for i, tk := range tickets {
		reversed[len(tickets)-1-i] = tk
	}
	if !reflect.DeepEqual(base, Aggregate(reversed, AdminViewer())) {
		t.Fatalf("aggregation depends on input order")
	}
	if !reflect.DeepEqual(base, Aggregate(tickets, AdminViewer())) {
		t.Fatalf("aggregation is not idempotent")
	}
}

func TestAggregateTieBreaksByMemberID(t *testing.T) {
	tickets := []Ticket{
		{OwnerUID: "b", Category: CategoryPersonal, Amount: Money{Cents: 100}},
		{OwnerUID: "a", Category: CategoryPersonal, Amount: Money{Cents: 100}},
	}
	got := Aggregate(tickets, AdminViewer())
	if got.PerMember[0].MemberID != "a" || got.PerMember[1].MemberID != "b" {
		t.Fatalf("expected id order on ties, got %+v", got.PerMember)
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil, AdminViewer())
	if got.GrandTotal.Cents != 0 || got.TicketCount != 0 || len(got.PerMember) != 0 {
		t.Fatalf("expected empty totals, got %+v", got)
	}
}

func TestFilterByPeriod(t *testing.T) {
	tickets := []Ticket{
		{ID: "1", Date: NewDate(2025, 4, 30)},
		{ID: "2", Date: NewDate(2025, 5, 1)},
		{ID: "3", Date: NewDate(2025, 5, 31)},
		{ID: "4", Date: NewDate(2025, 6, 1)},
	}
	got := FilterByPeriod(tickets, Period{2025, 5})
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "3" {
		t.Fatalf("unexpected filter result %+v", got)
	}
}
