package core

import "sort"

// MemberTotal is one member's slice of a totals query.
type MemberTotal struct {
	MemberID      string
	PersonalTotal Money
	SharedTotal   Money
	Total         Money
}

// Totals is the result of aggregating a ticket set.
type Totals struct {
	PersonalTotal Money
	SharedTotal   Money
	GrandTotal    Money
	TicketCount   int
	PerMember     []MemberTotal
}

// Aggregate sums tickets for a viewer. Administrators see every member;
// anyone else sees only their own personal tickets and their own share of
// shared ones. The result does not depend on ticket order. PerMember is
// sorted by total descending, then member id.
func Aggregate(tickets []Ticket, viewer Viewer) Totals {
	per := make(map[string]*MemberTotal)
	entry := func(uid string) *MemberTotal {
		mt, ok := per[uid]
		if !ok {
			mt = &MemberTotal{MemberID: uid}
			per[uid] = mt
		}
		return mt
	}

	var out Totals
	for _, t := range tickets {
		counted := false
		if t.IsShared() {
			for _, p := range t.Participants {
				if !viewer.IsAdmin() && p.UID != viewer.MemberID {
					continue
				}
				entry(p.UID).SharedTotal.Cents += p.Share.Cents
				out.SharedTotal.Cents += p.Share.Cents
				counted = true
			}
		} else if viewer.IsAdmin() || t.OwnerUID == viewer.MemberID {
			entry(t.OwnerUID).PersonalTotal.Cents += t.Amount.Cents
			out.PersonalTotal.Cents += t.Amount.Cents
			counted = true
		}
		if counted {
			out.TicketCount++
		}
	}
	out.GrandTotal = out.PersonalTotal.Add(out.SharedTotal)

	out.PerMember = make([]MemberTotal, 0, len(per))
	for _, mt := range per {
		mt.Total = mt.PersonalTotal.Add(mt.SharedTotal)
		out.PerMember = append(out.PerMember, *mt)
	}
	sort.Slice(out.PerMember, func(i, j int) bool {
		a, b := out.PerMember[i], out.PerMember[j]
		if a.Total.Cents != b.Total.Cents {
			return a.Total.Cents > b.Total.Cents
		}
		return a.MemberID < b.MemberID
	})
	return out
}
