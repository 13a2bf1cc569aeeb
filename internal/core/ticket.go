package core

import (
	"fmt"
	"math"
	"strings"
)

// TicketInput is what a caller supplies when creating or editing a ticket.
// Derived fields are never taken from it.
type TicketInput struct {
	OwnerUID   string
	Date       Date
	Category   Category
	LineItems  []LineItem
	Attendance []Attendance
	EventLabel string
}

// BuildTicket derives a complete ticket from the input. The returned ticket
// has no ID or CreatedAt; persistence assigns those.
func BuildTicket(in TicketInput) (Ticket, error) {
	if strings.TrimSpace(in.OwnerUID) == "" {
		return Ticket{}, invalid("owner", ErrMissingOwner)
	}
	if err := in.Date.Validate(); err != nil {
		return Ticket{}, invalid("date", err)
	}
	if err := in.Category.Validate(); err != nil {
		return Ticket{}, invalid("category", err)
	}

	amount, err := sumLineItems(in.LineItems)
	if err != nil {
		return Ticket{}, err
	}

	t := Ticket{
		OwnerUID:  in.OwnerUID,
		Date:      in.Date,
		Category:  in.Category,
		LineItems: append([]LineItem(nil), in.LineItems...),
		Amount:    amount,
	}

	if in.Category == CategoryPersonal {
		if len(in.Attendance) > 0 {
			return Ticket{}, invalid("participants", ErrParticipantsOnPersonal)
		}
		t.Description = describeItems(t.LineItems)
		return t, nil
	}

	participants, err := Allocate(amount, in.Attendance)
	if err != nil {
		return Ticket{}, err
	}
	t.EventLabel = strings.TrimSpace(in.EventLabel)
	t.Participants = participants
	t.TotalAttendees = TotalAttendees(participants)
	t.AmountPerAttendee = amount.Per(t.TotalAttendees)
	t.Description = describeShared(t.EventLabel, t.TotalAttendees, t.LineItems)
	return t, nil
}

// RecomputeTicket rebuilds every derived field of an existing ticket from
// new input. Identity (ID, owner, creation time) is preserved, as is the
// date when the input leaves it unset. Switching a ticket to personal drops
// all shared-only fields.
func RecomputeTicket(existing Ticket, in TicketInput) (Ticket, error) {
	in.OwnerUID = existing.OwnerUID
	if in.Date.IsZero() {
		in.Date = existing.Date
	}
	if in.Category == "" {
		in.Category = existing.Category
	}
	t, err := BuildTicket(in)
	if err != nil {
		return Ticket{}, err
	}
	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt
	return t, nil
}

// InputOf returns the input a ticket was built from.
func InputOf(t Ticket) TicketInput {
	in := TicketInput{
		OwnerUID:   t.OwnerUID,
		Date:       t.Date,
		Category:   t.Category,
		LineItems:  append([]LineItem(nil), t.LineItems...),
		EventLabel: t.EventLabel,
	}
	for _, p := range t.Participants {
		in.Attendance = append(in.Attendance, Attendance{UID: p.UID, AttendeeCount: p.AttendeeCount})
	}
	return in
}

func sumLineItems(items []LineItem) (Money, error) {
	if len(items) == 0 {
		return Money{}, invalid("line_items", ErrEmptyLineItems)
	}
	var total Money
	for i, it := range items {
		field := fmt.Sprintf("line_items[%d]", i)
		if strings.TrimSpace(it.Label) == "" {
			return Money{}, invalid(field, ErrEmptyLabel)
		}
		if it.Quantity <= 0 {
			return Money{}, invalid(field, ErrInvalidQuantity)
		}
		if it.UnitPrice.Cents < 0 {
			return Money{}, invalid(field, ErrInvalidUnitPrice)
		}
		if it.UnitPrice.Cents > (math.MaxInt64-total.Cents)/int64(it.Quantity) {
			return Money{}, invalid(field, ErrAmountTooLarge)
		}
		total = total.Add(it.UnitPrice.Times(it.Quantity))
	}
	return total, nil
}

func describeItems(items []LineItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", it.Label, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

func describeShared(label string, attendees int, items []LineItem) string {
	noun := "attendees"
	if attendees == 1 {
		noun = "attendee"
	}
	head := fmt.Sprintf("%d %s", attendees, noun)
	if label != "" {
		head = label + ": " + head
	}
	return head + " (" + describeItems(items) + ")"
}

// LegacyShare is the stored form of shared tickets written before
// multi-participant support: the owner alone, with an attendee count.
type LegacyShare struct {
	AttendeeCount int
}

// NormalizeLegacy converts a legacy shared ticket to the multi-participant
// form: a single participant (the owner) carrying the whole amount.
func NormalizeLegacy(t Ticket, legacy LegacyShare) Ticket {
	count := legacy.AttendeeCount
	if count <= 0 {
		count = 1
	}
	t.Participants = []Participant{{UID: t.OwnerUID, AttendeeCount: count, Share: t.Amount}}
	t.TotalAttendees = count
	t.AmountPerAttendee = t.Amount.Per(count)
	if t.Description == "" {
		t.Description = describeShared(t.EventLabel, count, t.LineItems)
	}
	return t
}

// FilterByPeriod keeps the tickets dated inside p.
func FilterByPeriod(tickets []Ticket, p Period) []Ticket {
	var out []Ticket
	for _, t := range tickets {
		if p.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}
