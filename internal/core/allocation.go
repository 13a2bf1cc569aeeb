package core

import (
	"math"
	"math/bits"
)

// Allocate splits amount across the selected members in proportion to their
// attendee counts. Each share is floor(amount*count/total) cents; the cents
// left over go to the first participant in input order, so the shares always
// add up to amount exactly. Output order matches input order.
func Allocate(amount Money, attendance []Attendance) ([]Participant, error) {
	if amount.Cents < 0 {
		return nil, invalid("amount", ErrNegativeAmount)
	}
	if len(attendance) == 0 {
		return nil, invalid("participants", ErrNoParticipants)
	}

	seen := make(map[string]struct{}, len(attendance))
	total := 0
	for _, a := range attendance {
		if a.AttendeeCount <= 0 {
			return nil, invalid("participants."+a.UID, ErrNonPositiveAttendance)
		}
		if _, dup := seen[a.UID]; dup {
			return nil, invalid("participants."+a.UID, ErrDuplicateParticipant)
		}
		seen[a.UID] = struct{}{}
		if a.AttendeeCount > math.MaxInt-total {
			return nil, invalid("participants."+a.UID, ErrAttendanceTooLarge)
		}
		total += a.AttendeeCount
	}

	out := make([]Participant, len(attendance))
	var allocated int64
	for i, a := range attendance {
		share := proportion(amount.Cents, a.AttendeeCount, total)
		allocated += share
		out[i] = Participant{UID: a.UID, AttendeeCount: a.AttendeeCount, Share: Money{Cents: share}}
	}
	out[0].Share.Cents += amount.Cents - allocated
	return out, nil
}

// proportion computes floor(amount*count/total) without overflowing.
// count <= total, so the quotient never exceeds amount.
func proportion(amount int64, count, total int) int64 {
	hi, lo := bits.Mul64(uint64(amount), uint64(count))
	q, _ := bits.Div64(hi, lo, uint64(total))
	return int64(q)
}

// TotalAttendees sums the attendee counts of a participant list.
func TotalAttendees(ps []Participant) int {
	n := 0
	for _, p := range ps {
		n += p.AttendeeCount
	}
	return n
}
