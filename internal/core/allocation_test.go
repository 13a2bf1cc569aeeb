package core

import (
	"errors"
	"math"
	"testing"
)

func TestAllocateWeightedExample(t *testing.T) {
	got, err := Allocate(Money{Cents: 1000}, []Attendance{{UID: "A", AttendeeCount: 2}, {UID: "B", AttendeeCount: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].UID != "A" || got[0].Share.Cents != 667 {
		t.Fatalf("expected A=667, got %+v", got[0])
	}
	if got[1].UID != "B" || got[1].Share.Cents != 333 {
		t.Fatalf("expected B=333, got %+v", got[1])
	}
}

func TestAllocateRemainderGoesToFirstInInputOrder(t *testing.T) {
	got, err := Allocate(Money{Cents: 100}, []Attendance{{UID: "z", AttendeeCount: 1}, {UID: "a", AttendeeCount: 1}, {UID: "m", AttendeeCount: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int64{34, 33, 33}
	for i, p := range got {
		if p.Share.Cents != want[i] {
			t.Fatalf("participant %d (%s): expected %d, got %d", i, p.UID, want[i], p.Share.Cents)
		}
	}
}

func TestAllocateConservesAmount(t *testing.T) {
	counts := [][]int{
		{1}, {1, 1}, {2, 1}, {1, 1, 1}, {3, 5, 7}, {1, 2, 3, 4, 5, 6}, {9, 1, 1, 1, 1, 1, 1},
	}
	amounts := []int64{0, 1, 2, 7, 99, 100, 1001, 12345, 999999, math.MaxInt64 / 2}
	for _, cs := range counts {
		att := make([]Attendance, len(cs))
		for i, c := range cs {
			att[i] = Attendance{UID: string(rune('a' + i)), AttendeeCount: c}
		}
		for _, amt := range amounts {
			ps, err := Allocate(Money{Cents: amt}, att)
			if err != nil {
				t.Fatalf("counts %v amount %d: %v", cs, amt, err)
			}
			var sum int64
			for i, p := range ps {
				if p.Share.Cents < 0 {
					t.Fatalf("negative share for %v", p)
				}
				if p.UID != att[i].UID {
					t.Fatalf("order not preserved: %v", ps)
				}
				sum += p.Share.Cents
			}
			if sum != amt {
				t.Fatalf("counts %v amount %d: shares sum to %d", cs, amt, sum)
			}
			if TotalAttendees(ps) != sumInts(cs) {
				t.Fatalf("total attendees mismatch for %v", cs)
			}
		}
	}
}

func TestAllocateRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		att    []Attendance
		want   error
	}{
		{"empty", 100, nil, ErrNoParticipants},
		{"zero count", 100, []Attendance{{UID: "a", AttendeeCount: 0}}, ErrNonPositiveAttendance},
		{"negative count", 100, []Attendance{{UID: "a", AttendeeCount: 1}, {UID: "b", AttendeeCount: -2}}, ErrNonPositiveAttendance},
		{"duplicate", 100, []Attendance{{UID: "a", AttendeeCount: 1}, {UID: "a", AttendeeCount: 1}}, ErrDuplicateParticipant},
		{"negative amount", -1, []Attendance{{UID: "a", AttendeeCount: 1}}, ErrNegativeAmount},
		{"counts wrap to zero", 1000, []Attendance{
			{UID: "a", AttendeeCount: 1 << 62}, {UID: "b", AttendeeCount: 1 << 62},
			{UID: "c", AttendeeCount: 1 << 62}, {UID: "d", AttendeeCount: 1 << 62},
		}, ErrAttendanceTooLarge},
		{"counts wrap to small", 1000, []Attendance{{UID: "a", AttendeeCount: math.MaxInt}, {UID: "b", AttendeeCount: 3}}, ErrAttendanceTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Allocate(Money{Cents: tc.amount}, tc.att)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsValidation(err) {
				t.Fatalf("expected a ValidationError, got %T", err)
			}
		})
	}
}

func sumInts(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}
