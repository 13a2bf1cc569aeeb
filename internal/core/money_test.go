package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, true},
		{"0.00", 0, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:      "0.00",
		5:      "0.05",
		667:    "6.67",
		100000: "1000.00",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("%d cents: expected %s, got %s", cents, want, got)
		}
	}
}

func TestMoneyPer(t *testing.T) {
	got := Money{Cents: 1000}.Per(3)
	if got.String() != "3.3333" {
		t.Fatalf("expected 3.3333, got %s", got)
	}
	if !(Money{Cents: 1000}).Per(0).IsZero() {
		t.Fatalf("expected zero for non-positive divisor")
	}
}

func TestSumMoney(t *testing.T) {
	if got := SumMoney(Money{Cents: 1}, Money{Cents: 2}, Money{Cents: 3}); got.Cents != 6 {
		t.Fatalf("expected 6, got %d", got.Cents)
	}
	if got := SumMoney(); got.Cents != 0 {
		t.Fatalf("expected 0, got %d", got.Cents)
	}
}
