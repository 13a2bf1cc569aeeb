package services

import (
	"time"

	"clubledger/internal/core"
)

// MonthlyChecker decides when the automatic report for the previous month
// is due: once per month, from RunDay onwards. A RunDay past the end of a
// short month falls on its last day.
type MonthlyChecker struct {
	RunDay int
}

// IsDue reports whether the report for the month before now should run,
// given the period handled last. A zero last period means none.
func (c MonthlyChecker) IsDue(last core.Period, now time.Time) bool {
	target := core.PreviousPeriod(now)
	if last == target {
		return false
	}

	day := max(c.RunDay, 1)
	lastDayOfMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDayOfMonth {
		day = lastDayOfMonth
	}
	return now.Day() >= day
}
