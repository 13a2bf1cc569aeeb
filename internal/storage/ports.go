package storage

import (
	"context"
	"time"

	"clubledger/internal/core"
)

// TicketFilter narrows a ticket query. Zero values mean no constraint.
// From is inclusive, To exclusive.
type TicketFilter struct {
	From     time.Time
	To       time.Time
	OwnerUID string
	Category core.Category
}

// ForPeriod returns a filter covering one calendar month.
func ForPeriod(p core.Period) TicketFilter {
	return TicketFilter{From: p.Start(), To: p.End()}
}

// Match reports whether a ticket passes the filter.
func (f TicketFilter) Match(t core.Ticket) bool {
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Date.Before(f.To) {
		return false
	}
	if f.OwnerUID != "" && t.OwnerUID != f.OwnerUID {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	return true
}

// Ports implemented by both the SQLite and the in-memory stores.
type (
	// TicketRepository is pure data access for tickets; it never derives
	// amounts or shares.
	TicketRepository interface {
		CreateTicket(ctx context.Context, t core.Ticket) error
		UpdateTicket(ctx context.Context, t core.Ticket) error
		GetTicket(ctx context.Context, id string) (core.Ticket, error)
		DeleteTicket(ctx context.Context, id string) error
		// DeleteTickets removes a batch of tickets atomically and returns
		// how many existed.
		DeleteTickets(ctx context.Context, ids []string) (int, error)
		QueryTickets(ctx context.Context, f TicketFilter) ([]core.Ticket, error)
	}

	MemberDirectory interface {
		ListMembers(ctx context.Context) ([]core.Member, error)
	}

	// ReportIndex is the historical index of monthly reports. Reserve is
	// an atomic conditional insert keyed on (year, month, mode); only
	// completed records are returned by reads.
	ReportIndex interface {
		Reserve(ctx context.Context, p core.Period, mode core.ReportMode) (id string, err error)
		Complete(ctx context.Context, r core.MonthlyReport) error
		Release(ctx context.Context, id string) error
		ReleaseStale(ctx context.Context, olderThan time.Time) (int, error)
		GetReport(ctx context.Context, id string) (core.MonthlyReport, error)
		ListReports(ctx context.Context, year int) ([]core.MonthlyReport, error)
		DeleteReport(ctx context.Context, id string) error
	}

	SettingsStore interface {
		// NotificationsEnabled returns the stored toggle, or def when unset.
		NotificationsEnabled(ctx context.Context, def bool) (bool, error)
		SetNotificationsEnabled(ctx context.Context, enabled bool) error
	}
)
