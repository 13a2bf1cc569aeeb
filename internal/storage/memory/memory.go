// Package memory is an in-process implementation of the storage ports,
// used by the memory backend and by tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clubledger/internal/core"
	"clubledger/internal/storage"
)

type reportEntry struct {
	report     core.MonthlyReport
	completed  bool
	reservedAt time.Time
}

type Store struct {
	mu       sync.Mutex
	tickets  map[string]core.Ticket
	members  []core.Member
	reports  map[string]*reportEntry
	settings map[string]bool

	// Now stamps creation and reservation times.
	Now func() time.Time
}

func New(members []core.Member) *Store {
	return &Store{
		tickets:  make(map[string]core.Ticket),
		members:  dedupeMembers(members),
		reports:  make(map[string]*reportEntry),
		settings: make(map[string]bool),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewFromFiles seeds members from base/seed_members.txt, one
// "id,email,display name[,role]" per line.
func NewFromFiles(base string) *Store {
	var members []core.Member
	for _, line := range readLines(filepath.Join(base, "seed_members.txt")) {
		if m, ok := parseMemberLine(line); ok {
			members = append(members, m)
		}
	}
	return New(members)
}

func (s *Store) CreateTicket(_ context.Context, t core.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tickets[t.ID]; exists {
		return fmt.Errorf("ticket %s already exists", t.ID)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.Now()
	}
	s.tickets[t.ID] = cloneTicket(t)
	return nil
}

func (s *Store) UpdateTicket(_ context.Context, t core.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.tickets[t.ID]
	if !ok {
		return fmt.Errorf("update ticket %s: %w", t.ID, core.ErrNotFound)
	}
	t.CreatedAt = prev.CreatedAt
	s.tickets[t.ID] = cloneTicket(t)
	return nil
}

func (s *Store) GetTicket(_ context.Context, id string) (core.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return core.Ticket{}, fmt.Errorf("ticket %s: %w", id, core.ErrNotFound)
	}
	return cloneTicket(t), nil
}

func (s *Store) DeleteTicket(ctx context.Context, id string) error {
	n, _ := s.DeleteTickets(ctx, []string{id})
	if n == 0 {
		return fmt.Errorf("ticket %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTickets(_ context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := s.tickets[id]; ok {
			delete(s.tickets, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) QueryTickets(_ context.Context, f storage.TicketFilter) ([]core.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Ticket
	for _, t := range s.tickets {
		if f.Match(t) {
			out = append(out, cloneTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.Before(b.Date.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) ListMembers(_ context.Context) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Member(nil), s.members...), nil
}

// UpsertMember adds or replaces a member.
func (s *Store) UpsertMember(_ context.Context, m core.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = dedupeMembers(append([]core.Member{m}, s.members...))
	return nil
}

func (s *Store) Reserve(_ context.Context, p core.Period, mode core.ReportMode) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.reports {
		if e.report.Period == p && e.report.Mode == mode {
			return "", fmt.Errorf("reserve report %s/%s: %w", p, mode, core.ErrReportExists)
		}
	}
	id := uuid.NewString()
	s.reports[id] = &reportEntry{
		report:     core.MonthlyReport{ID: id, Period: p, Mode: mode},
		reservedAt: s.Now(),
	}
	return id, nil
}

func (s *Store) Complete(_ context.Context, r core.MonthlyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.reports[r.ID]
	if !ok || e.completed {
		return fmt.Errorf("complete report %s: no pending reservation: %w", r.ID, core.ErrNotFound)
	}
	r.Period, r.Mode = e.report.Period, e.report.Mode
	e.report = r
	e.completed = true
	return nil
}

func (s *Store) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.reports[id]; ok && !e.completed {
		delete(s.reports, id)
	}
	return nil
}

func (s *Store) ReleaseStale(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.reports {
		if !e.completed && e.reservedAt.Before(olderThan) {
			delete(s.reports, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) GetReport(_ context.Context, id string) (core.MonthlyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.reports[id]
	if !ok || !e.completed {
		return core.MonthlyReport{}, fmt.Errorf("report %s: %w", id, core.ErrNotFound)
	}
	return e.report, nil
}

func (s *Store) ListReports(_ context.Context, year int) ([]core.MonthlyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.MonthlyReport
	for _, e := range s.reports {
		if e.completed && e.report.Period.Year == year {
			out = append(out, e.report)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period.Month != out[j].Period.Month {
			return out[i].Period.Month < out[j].Period.Month
		}
		return out[i].Mode < out[j].Mode
	})
	return out, nil
}

func (s *Store) DeleteReport(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.reports[id]
	if !ok || !e.completed {
		return fmt.Errorf("report %s: %w", id, core.ErrNotFound)
	}
	delete(s.reports, id)
	return nil
}

func (s *Store) NotificationsEnabled(_ context.Context, def bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.settings["notifications_enabled"]; ok {
		return v, nil
	}
	return def, nil
}

func (s *Store) SetNotificationsEnabled(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings["notifications_enabled"] = enabled
	return nil
}

func cloneTicket(t core.Ticket) core.Ticket {
	t.LineItems = append([]core.LineItem(nil), t.LineItems...)
	if t.Participants != nil {
		t.Participants = append([]core.Participant(nil), t.Participants...)
	}
	return t
}

func parseMemberLine(line string) (core.Member, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return core.Member{}, false
	}
	m := core.Member{
		ID:          strings.TrimSpace(parts[0]),
		Email:       strings.TrimSpace(parts[1]),
		DisplayName: strings.TrimSpace(parts[2]),
		Role:        core.RoleMember,
	}
	if len(parts) > 3 && strings.TrimSpace(parts[3]) == string(core.RoleAdmin) {
		m.Role = core.RoleAdmin
	}
	return m, m.ID != ""
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// dedupeMembers keeps the first record per id and sorts by id.
func dedupeMembers(in []core.Member) []core.Member {
	seen := map[string]struct{}{}
	out := make([]core.Member, 0, len(in))
	for _, m := range in {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var (
	_ storage.TicketRepository = (*Store)(nil)
	_ storage.MemberDirectory  = (*Store)(nil)
	_ storage.ReportIndex      = (*Store)(nil)
	_ storage.SettingsStore    = (*Store)(nil)
)
