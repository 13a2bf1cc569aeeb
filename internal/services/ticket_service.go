package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clubledger/internal/core"
	"clubledger/internal/metrics"
	"clubledger/internal/storage"
)

// MaxBatchSize bounds the number of tickets removed in one repository call
// during a purge.
const MaxBatchSize = 500

// TicketService validates ticket input, derives amounts and shares, and
// persists the result as a single write. Concurrent edits to the same ticket
// are last-write-wins.
type TicketService struct {
	repo    storage.TicketRepository
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

func NewTicketService(repo storage.TicketRepository, m *metrics.Metrics) *TicketService {
	return &TicketService{
		repo:    repo,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// Create builds a ticket from input and stores it.
func (s *TicketService) Create(ctx context.Context, in core.TicketInput) (core.Ticket, error) {
	t, err := core.BuildTicket(in)
	if err != nil {
		return core.Ticket{}, err
	}
	t.ID = s.newID()
	t.CreatedAt = s.now()

	if err := s.repo.CreateTicket(ctx, t); err != nil {
		return core.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	s.metrics.TicketMutation("create", string(t.Category))
	slog.InfoContext(ctx, "Ticket created",
		"ticket_id", t.ID,
		"category", t.Category,
		"amount_cents", t.Amount.Cents,
		"participants", len(t.Participants))
	return t, nil
}

// Update replaces the editable fields of a ticket and recomputes everything
// derived from them.
func (s *TicketService) Update(ctx context.Context, id string, in core.TicketInput) (core.Ticket, error) {
	existing, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return core.Ticket{}, fmt.Errorf("get ticket %s: %w", id, err)
	}
	t, err := core.RecomputeTicket(existing, in)
	if err != nil {
		return core.Ticket{}, err
	}
	if err := s.repo.UpdateTicket(ctx, t); err != nil {
		return core.Ticket{}, fmt.Errorf("update ticket %s: %w", id, err)
	}
	s.metrics.TicketMutation("update", string(t.Category))
	slog.InfoContext(ctx, "Ticket updated",
		"ticket_id", t.ID,
		"category", t.Category,
		"amount_cents", t.Amount.Cents)
	return t, nil
}

func (s *TicketService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteTicket(ctx, id); err != nil {
		return fmt.Errorf("delete ticket %s: %w", id, err)
	}
	s.metrics.TicketMutation("delete", "")
	slog.InfoContext(ctx, "Ticket deleted", "ticket_id", id)
	return nil
}

func (s *TicketService) Get(ctx context.Context, id string) (core.Ticket, error) {
	return s.repo.GetTicket(ctx, id)
}

func (s *TicketService) List(ctx context.Context, f storage.TicketFilter) ([]core.Ticket, error) {
	return s.repo.QueryTickets(ctx, f)
}

// Totals aggregates the tickets matching f as seen by viewer.
func (s *TicketService) Totals(ctx context.Context, viewer core.Viewer, f storage.TicketFilter) (core.Totals, error) {
	if !viewer.IsAdmin() && viewer.MemberID == "" {
		return core.Totals{}, &core.ValidationError{Field: "viewer", Rule: core.ErrMissingOwner}
	}
	tickets, err := s.repo.QueryTickets(ctx, f)
	if err != nil {
		return core.Totals{}, fmt.Errorf("query tickets: %w", err)
	}
	return core.Aggregate(tickets, viewer), nil
}

// PurgeCategory deletes every ticket of one category in batches of at most
// MaxBatchSize and returns the number deleted. On error the count covers
// the batches that were committed.
func (s *TicketService) PurgeCategory(ctx context.Context, category core.Category) (int, error) {
	if err := category.Validate(); err != nil {
		return 0, &core.ValidationError{Field: "category", Rule: err}
	}
	tickets, err := s.repo.QueryTickets(ctx, storage.TicketFilter{Category: category})
	if err != nil {
		return 0, fmt.Errorf("query %s tickets: %w", category, err)
	}

	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}

	deleted, batches := 0, 0
	for start := 0; start < len(ids); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(ids))
		n, err := s.repo.DeleteTickets(ctx, ids[start:end])
		if err != nil {
			s.metrics.TicketsPurged(deleted)
			return deleted, fmt.Errorf("purge batch %d: %w", batches+1, err)
		}
		deleted += n
		batches++
	}

	s.metrics.TicketsPurged(deleted)
	slog.InfoContext(ctx, "Category purged",
		"category", category,
		"deleted", deleted,
		"batches", batches)
	return deleted, nil
}
