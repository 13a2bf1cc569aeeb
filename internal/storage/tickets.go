package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"clubledger/internal/core"
)

// lineItemRecord is the JSON shape of a line item in the tickets table.
type lineItemRecord struct {
	Label          string `json:"label"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// participantShape is how a stored shared ticket records its participants:
// either participant rows, or the legacy single attendee count.
type participantShape struct {
	multi  []core.Participant
	legacy *core.LegacyShare
}

func (s participantShape) apply(t core.Ticket) core.Ticket {
	if !t.IsShared() {
		return t
	}
	if len(s.multi) > 0 {
		t.Participants = s.multi
		return t
	}
	// No participant rows: a pre-multi-participant ticket. A missing count
	// still normalizes to the owner alone.
	var legacy core.LegacyShare
	if s.legacy != nil {
		legacy = *s.legacy
	}
	return core.NormalizeLegacy(t, legacy)
}

const ticketColumns = `t.id, t.owner_uid, t.ticket_date, t.category, t.line_items, t.amount_cents,
	t.event_label, t.total_attendees, t.amount_per_attendee, t.description,
	t.created_at, t.legacy_attendee_count`

func (r *SQLiteRepository) CreateTicket(ctx context.Context, t core.Ticket) error {
	items, err := encodeLineItems(t.LineItems)
	if err != nil {
		return err
	}
	now := formatTime(r.now())
	created := now
	if !t.CreatedAt.IsZero() {
		created = formatTime(t.CreatedAt)
	}

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO tickets
			(id, owner_uid, ticket_date, category, line_items, amount_cents, event_label,
			 total_attendees, amount_per_attendee, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.OwnerUID, t.Date.String(), string(t.Category), items, t.Amount.Cents, t.EventLabel,
			t.TotalAttendees, t.AmountPerAttendee.String(), t.Description, created, now)
		if err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		return insertParticipants(ctx, tx, t)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Ticket saved to SQLite",
		"id", t.ID,
		"category", t.Category,
		"amount_cents", t.Amount.Cents,
		"participants", len(t.Participants))
	return nil
}

// UpdateTicket replaces the whole stored document. A legacy ticket becomes
// a regular one as soon as it is rewritten.
func (r *SQLiteRepository) UpdateTicket(ctx context.Context, t core.Ticket) error {
	items, err := encodeLineItems(t.LineItems)
	if err != nil {
		return err
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE tickets SET
			ticket_date = ?, category = ?, line_items = ?, amount_cents = ?, event_label = ?,
			total_attendees = ?, amount_per_attendee = ?, description = ?, updated_at = ?,
			legacy_attendee_count = NULL
			WHERE id = ?`,
			t.Date.String(), string(t.Category), items, t.Amount.Cents, t.EventLabel,
			t.TotalAttendees, t.AmountPerAttendee.String(), t.Description, formatTime(r.now()), t.ID)
		if err != nil {
			return fmt.Errorf("update ticket %s: %w", t.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update ticket %s: %w", t.ID, core.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ticket_participants WHERE ticket_id = ?`, t.ID); err != nil {
			return fmt.Errorf("clear participants of %s: %w", t.ID, err)
		}
		return insertParticipants(ctx, tx, t)
	})
}

func (r *SQLiteRepository) GetTicket(ctx context.Context, id string) (core.Ticket, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.id = ?`, id)
	t, shape, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Ticket{}, fmt.Errorf("ticket %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Ticket{}, fmt.Errorf("get ticket %s: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT ticket_id, uid, attendee_count, share_cents
		FROM ticket_participants WHERE ticket_id = ? ORDER BY position`, id)
	if err != nil {
		return core.Ticket{}, fmt.Errorf("get participants of %s: %w", id, err)
	}
	parts, err := scanParticipants(rows)
	if err != nil {
		return core.Ticket{}, err
	}
	shape.multi = parts[id]
	return shape.apply(t), nil
}

func (r *SQLiteRepository) DeleteTicket(ctx context.Context, id string) error {
	n, err := r.DeleteTickets(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ticket %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTickets(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	var deleted int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ticket_participants WHERE ticket_id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("delete participants: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return fmt.Errorf("delete tickets: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(deleted), nil
}

func (r *SQLiteRepository) QueryTickets(ctx context.Context, f TicketFilter) ([]core.Ticket, error) {
	where, args := ticketWhere(f)

	rows, err := r.db.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets t`+where+
		` ORDER BY t.ticket_date, t.created_at, t.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	var (
		tickets []core.Ticket
		shapes  []participantShape
	)
	for rows.Next() {
		t, shape, err := scanTicket(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
		shapes = append(shapes, shape)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	rows.Close()

	prow, err := r.db.QueryContext(ctx, `SELECT p.ticket_id, p.uid, p.attendee_count, p.share_cents
		FROM ticket_participants p JOIN tickets t ON t.id = p.ticket_id`+where+
		` ORDER BY p.ticket_id, p.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	parts, err := scanParticipants(prow)
	if err != nil {
		return nil, err
	}

	for i := range tickets {
		shapes[i].multi = parts[tickets[i].ID]
		tickets[i] = shapes[i].apply(tickets[i])
	}
	return tickets, nil
}

func ticketWhere(f TicketFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !f.From.IsZero() {
		conds = append(conds, "t.ticket_date >= ?")
		args = append(args, f.From.UTC().Format(time.DateOnly))
	}
	if !f.To.IsZero() {
		conds = append(conds, "t.ticket_date < ?")
		args = append(args, f.To.UTC().Format(time.DateOnly))
	}
	if f.OwnerUID != "" {
		conds = append(conds, "t.owner_uid = ?")
		args = append(args, f.OwnerUID)
	}
	if f.Category != "" {
		conds = append(conds, "t.category = ?")
		args = append(args, string(f.Category))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func insertParticipants(ctx context.Context, tx *sql.Tx, t core.Ticket) error {
	for i, p := range t.Participants {
		_, err := tx.ExecContext(ctx, `INSERT INTO ticket_participants
			(ticket_id, position, uid, attendee_count, share_cents) VALUES (?, ?, ?, ?, ?)`,
			t.ID, i, p.UID, p.AttendeeCount, p.Share.Cents)
		if err != nil {
			return fmt.Errorf("insert participant %s of %s: %w", p.UID, t.ID, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(s scanner) (core.Ticket, participantShape, error) {
	var (
		t         core.Ticket
		date      string
		category  string
		items     string
		perPerson string
		created   string
		legacy    sql.NullInt64
		shape     participantShape
	)
	err := s.Scan(&t.ID, &t.OwnerUID, &date, &category, &items, &t.Amount.Cents,
		&t.EventLabel, &t.TotalAttendees, &perPerson, &t.Description, &created, &legacy)
	if err != nil {
		return t, shape, err
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return t, shape, fmt.Errorf("ticket %s date %q: %w", t.ID, date, err)
	}
	t.Date = d
	t.Category = core.Category(category)
	t.CreatedAt = parseTime(created)
	if t.LineItems, err = decodeLineItems(items); err != nil {
		return t, shape, fmt.Errorf("ticket %s line items: %w", t.ID, err)
	}
	if t.IsShared() && perPerson != "" {
		if t.AmountPerAttendee, err = decimal.NewFromString(perPerson); err != nil {
			return t, shape, fmt.Errorf("ticket %s amount per attendee: %w", t.ID, err)
		}
	}
	if legacy.Valid {
		shape.legacy = &core.LegacyShare{AttendeeCount: int(legacy.Int64)}
	}
	return t, shape, nil
}

func scanParticipants(rows *sql.Rows) (map[string][]core.Participant, error) {
	defer rows.Close()
	out := make(map[string][]core.Participant)
	for rows.Next() {
		var (
			ticketID string
			p        core.Participant
		)
		if err := rows.Scan(&ticketID, &p.UID, &p.AttendeeCount, &p.Share.Cents); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out[ticketID] = append(out[ticketID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}

func encodeLineItems(items []core.LineItem) (string, error) {
	recs := make([]lineItemRecord, len(items))
	for i, it := range items {
		recs[i] = lineItemRecord{Label: it.Label, UnitPriceCents: it.UnitPrice.Cents, Quantity: it.Quantity}
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return "", fmt.Errorf("encode line items: %w", err)
	}
	return string(b), nil
}

func decodeLineItems(s string) ([]core.LineItem, error) {
	var recs []lineItemRecord
	if err := json.Unmarshal([]byte(s), &recs); err != nil {
		return nil, err
	}
	items := make([]core.LineItem, len(recs))
	for i, rec := range recs {
		items[i] = core.LineItem{Label: rec.Label, UnitPrice: core.Money{Cents: rec.UnitPriceCents}, Quantity: rec.Quantity}
	}
	return items, nil
}
