package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clubledger/internal/core"
	"clubledger/internal/storage"
)

// Identity headers set by the authenticating proxy in front of the API.
const (
	headerMemberID   = "X-Member-ID"
	headerMemberRole = "X-Member-Role"
)

const maxBodyBytes = 1 << 20

type lineItemDTO struct {
	Label     string `json:"label"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type attendanceDTO struct {
	MemberID      string `json:"member_id"`
	AttendeeCount int    `json:"attendee_count"`
}

type ticketRequest struct {
	OwnerID      string          `json:"owner_id"`
	Date         string          `json:"date"`
	Category     string          `json:"category"`
	EventLabel   string          `json:"event_label"`
	LineItems    []lineItemDTO   `json:"line_items"`
	Participants []attendanceDTO `json:"participants"`
}

type runRequest struct {
	Period string `json:"period"`
	Mode   string `json:"mode"`
	// Notify overrides the stored notifications setting when present.
	Notify *bool `json:"notify"`
}

type purgeRequest struct {
	Category string `json:"category"`
}

type notificationsRequest struct {
	Enabled *bool `json:"enabled"`
}

// viewerFrom reads the caller identity. Anyone without the admin role is
// a plain member.
func viewerFrom(r *http.Request) (core.Viewer, error) {
	id := strings.TrimSpace(r.Header.Get(headerMemberID))
	if id == "" {
		return core.Viewer{}, errUnauthenticated
	}
	role := core.RoleMember
	if strings.EqualFold(strings.TrimSpace(r.Header.Get(headerMemberRole)), string(core.RoleAdmin)) {
		role = core.RoleAdmin
	}
	return core.Viewer{MemberID: id, Role: role}, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &core.ValidationError{Field: "body", Rule: fmt.Errorf("malformed JSON: %w", err)}
	}
	return nil
}

// toInput converts a ticket request into domain input. Prices are decimal
// strings in the major unit, e.g. "2.50".
func (req ticketRequest) toInput() (core.TicketInput, error) {
	in := core.TicketInput{
		OwnerUID:   strings.TrimSpace(req.OwnerID),
		Category:   core.Category(strings.ToLower(strings.TrimSpace(req.Category))),
		EventLabel: sanitizeInput(req.EventLabel),
	}
	if strings.TrimSpace(req.Date) != "" {
		d, err := core.ParseDate(strings.TrimSpace(req.Date))
		if err != nil {
			return core.TicketInput{}, &core.ValidationError{Field: "date", Rule: err}
		}
		in.Date = d
	}
	for i, li := range req.LineItems {
		cents, err := core.ParseDecimalToCents(li.UnitPrice)
		if err != nil {
			return core.TicketInput{}, &core.ValidationError{
				Field: fmt.Sprintf("line_items[%d].unit_price", i),
				Rule:  core.ErrInvalidUnitPrice,
			}
		}
		in.LineItems = append(in.LineItems, core.LineItem{
			Label:     sanitizeInput(li.Label),
			UnitPrice: core.Money{Cents: cents},
			Quantity:  li.Quantity,
		})
	}
	for _, p := range req.Participants {
		in.Attendance = append(in.Attendance, core.Attendance{
			UID:           strings.TrimSpace(p.MemberID),
			AttendeeCount: p.AttendeeCount,
		})
	}
	return in, nil
}

// parsePeriodParam reads ?period=YYYY-MM, defaulting to the month of now.
func parsePeriodParam(r *http.Request, now time.Time) (core.Period, error) {
	v := strings.TrimSpace(r.URL.Query().Get("period"))
	if v == "" {
		return core.PeriodOf(now), nil
	}
	p, err := core.ParsePeriod(v)
	if err != nil {
		return core.Period{}, &core.ValidationError{Field: "period", Rule: err}
	}
	return p, nil
}

// parseTicketFilter builds a filter from ?period, ?owner and ?category.
func parseTicketFilter(r *http.Request, now time.Time) (storage.TicketFilter, error) {
	p, err := parsePeriodParam(r, now)
	if err != nil {
		return storage.TicketFilter{}, err
	}
	f := storage.ForPeriod(p)
	f.OwnerUID = strings.TrimSpace(r.URL.Query().Get("owner"))
	if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" {
		f.Category = core.Category(strings.ToLower(c))
		if err := f.Category.Validate(); err != nil {
			return storage.TicketFilter{}, &core.ValidationError{Field: "category", Rule: err}
		}
	}
	return f, nil
}

func parseYear(r *http.Request, now time.Time) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return now.Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1900 || y > 9999 {
		return 0, &core.ValidationError{Field: "year", Rule: fmt.Errorf("invalid year %q", v)}
	}
	return y, nil
}

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
