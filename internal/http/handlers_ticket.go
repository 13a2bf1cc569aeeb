package http

import (
	"net/http"
	"time"

	"clubledger/internal/core"
)

type participantView struct {
	MemberID      string `json:"member_id"`
	AttendeeCount int    `json:"attendee_count"`
	Share         string `json:"share"`
}

type ticketView struct {
	ID                string            `json:"id"`
	OwnerID           string            `json:"owner_id"`
	Date              string            `json:"date"`
	CreatedAt         time.Time         `json:"created_at"`
	Category          core.Category     `json:"category"`
	LineItems         []lineItemDTO     `json:"line_items"`
	Amount            string            `json:"amount"`
	EventLabel        string            `json:"event_label,omitempty"`
	Participants      []participantView `json:"participants,omitempty"`
	TotalAttendees    int               `json:"total_attendees,omitempty"`
	AmountPerAttendee string            `json:"amount_per_attendee,omitempty"`
	Description       string            `json:"description"`
}

type memberTotalView struct {
	MemberID      string `json:"member_id"`
	PersonalTotal string `json:"personal_total"`
	SharedTotal   string `json:"shared_total"`
	Total         string `json:"total"`
}

type totalsView struct {
	Period        string            `json:"period"`
	PersonalTotal string            `json:"personal_total"`
	SharedTotal   string            `json:"shared_total"`
	GrandTotal    string            `json:"grand_total"`
	TicketCount   int               `json:"ticket_count"`
	PerMember     []memberTotalView `json:"per_member"`
}

func viewTicket(t core.Ticket) ticketView {
	v := ticketView{
		ID:          t.ID,
		OwnerID:     t.OwnerUID,
		Date:        t.Date.String(),
		CreatedAt:   t.CreatedAt,
		Category:    t.Category,
		Amount:      t.Amount.String(),
		EventLabel:  t.EventLabel,
		Description: t.Description,
	}
	for _, li := range t.LineItems {
		v.LineItems = append(v.LineItems, lineItemDTO{Label: li.Label, UnitPrice: li.UnitPrice.String(), Quantity: li.Quantity})
	}
	if t.IsShared() {
		v.TotalAttendees = t.TotalAttendees
		v.AmountPerAttendee = t.AmountPerAttendee.StringFixed(4)
		for _, p := range t.Participants {
			v.Participants = append(v.Participants, participantView{
				MemberID:      p.UID,
				AttendeeCount: p.AttendeeCount,
				Share:         p.Share.String(),
			})
		}
	}
	return v
}

// canSee reports whether a member may read a ticket: admins see all,
// members see tickets they own or hold a share in.
func canSee(v core.Viewer, t core.Ticket) bool {
	if v.IsAdmin() || t.OwnerUID == v.MemberID {
		return true
	}
	_, ok := t.ShareOf(v.MemberID)
	return ok
}

func canEdit(v core.Viewer, t core.Ticket) bool {
	return v.IsAdmin() || t.OwnerUID == v.MemberID
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ticketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Members always buy for themselves.
	if in.OwnerUID == "" || !viewer.IsAdmin() {
		in.OwnerUID = viewer.MemberID
	}
	if in.Date.IsZero() {
		now := s.now()
		in.Date = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}

	t, err := s.deps.Tickets.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewTicket(t))
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.deps.Tickets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !canSee(viewer, t) {
		// Indistinguishable from a missing ticket.
		writeError(w, r, core.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewTicket(t))
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := parseTicketFilter(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	tickets, err := s.deps.Tickets.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]ticketView, 0, len(tickets))
	for _, t := range tickets {
		if canSee(viewer, t) {
			out = append(out, viewTicket(t))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": out})
}

func (s *Server) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	existing, err := s.deps.Tickets.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !canEdit(viewer, existing) {
		writeError(w, r, errForbidden)
		return
	}
	var req ticketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.deps.Tickets.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewTicket(t))
}

func (s *Server) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	existing, err := s.deps.Tickets.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !canEdit(viewer, existing) {
		writeError(w, r, errForbidden)
		return
	}
	if err := s.deps.Tickets.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTotals aggregates the period for the calling member. Admins get
// every member's figures.
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	viewer, err := viewerFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := parsePeriodParam(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := parseTicketFilter(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	totals, err := s.deps.Tickets.Totals(r.Context(), viewer, f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	v := totalsView{
		Period:        p.String(),
		PersonalTotal: totals.PersonalTotal.String(),
		SharedTotal:   totals.SharedTotal.String(),
		GrandTotal:    totals.GrandTotal.String(),
		TicketCount:   totals.TicketCount,
		PerMember:     make([]memberTotalView, 0, len(totals.PerMember)),
	}
	for _, mt := range totals.PerMember {
		v.PerMember = append(v.PerMember, memberTotalView{
			MemberID:      mt.MemberID,
			PersonalTotal: mt.PersonalTotal.String(),
			SharedTotal:   mt.SharedTotal.String(),
			Total:         mt.Total.String(),
		})
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.requireAdmin(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req purgeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	deleted, err := s.deps.Tickets.PurgeCategory(r.Context(), core.Category(req.Category))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.deps.Logger.InfoContext(r.Context(), "Category purged via API",
		"category", req.Category, "deleted", deleted, "member_id", viewer.MemberID)
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func (s *Server) requireAdmin(r *http.Request) (core.Viewer, error) {
	viewer, err := viewerFrom(r)
	if err != nil {
		return core.Viewer{}, err
	}
	if !viewer.IsAdmin() {
		return core.Viewer{}, errForbidden
	}
	return viewer, nil
}
