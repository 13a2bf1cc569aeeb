package http

import (
	"net/http"
	"strings"
	"time"

	"clubledger/internal/core"
	"clubledger/internal/services"
)

type reportView struct {
	ID            string          `json:"id"`
	Period        string          `json:"period"`
	Mode          core.ReportMode `json:"mode"`
	PersonalTotal string          `json:"personal_total"`
	SharedTotal   string          `json:"shared_total"`
	GrandTotal    string          `json:"grand_total"`
	TicketCount   int             `json:"ticket_count"`
	MemberCount   int             `json:"member_count"`
	ArtifactPath  string          `json:"artifact_path"`
	ArtifactURL   string          `json:"artifact_url"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

type notificationFailureView struct {
	MemberID string `json:"member_id"`
	Error    string `json:"error"`
}

type runView struct {
	Status               services.RunStatus        `json:"status"`
	Period               string                    `json:"period"`
	Report               *reportView               `json:"report,omitempty"`
	Notified             int                       `json:"notified"`
	NotificationFailures []notificationFailureView `json:"notification_failures,omitempty"`
}

func viewReport(r core.MonthlyReport) reportView {
	return reportView{
		ID:            r.ID,
		Period:        r.Period.String(),
		Mode:          r.Mode,
		PersonalTotal: r.PersonalTotal.String(),
		SharedTotal:   r.SharedTotal.String(),
		GrandTotal:    r.GrandTotal.String(),
		TicketCount:   r.TicketCount,
		MemberCount:   r.MemberCount,
		ArtifactPath:  r.ArtifactPath,
		ArtifactURL:   r.ArtifactURL,
		GeneratedAt:   r.GeneratedAt,
	}
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	year, err := parseYear(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	reports, err := s.deps.Reports.List(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]reportView, 0, len(reports))
	for _, rep := range reports {
		out = append(out, viewReport(rep))
	}
	writeJSON(w, http.StatusOK, map[string]any{"year": year, "reports": out})
}

// handleRunReport triggers a report run. Manual is the default mode; an
// explicit period is optional and defaults to last month.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	viewer, err := s.requireAdmin(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	run := services.RunRequest{Mode: core.ModeManual}
	if m := strings.TrimSpace(req.Mode); m != "" {
		run.Mode = core.ReportMode(strings.ToLower(m))
	}
	if p := strings.TrimSpace(req.Period); p != "" {
		period, err := core.ParsePeriod(p)
		if err != nil {
			writeError(w, r, &core.ValidationError{Field: "period", Rule: err})
			return
		}
		run.Period = &period
	}
	if req.Notify != nil {
		run.NotificationsEnabled = *req.Notify
	} else {
		enabled, err := s.deps.Settings.NotificationsEnabled(r.Context(), s.deps.NotificationsDefault)
		if err != nil {
			writeError(w, r, err)
			return
		}
		run.NotificationsEnabled = enabled
	}

	res, err := s.deps.Reports.Run(r.Context(), run)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.deps.Logger.InfoContext(r.Context(), "Report run requested",
		"member_id", viewer.MemberID,
		"period", res.Period.String(),
		"mode", run.Mode,
		"status", res.Status)

	v := runView{Status: res.Status, Period: res.Period.String(), Notified: res.Notified}
	if res.Status == services.StatusCompleted {
		rep := viewReport(res.Report)
		v.Report = &rep
	}
	for _, f := range res.NotificationFailures {
		v.NotificationFailures = append(v.NotificationFailures, notificationFailureView{MemberID: f.MemberID, Error: f.Err.Error()})
	}
	code := http.StatusOK
	if res.Status == services.StatusCompleted {
		code = http.StatusCreated
	}
	writeJSON(w, code, v)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Reports.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
