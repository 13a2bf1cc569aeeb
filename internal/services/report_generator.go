package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"clubledger/internal/blob"
	"clubledger/internal/core"
	"clubledger/internal/metrics"
	"clubledger/internal/notify"
	"clubledger/internal/sheets"
	"clubledger/internal/storage"
)

// RunStatus is the outcome of a report run that did not fail.
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	// StatusDuplicate means a report for the same period and mode already
	// exists or is being produced; nothing was done.
	StatusDuplicate RunStatus = "duplicate"
	// StatusNoTickets means the period had no tickets; nothing was stored.
	StatusNoTickets RunStatus = "no_tickets"
)

var reportHeader = []string{"Member", "Personal Total", "Shared Total", "Grand Total"}

// RunRequest selects what to generate. A nil Period means the month before
// the current one.
type RunRequest struct {
	Period               *core.Period
	Mode                 core.ReportMode
	NotificationsEnabled bool
}

type RunResult struct {
	Status RunStatus
	Period core.Period
	Report core.MonthlyReport
	// Notified counts recipients whose notice was queued.
	Notified             int
	NotificationFailures []core.NotificationFailure
}

// ReportDeps are the collaborators of a ReportGenerator. Notifier, Mirror
// and Metrics are optional.
type ReportDeps struct {
	Index    storage.ReportIndex
	Tickets  storage.TicketRepository
	Members  storage.MemberDirectory
	Blobs    blob.Store
	Notifier notify.Dispatcher
	Mirror   sheets.ReportPublisher
	Metrics  *metrics.Metrics
}

// ReportGenerator produces at most one archived report per period and mode.
type ReportGenerator struct {
	deps ReportDeps
	now  func() time.Time
}

func NewReportGenerator(deps ReportDeps) *ReportGenerator {
	return &ReportGenerator{
		deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Run generates, archives and indexes the report for one period, then
// notifies members when enabled. Notification failures are returned in the
// result and never undo the stored report.
func (g *ReportGenerator) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	started := g.now()
	period := core.PreviousPeriod(started)
	if req.Period != nil {
		period = *req.Period
	}
	if err := period.Validate(); err != nil {
		return RunResult{}, &core.ValidationError{Field: "period", Rule: err}
	}
	if err := req.Mode.Validate(); err != nil {
		return RunResult{}, &core.ValidationError{Field: "mode", Rule: err}
	}

	res, err := g.run(ctx, period, req)
	outcome := string(res.Status)
	if err != nil {
		outcome = "failed"
	}
	var elapsed float64
	if res.Status == StatusCompleted {
		elapsed = g.now().Sub(started).Seconds()
	}
	g.deps.Metrics.ReportRun(string(req.Mode), outcome, elapsed)
	return res, err
}

func (g *ReportGenerator) run(ctx context.Context, period core.Period, req RunRequest) (RunResult, error) {
	res := RunResult{Period: period}
	logger := slog.Default().With("period", period.String(), "mode", req.Mode)

	id, err := g.deps.Index.Reserve(ctx, period, req.Mode)
	if errors.Is(err, core.ErrReportExists) {
		logger.InfoContext(ctx, "Report already generated, skipping")
		res.Status = StatusDuplicate
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("reserve report %s: %w", period, err)
	}

	var (
		tickets []core.Ticket
		members []core.Member
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		tickets, err = g.deps.Tickets.QueryTickets(egCtx, storage.ForPeriod(period))
		if err != nil {
			return fmt.Errorf("query tickets: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		members, err = g.deps.Members.ListMembers(egCtx)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		g.release(ctx, id)
		return res, err
	}

	if len(tickets) == 0 {
		g.release(ctx, id)
		logger.InfoContext(ctx, "No tickets in period, report not generated")
		res.Status = StatusNoTickets
		return res, nil
	}

	totals := core.Aggregate(tickets, core.AdminViewer())
	rows := reportRows(totals, members)
	data, err := encodeCSV(rows)
	if err != nil {
		g.release(ctx, id)
		return res, fmt.Errorf("encode report: %w", err)
	}

	path := ArtifactPath(period, req.Mode)
	url, err := g.deps.Blobs.Upload(ctx, path, data, "text/csv")
	if err != nil {
		g.release(ctx, id)
		var serr *core.StorageError
		if !errors.As(err, &serr) {
			err = &core.StorageError{Op: "upload", Path: path, Err: err}
		}
		return res, err
	}

	report := core.MonthlyReport{
		ID:            id,
		Period:        period,
		Mode:          req.Mode,
		PersonalTotal: totals.PersonalTotal,
		SharedTotal:   totals.SharedTotal,
		GrandTotal:    totals.GrandTotal,
		TicketCount:   totals.TicketCount,
		MemberCount:   len(totals.PerMember),
		ArtifactPath:  path,
		ArtifactURL:   url,
		GeneratedAt:   g.now(),
	}
	if err := g.deps.Index.Complete(ctx, report); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// The reservation was released as stale while this run was
			// slow; the artifact at path may already belong to another run.
			logger.WarnContext(ctx, "Report reservation lost before completion", "report_id", id)
			return res, fmt.Errorf("index report %s: %w", period, err)
		}
		if derr := g.deps.Blobs.Delete(context.WithoutCancel(ctx), path); derr != nil {
			logger.WarnContext(ctx, "Failed to remove orphaned artifact", "artifact_path", path, "error", derr)
		}
		g.release(ctx, id)
		return res, fmt.Errorf("index report %s: %w", period, err)
	}
	res.Status = StatusCompleted
	res.Report = report
	logger.InfoContext(ctx, "Report generated",
		"report_id", id,
		"artifact_path", path,
		"tickets", report.TicketCount,
		"grand_total_cents", report.GrandTotal.Cents)

	if g.deps.Mirror != nil {
		if ref, err := g.deps.Mirror.PublishReport(ctx, report, rows); err != nil {
			logger.WarnContext(ctx, "Spreadsheet mirror failed", "report_id", id, "error", err)
		} else {
			logger.DebugContext(ctx, "Report mirrored to spreadsheet", "ref", ref)
		}
	}

	if req.NotificationsEnabled && g.deps.Notifier != nil {
		res.NotificationFailures = g.deps.Notifier.Dispatch(ctx, members, noticeFor(report))
		res.Notified = len(members) - len(res.NotificationFailures)
		g.deps.Metrics.Notifications(res.Notified, len(res.NotificationFailures))
		if len(res.NotificationFailures) > 0 {
			logger.WarnContext(ctx, "Some report notifications failed",
				"report_id", id,
				"failed", len(res.NotificationFailures),
				"recipients", len(members))
		}
	}
	return res, nil
}

// release drops a pending reservation. It runs even when ctx is done so an
// aborted run does not block the period.
func (g *ReportGenerator) release(ctx context.Context, id string) {
	if err := g.deps.Index.Release(context.WithoutCancel(ctx), id); err != nil {
		slog.WarnContext(ctx, "Failed to release report reservation", "report_id", id, "error", err)
	}
}

// Delete removes a report's artifact and then its record. The record is
// kept when the artifact cannot be removed.
func (g *ReportGenerator) Delete(ctx context.Context, id string) error {
	r, err := g.deps.Index.GetReport(ctx, id)
	if err != nil {
		return fmt.Errorf("get report %s: %w", id, err)
	}
	if r.ArtifactPath != "" {
		if err := g.deps.Blobs.Delete(ctx, r.ArtifactPath); err != nil {
			var serr *core.StorageError
			if !errors.As(err, &serr) {
				err = &core.StorageError{Op: "delete", Path: r.ArtifactPath, Err: err}
			}
			return err
		}
	}
	if err := g.deps.Index.DeleteReport(ctx, id); err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Report deleted", "report_id", id, "period", r.Period.String())
	return nil
}

// List returns the completed reports of one year ordered by month.
func (g *ReportGenerator) List(ctx context.Context, year int) ([]core.MonthlyReport, error) {
	return g.deps.Index.ListReports(ctx, year)
}

// OrphanedArtifacts lists archived files under reports/ that no completed
// report references. Artifacts of runs still in progress show up too.
func (g *ReportGenerator) OrphanedArtifacts(ctx context.Context) ([]string, error) {
	paths, err := g.deps.Blobs.List(ctx, artifactPrefix)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool)
	years := make(map[int]bool)
	var orphans []string
	for _, p := range paths {
		year, ok := artifactYear(p)
		if !ok {
			orphans = append(orphans, p)
			continue
		}
		if !years[year] {
			years[year] = true
			reports, err := g.deps.Index.ListReports(ctx, year)
			if err != nil {
				return nil, fmt.Errorf("list reports %d: %w", year, err)
			}
			for _, r := range reports {
				known[r.ArtifactPath] = true
			}
		}
		if !known[p] {
			orphans = append(orphans, p)
		}
	}
	return orphans, nil
}

const artifactPrefix = "reports/"

// artifactYear reads the year partition of an artifact path.
func artifactYear(p string) (int, bool) {
	parts := strings.Split(strings.TrimPrefix(p, artifactPrefix), "/")
	if len(parts) < 2 {
		return 0, false
	}
	year, err := strconv.Atoi(parts[0])
	return year, err == nil
}

// ArtifactPath is where the report for a period and mode is archived.
func ArtifactPath(p core.Period, mode core.ReportMode) string {
	return fmt.Sprintf("reports/%04d/%02d/monthly-report-%s-%s.csv", p.Year, p.Month, p, mode)
}

func reportRows(totals core.Totals, members []core.Member) [][]string {
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name()
	}

	rows := make([][]string, 0, len(totals.PerMember)+2)
	rows = append(rows, reportHeader)
	for _, mt := range totals.PerMember {
		name, ok := names[mt.MemberID]
		if !ok {
			name = mt.MemberID
		}
		rows = append(rows, []string{name, mt.PersonalTotal.String(), mt.SharedTotal.String(), mt.Total.String()})
	}
	rows = append(rows, []string{"TOTAL", totals.PersonalTotal.String(), totals.SharedTotal.String(), totals.GrandTotal.String()})
	return rows
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func noticeFor(r core.MonthlyReport) notify.Notice {
	return notify.Notice{
		Subject:  fmt.Sprintf("Monthly report %s", r.Period),
		Body:     fmt.Sprintf("The club report for %s is ready: %d tickets, total %s.", r.Period, r.TicketCount, r.GrandTotal),
		ReportID: r.ID,
		Period:   r.Period.String(),
	}
}
