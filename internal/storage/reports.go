package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clubledger/internal/core"
)

const (
	statusPending   = "pending"
	statusCompleted = "completed"
)

const reportColumns = `id, year, month, mode, personal_cents, shared_cents, grand_cents,
	ticket_count, member_count, artifact_path, artifact_url, generated_at`

// Reserve inserts a pending row for (period, mode). The unique key makes
// the insert a no-op when any row, pending or completed, already exists.
func (r *SQLiteRepository) Reserve(ctx context.Context, p core.Period, mode core.ReportMode) (string, error) {
	id := uuid.NewString()
	res, err := r.db.ExecContext(ctx, `INSERT INTO monthly_reports (id, year, month, mode, status, reserved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(year, month, mode) DO NOTHING`,
		id, p.Year, p.Month, string(mode), statusPending, formatTime(r.now()))
	if err != nil {
		return "", fmt.Errorf("reserve report %s/%s: %w", p, mode, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("reserve report %s/%s: %w", p, mode, core.ErrReportExists)
	}
	return id, nil
}

func (r *SQLiteRepository) Complete(ctx context.Context, rep core.MonthlyReport) error {
	res, err := r.db.ExecContext(ctx, `UPDATE monthly_reports SET
		status = ?, personal_cents = ?, shared_cents = ?, grand_cents = ?, ticket_count = ?,
		member_count = ?, artifact_path = ?, artifact_url = ?, generated_at = ?
		WHERE id = ? AND status = ?`,
		statusCompleted, rep.PersonalTotal.Cents, rep.SharedTotal.Cents, rep.GrandTotal.Cents,
		rep.TicketCount, rep.MemberCount, rep.ArtifactPath, rep.ArtifactURL,
		formatTime(rep.GeneratedAt), rep.ID, statusPending)
	if err != nil {
		return fmt.Errorf("complete report %s: %w", rep.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("complete report %s: no pending reservation: %w", rep.ID, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Release(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM monthly_reports WHERE id = ? AND status = ?`, id, statusPending)
	if err != nil {
		return fmt.Errorf("release report %s: %w", id, err)
	}
	return nil
}

// ReleaseStale drops pending reservations older than the cutoff, which
// belong to runs that died before completing.
func (r *SQLiteRepository) ReleaseStale(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM monthly_reports WHERE status = ? AND reserved_at < ?`,
		statusPending, formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("release stale reports: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.WarnContext(ctx, "Released stale report reservations", "count", n)
	}
	return int(n), nil
}

func (r *SQLiteRepository) GetReport(ctx context.Context, id string) (core.MonthlyReport, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM monthly_reports WHERE id = ? AND status = ?`,
		id, statusCompleted)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlyReport{}, fmt.Errorf("report %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.MonthlyReport{}, fmt.Errorf("get report %s: %w", id, err)
	}
	return rep, nil
}

func (r *SQLiteRepository) ListReports(ctx context.Context, year int) ([]core.MonthlyReport, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM monthly_reports
		WHERE year = ? AND status = ? ORDER BY month, mode`, year, statusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list reports %d: %w", year, err)
	}
	defer rows.Close()

	var out []core.MonthlyReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) DeleteReport(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM monthly_reports WHERE id = ? AND status = ?`, id, statusCompleted)
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("report %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func scanReport(s scanner) (core.MonthlyReport, error) {
	var (
		rep       core.MonthlyReport
		mode      string
		generated sql.NullString
	)
	err := s.Scan(&rep.ID, &rep.Period.Year, &rep.Period.Month, &mode,
		&rep.PersonalTotal.Cents, &rep.SharedTotal.Cents, &rep.GrandTotal.Cents,
		&rep.TicketCount, &rep.MemberCount, &rep.ArtifactPath, &rep.ArtifactURL, &generated)
	if err != nil {
		return rep, err
	}
	rep.Mode = core.ReportMode(mode)
	if generated.Valid {
		rep.GeneratedAt = parseTime(generated.String)
	}
	return rep, nil
}
