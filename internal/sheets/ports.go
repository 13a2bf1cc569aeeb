package sheets

import (
	"context"

	"clubledger/internal/core"
)

// ReportPublisher mirrors a generated report into a spreadsheet. rows
// includes the header row.
type ReportPublisher interface {
	PublishReport(ctx context.Context, r core.MonthlyReport, rows [][]string) (ref string, err error)
}
