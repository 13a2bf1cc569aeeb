package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"clubledger/internal/core"
	"clubledger/internal/gcp"
	ports "clubledger/internal/sheets"
)

const defaultTabBase = "Report"

// Client writes each monthly report into its own tab of one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// tabBase is the tab name without year, e.g. "Report".
	tabBase string
}

var _ ports.ReportPublisher = (*Client)(nil)

// New creates a Sheets client authenticated with a service account key.
func New(ctx context.Context, spreadsheetID string, creds gcp.Credentials) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	key, err := creds.FromEnv().Load()
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(key),
		"scope", gsheet.SpreadsheetsScope)
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(key),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID), nil
}

func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, tabBase: defaultTabBase}
}

// PublishReport creates the tab for the report period, when missing, and
// overwrites its contents starting at A1.
func (c *Client) PublishReport(ctx context.Context, r core.MonthlyReport, rows [][]string) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	tab := c.tabName(r)

	add := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, add).Context(ctx).Do(); err != nil {
		if !isAlreadyExists(err) {
			return "", fmt.Errorf("add sheet %s: %w", tab, err)
		}
		slog.DebugContext(ctx, "Report sheet already present, overwriting", "sheet", tab)
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = make([]any, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	rng := fmt.Sprintf("'%s'!A1", tab)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write %s: %w", rng, err)
	}
	return rng, nil
}

// tabName is "<year> <base> <mm> <mode>", e.g. "2024 Report 03 automatic".
func (c *Client) tabName(r core.MonthlyReport) string {
	base := fmt.Sprintf("%s %02d %s", c.tabBase, r.Period.Month, r.Mode)
	return yearPrefixedName(base, r.Period.Year)
}

func isAlreadyExists(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusBadRequest {
		return false
	}
	return strings.Contains(strings.ToLower(gerr.Message), "already exists")
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
