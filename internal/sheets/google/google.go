package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"fambudget/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config locates the spreadsheet and the service account credentials.
type Config struct {
	SpreadsheetID string
	// SheetName is the base name; the movement year is prefixed.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

// Ensure interface conformance
var _ sheets.MovementExporter = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	credentials, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready", "spreadsheet_id", cfg.SpreadsheetID)
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: sheetBase}
}

// loadCredentials prefers inline JSON, then the file, then the standard
// GOOGLE_APPLICATION_CREDENTIALS path.
func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Export writes the movement row to "<year> <base>". A movement already in
// the sheet, found by its id in column G, has its row rewritten; otherwise
// the row is appended.
func (c *Client) Export(ctx context.Context, row sheets.Row) (string, error) {
	if err := row.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	if year, ok := row.MovedFrom(); ok {
		if err := c.clearRow(ctx, sheets.SheetName(c.sheetBase, year), row.Movement.ID); err != nil {
			return "", err
		}
	}

	sheet := sheets.SheetName(c.sheetBase, row.Movement.Date.Year())
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}

	ids, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheet+"!G:G").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read ids of %s: %w", sheet, err)
	}

	if n := rowOf(ids.Values, row.Movement.ID); n > 0 {
		rng := fmt.Sprintf("%s!A%d:G%d", sheet, n, n)
		resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("update %s: %w", rng, err)
		}
		if resp.UpdatedRange != "" {
			return resp.UpdatedRange, nil
		}
		return rng, nil
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, sheet+"!A:G", vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return sheet, nil
}

// clearRow blanks the movement's row in sheet, if present. Clearing keeps
// the row numbers of the other movements stable.
func (c *Client) clearRow(ctx context.Context, sheet, id string) error {
	ids, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, sheet+"!G:G").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read ids of %s: %w", sheet, err)
	}
	n := rowOf(ids.Values, id)
	if n == 0 {
		return nil
	}
	rng := fmt.Sprintf("%s!A%d:G%d", sheet, n, n)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Cleared movement row from previous year", "movement_id", id, "range", rng)
	return nil
}

// rowOf returns the 1-based row whose first cell is id, or 0.
func rowOf(values [][]any, id string) int {
	for i, r := range values {
		if len(r) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(r[0])) == id {
			return i + 1
		}
	}
	return 0
}
