// Package sheets mirrors a user's ledger into a tab of a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	"fintrack/internal/export"
)

const maxTitleLen = 100

// Credentials point at a service account key, inline or on disk. JSON wins
// when both are set.
type Credentials struct {
	JSON string
	File string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	baseName      string
}

// NewClient creates a Sheets client authenticated as a service account.
func NewClient(ctx context.Context, creds Credentials, spreadsheetID, baseName string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(baseName) == "" {
		baseName = "Transactions"
	}

	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, baseName: baseName}, nil
}

func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(creds.JSON) != "":
		credentialsJSON = []byte(creds.JSON)
	case strings.TrimSpace(creds.File) != "":
		b, err := os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service", "credentials_size", len(credentialsJSON))

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// ReplaceLedger rewrites the user's tab with the header followed by every
// transaction. The tab is created on first use.
func (c *Client) ReplaceLedger(ctx context.Context, userID string, txs []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	title := TabName(c.baseName, userID)

	if err := c.ensureTab(ctx, title); err != nil {
		return err
	}

	rng := quoteTitle(title) + "!A:F"
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", title, err)
	}

	vr := &gsheet.ValueRange{Values: Rows(txs)}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, quoteTitle(title)+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", title, err)
	}

	slog.InfoContext(ctx, "Mirrored ledger to sheet",
		"user_id", userID,
		"sheet", title,
		"rows", len(txs))
	return nil
}

func (c *Client) ensureTab(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	if slices.Contains(titles, title) {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	slog.InfoContext(ctx, "Created sheet tab", "sheet", title)
	return nil
}

// Rows converts transactions to sheet values. Amounts stay numeric so the
// sheet can sum them.
func Rows(txs []core.Transaction) [][]interface{} {
	rows := make([][]interface{}, 0, len(txs)+1)
	header := make([]interface{}, len(export.Header))
	for i, h := range export.Header {
		header[i] = h
	}
	rows = append(rows, header)

	for _, t := range txs {
		rec := export.Record(t)
		row := make([]interface{}, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		row[len(row)-1] = t.Amount.Units()
		rows = append(rows, row)
	}
	return rows
}

// TabName is the per-user tab title, e.g. "Transactions alice". Characters
// Sheets rejects in titles are replaced.
func TabName(base, userID string) string {
	name := strings.TrimSpace(base + " " + userID)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, name)
	if len(name) > maxTitleLen {
		name = name[:maxTitleLen]
	}
	return name
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
