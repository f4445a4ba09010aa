// Package export renders a ledger for spreadsheets: a CSV download and the
// row layout shared with the Google Sheets mirror.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"fintrack/internal/core"
)

// Header is the first CSV row and the first row of a mirrored sheet.
var Header = []string{"Date", "Type", "Category", "Description", "Payment Method", "Amount"}

// Record returns the exported columns of a transaction, in Header order.
func Record(t core.Transaction) []string {
	return []string{
		t.Date.String(),
		string(t.Type),
		t.Category,
		t.Description,
		string(t.PaymentMethod),
		t.Amount.String(),
	}
}

// WriteCSV writes the header and one line per transaction, in the given
// order. The description column is always quoted; other columns are quoted
// only when they contain a separator, quote or line break.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, ",") + "\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range txs {
		rec := Record(t)
		for i, field := range rec {
			if i > 0 {
				bw.WriteByte(',')
			}
			if i == 3 {
				bw.WriteString(quote(field))
			} else {
				bw.WriteString(escape(field))
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write transaction %s: %w", t.ID, err)
		}
	}
	return bw.Flush()
}

// FileName is the download name for an export produced on the given day.
func FileName(today core.Date) string {
	return "transactions_" + today.String() + ".csv"
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func escape(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}
