// Package sheets defines the outbound ports for exporting ledger rows
// to an external spreadsheet, plus the row shape shared by all backends.
package sheets

import (
	"context"

	"tally/internal/core"
)

// Settlement status labels written to the exported status column.
const (
	StatusPaid    = "paid"
	StatusPartial = "partial"
	StatusUnpaid  = "unpaid"
)

// ExportRow is one ledger line in the external sheet. Amounts are
// pre-formatted decimal strings so every backend writes identical cells.
type ExportRow struct {
	EntryID     string
	Owner       string
	Date        string
	Type        string
	Description string
	Category    string
	Amount      string
	TotalPaid   string
	Remaining   string
	Status      string
}

// NewExportRow flattens an entry and its settlement into a sheet row.
func NewExportRow(e core.Entry, s core.Settlement) ExportRow {
	status := StatusUnpaid
	switch {
	case s.FullyPaid:
		status = StatusPaid
	case s.PartiallyPaid:
		status = StatusPartial
	}

	return ExportRow{
		EntryID:     e.ID,
		Owner:       e.Owner,
		Date:        e.Date.String(),
		Type:        string(e.Type),
		Description: e.Description,
		Category:    e.CategoryName,
		Amount:      core.FormatAmount(e.Amount),
		TotalPaid:   core.FormatAmount(s.TotalPaid),
		Remaining:   core.FormatAmount(s.Remaining),
		Status:      status,
	}
}

// Values returns the row as the cell slice written to the sheet,
// column order A:J.
func (r ExportRow) Values() []any {
	return []any{
		r.EntryID, r.Owner, r.Date, r.Type, r.Description,
		r.Category, r.Amount, r.TotalPaid, r.Remaining, r.Status,
	}
}

// Header returns the header row matching Values' column order.
func Header() []any {
	return []any{
		"Entry ID", "Owner", "Date", "Type", "Description",
		"Category", "Amount", "Total Paid", "Remaining", "Status",
	}
}

// Ports for outbound adapters.
type (
	// RowWriter inserts or updates the row for an entry, keyed by
	// entry ID. Re-exporting the same entry overwrites its row rather
	// than appending a duplicate.
	RowWriter interface {
		UpsertRow(ctx context.Context, row ExportRow) (rowRef string, err error)
	}

	// RowRemover deletes the row for an entry. Removing an entry that
	// was never exported is not an error.
	RowRemover interface {
		RemoveRow(ctx context.Context, entryID string) error
	}
)
