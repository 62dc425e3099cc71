// Package tabular abstracts the spreadsheet backend consumed by the pipeline.
package tabular

import (
	"context"
	"strings"
)

// Sheet names written by the report pipeline.
const (
	SheetRawData            = "Raw Data"
	SheetRawDataImport      = "Raw Data Import"
	SheetTransactionDetails = "Transaction Details"
	SheetSharePnL           = "Share Profit/Loss"
	SheetDailyPnL           = "Daily Profit/Loss"
	SheetTaxation           = "Taxation"
)

// Table is a rectangular block of string cells with a header row.
type Table struct {
	Header []string
	Rows   [][]string
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := Table{
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		out.Rows = append(out.Rows, append([]string(nil), row...))
	}
	return out
}

// ColumnIndex returns the position of the named header, case-insensitive.
func (t Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// CellStyle carries presentation hints applied by concrete backends.
type CellStyle struct {
	Bold       bool
	Background string
	FontColor  string
}

// StyleFunc resolves the style for a body cell. Row and column index the
// table body, not the sheet. A nil StyleFunc means unstyled output.
type StyleFunc func(row, col int, value string) CellStyle

// Store reads and writes unit report sheets on a concrete backend.
type Store interface {
	SheetNames(ctx context.Context, unitID string) ([]string, error)
	Read(ctx context.Context, unitID, sheet string) (Table, error)
	Write(ctx context.Context, unitID, sheet string, table Table, style StyleFunc) error
}
