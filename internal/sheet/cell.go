// Package sheet reads one tabular sheet from a spreadsheet export into a
// matrix of tagged cell values. Cells arrive from providers as an untyped
// union (text, number, date serial); the tagged representation lets the
// import engine pattern-match on the kind instead of guessing from strings.
package sheet

import (
	"strconv"
	"strings"
)

// CellKind tags the runtime type of a cell value.
type CellKind int

const (
	KindEmpty CellKind = iota
	KindText
	KindNumber
)

// Cell is a single spreadsheet cell. For KindNumber, Text still holds the
// original formatted string so error messages can quote what the user saw.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

// Empty returns an empty cell.
func Empty() Cell {
	return Cell{Kind: KindEmpty}
}

// TextCell returns a text cell, or an empty cell for blank input.
func TextCell(s string) Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return Empty()
	}
	return Cell{Kind: KindText, Text: s}
}

// NumberCell returns a numeric cell that retains its source formatting.
func NumberCell(v float64, raw string) Cell {
	return Cell{Kind: KindNumber, Number: v, Text: raw}
}

// FromString classifies a raw string value into a tagged cell. Values that
// parse as a plain float (the form spreadsheet libraries emit for numeric
// and date-serial cells) become KindNumber; everything else stays text.
func FromString(s string) Cell {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Empty()
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return NumberCell(v, trimmed)
	}
	return Cell{Kind: KindText, Text: trimmed}
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == KindEmpty
}

// String returns the original textual form of the cell.
func (c Cell) String() string {
	if c.Kind == KindEmpty {
		return ""
	}
	return c.Text
}

// RowStrings converts a row of cells back to its raw string form, for audit
// entries and failure records.
func RowStrings(row []Cell) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = c.String()
	}
	return out
}
