// Package importer implements the universal spreadsheet import engine:
// header-row inference, fuzzy field-to-column mapping, typed value coercion,
// per-row validation and resilient batch persistence. It has no UI
// dependencies and can be driven from any frontend or from the CLI.
package importer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunState tracks the lifecycle of one import run.
// Failed is reachable from Analyzing only; once a run is Mapped, failures
// are row-local and never abort the whole run.
type RunState string

const (
	StateAnalyzing  RunState = "analyzing"
	StateMapped     RunState = "mapped"
	StateProcessing RunState = "processing"
	StatePersisted  RunState = "persisted"
	StateFailed     RunState = "failed"
)

// ValidationError describes one rejected row or field. Errors are always
// accumulated on the run result and appended to the audit log; they are
// never silently dropped.
type ValidationError struct {
	Row    int      `json:"row"`    // 0-based index into the sheet
	Field  string   `json:"field,omitempty"`
	Value  string   `json:"value,omitempty"`
	Reason string   `json:"reason"`
	Raw    []string `json:"raw,omitempty"` // original row as read from the sheet
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: field %q: %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Record is a persistence-ready row: system fields plus the coerced
// canonical fields, with unmapped columns retained verbatim in Extra.
type Record struct {
	RunID      uuid.UUID
	LocationID uuid.UUID // zero when the profile carries no per-row entity
	// RowIndex is the 0-based sheet row this record was built from, kept so
	// insert failures can be attributed to the source row. Merged records
	// carry the first contributing row.
	RowIndex  int
	CreatedAt time.Time
	Fields    map[string]any
	Extra     map[string]string
}

// ProcessingResult is the terminal outcome of a run. It is never mutated
// after completion; re-running a file creates a new run.
type ProcessingResult struct {
	RunID          uuid.UUID         `json:"runId"`
	Profile        string            `json:"profile"`
	State          RunState          `json:"state"`
	ProcessedCount int               `json:"processedCount"`
	SkippedCount   int               `json:"skippedCount"`
	Errors         []ValidationError `json:"errors"`
}
