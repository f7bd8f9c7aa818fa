package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/horecametrics/importer/internal/importer"
)

// tableColumns lists the canonical-field columns of each target table, in
// insert order. System columns (run_id, location_id, created_at, extra) are
// common to all four tables.
var tableColumns = map[string][]string{
	"pos_sales":          {"date", "revenue", "product_name", "quantity"},
	"labor_hours":        {"date", "hours", "employee_name", "wage_cost"},
	"labor_productivity": {"month", "year", "productivity", "hours", "revenue"},
	"gl_pnl_lines":       {"ledger_code", "description", "amount", "period", "year"},
}

var systemColumns = []string{"run_id", "location_id", "created_at", "extra"}

// InsertMany bulk-inserts records into a target table with the COPY
// protocol. One call is atomic: either the whole slice lands or the call
// fails, which is exactly the contract the bisecting persister needs.
func (s *Store) InsertMany(ctx context.Context, table string, records []importer.Record) error {
	cols, ok := tableColumns[table]
	if !ok {
		return fmt.Errorf("unknown target table %q", table)
	}

	columns := append(append([]string{}, systemColumns...), cols...)
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row, err := copyRow(rec, cols)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy into %s: %w", table, err)
	}
	return nil
}

func copyRow(rec importer.Record, cols []string) ([]any, error) {
	var extra any
	if len(rec.Extra) > 0 {
		data, err := json.Marshal(rec.Extra)
		if err != nil {
			return nil, fmt.Errorf("marshal extra payload: %w", err)
		}
		extra = data
	}

	var locationID any
	if rec.LocationID != uuid.Nil {
		locationID = rec.LocationID
	}

	row := []any{rec.RunID, locationID, rec.CreatedAt, extra}
	for _, col := range cols {
		if v, ok := rec.Fields[col]; ok {
			row = append(row, v)
		} else {
			row = append(row, nil)
		}
	}
	return row, nil
}
