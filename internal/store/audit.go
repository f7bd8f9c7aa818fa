package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/horecametrics/importer/internal/importer"
)

// Audit entry kinds in import_audit_log. The table is append-only: entries
// are inserted and never updated or deleted.
const (
	auditKindMapping   = "mapping"
	auditKindRejection = "rejection"
)

// LogMapping appends the accepted mapping snapshot for a run. This happens
// before the first data row is processed, so every persisted record can be
// traced to the mapping decision behind it.
func (s *Store) LogMapping(ctx context.Context, runID uuid.UUID, analysis *importer.Analysis) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO import_audit_log (id, run_id, kind, payload) VALUES ($1, $2, $3, $4)`,
		uuid.New(), runID, auditKindMapping, payload,
	)
	if err != nil {
		return fmt.Errorf("append mapping audit entry: %w", err)
	}
	return nil
}

// LogRejections appends one audit entry per rejected row.
func (s *Store) LogRejections(ctx context.Context, runID uuid.UUID, errs []importer.ValidationError) error {
	if len(errs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range errs {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal rejection: %w", err)
		}
		batch.Queue(
			`INSERT INTO import_audit_log (id, run_id, kind, row_index, field, reason, payload)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), runID, auditKindRejection, e.Row, nullIfEmpty(e.Field), e.Reason, payload,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range errs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("append rejection audit entry: %w", err)
		}
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
