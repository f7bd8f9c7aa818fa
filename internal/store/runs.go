package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/horecametrics/importer/internal/importer"
)

// CreateRun records the start of an import run.
func (s *Store) CreateRun(ctx context.Context, runID uuid.UUID, profile, fileName string, entityID uuid.UUID, metadata map[string]string) error {
	var meta any
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal run metadata: %w", err)
		}
		meta = data
	}

	var entity any
	if entityID != uuid.Nil {
		entity = entityID
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, profile, file_name, location_id, metadata, state)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, profile, fileName, entity, meta, importer.StateAnalyzing,
	)
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

// FinishRun records the terminal state and counts of a run. The row is
// written exactly once per run and not touched afterwards.
func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, state importer.RunState, processed, skipped, errorCount int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE import_runs
		    SET state = $2, processed_count = $3, skipped_count = $4, error_count = $5, finished_at = now()
		  WHERE id = $1 AND finished_at IS NULL`,
		runID, state, processed, skipped, errorCount,
	)
	if err != nil {
		return fmt.Errorf("finish import run: %w", err)
	}
	return nil
}
