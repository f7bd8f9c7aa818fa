package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/horecametrics/importer/internal/sheet"
)

// AuditLogger appends mapping decisions and row rejections to the audit
// trail. The trail is append-only: entries are never updated or removed.
type AuditLogger interface {
	LogMapping(ctx context.Context, runID uuid.UUID, analysis *Analysis) error
	LogRejections(ctx context.Context, runID uuid.UUID, errs []ValidationError) error
}

// RunStore records run lifecycle bookkeeping. Completed runs are never
// mutated; re-running a file creates a new run.
type RunStore interface {
	CreateRun(ctx context.Context, runID uuid.UUID, profile, fileName string, entityID uuid.UUID, metadata map[string]string) error
	FinishRun(ctx context.Context, runID uuid.UUID, state RunState, processed, skipped, errorCount int) error
}

// Engine wires the import pipeline per profile: analysis, row processing,
// profile-specific aggregation and batch persistence. One Engine serves
// concurrent runs; all shared state is read-only.
type Engine struct {
	matcher   *Matcher
	registry  *Registry
	inserter  BulkInserter
	audit     AuditLogger
	resolver  Resolver
	runs      RunStore
	batchSize int
	log       *slog.Logger
}

// EngineOptions configures optional collaborators of an Engine.
type EngineOptions struct {
	Registry  *Registry // nil means the default synonym table
	Resolver  Resolver  // nil disables entity resolution
	Runs      RunStore  // nil disables run bookkeeping
	BatchSize int       // 0 means DefaultBatchSize
	Logger    *slog.Logger
}

// NewEngine creates an import engine over the given persistence boundary
// and audit trail.
func NewEngine(inserter BulkInserter, audit AuditLogger, opts EngineOptions) *Engine {
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{
		matcher:   NewMatcher(registry),
		registry:  registry,
		inserter:  inserter,
		audit:     audit,
		resolver:  opts.Resolver,
		runs:      opts.Runs,
		batchSize: batchSize,
		log:       logger,
	}
}

// Matcher exposes the engine's field matcher, for analysis endpoints that
// preview a mapping without running an import.
func (e *Engine) Matcher() *Matcher { return e.matcher }

// RunRequest binds one sheet to one profile and one target entity context.
type RunRequest struct {
	Rows     [][]sheet.Cell
	FileName string
	RunID    uuid.UUID
	EntityID uuid.UUID
	Profile  Profile

	// Mapping overrides the engine's proposed mapping when non-nil. The
	// override must still satisfy the profile's required fields.
	Mapping  *Mapping
	Metadata map[string]string
}

// RunFile is the file-path convenience around Run.
func (e *Engine) RunFile(ctx context.Context, path string, req RunRequest) (*ProcessingResult, error) {
	rows, err := sheet.ReadFile(path)
	if err != nil {
		return nil, err
	}
	req.Rows = rows
	if req.FileName == "" {
		req.FileName = path
	}
	return e.Run(ctx, req)
}

// Run executes one import run through its full lifecycle:
//
//	Analyzing -> Mapped -> Processing -> Persisted
//
// Failed is reachable from Analyzing only; past Mapped every failure is
// row-local and the run completes with errors accumulated on the result.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*ProcessingResult, error) {
	if req.RunID == uuid.Nil {
		req.RunID = uuid.New()
	}
	log := e.log.With("run_id", req.RunID, "profile", req.Profile.Name, "file", req.FileName)

	result := &ProcessingResult{
		RunID:   req.RunID,
		Profile: req.Profile.Name,
		State:   StateAnalyzing,
	}

	if e.runs != nil {
		if err := e.runs.CreateRun(ctx, req.RunID, req.Profile.Name, req.FileName, req.EntityID, req.Metadata); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}

	analysis, err := e.analyze(req)
	if err != nil {
		result.State = StateFailed
		log.Warn("analysis rejected sheet", "error", err)
		e.finish(ctx, req.RunID, result)
		return result, err
	}

	// Mapped: the accepted mapping is written to the audit trail before any
	// row is touched, so every persisted record can be traced back to the
	// mapping decision that produced it.
	result.State = StateMapped
	if err := e.audit.LogMapping(ctx, req.RunID, analysis); err != nil {
		return nil, fmt.Errorf("audit mapping snapshot: %w", err)
	}
	log.Info("mapping accepted",
		"header_row", analysis.HeaderRow,
		"mapped_fields", len(analysis.Mapping.Columns),
	)

	result.State = StateProcessing
	rowRes, err := ProcessRows(ctx, req.Rows, analysis, req.Profile, e.registry, e.resolver, req.RunID, req.EntityID)
	result.Errors = append(result.Errors, rowRes.Errors...)
	result.SkippedCount = rowRes.Skipped
	if err != nil {
		// Cancellation between rows; nothing persisted yet for this run.
		e.finish(ctx, req.RunID, result)
		return result, err
	}

	records := rowRes.Records
	if req.Profile.SumNaturalKey {
		before := len(records)
		records = MergeByNaturalKey(records, req.Profile)
		if merged := before - len(records); merged > 0 {
			log.Info("merged duplicate natural keys", "merged", merged)
		}
	}

	// Insert failures land in Errors only; SkippedCount stays the row-level
	// tally (noise rows and rejected rows) so the bookkeeping keeps the two
	// apart.
	persisted, persistErrs, err := PersistBatches(ctx, e.inserter, req.Profile.Table, records, e.batchSize)
	result.ProcessedCount = persisted
	result.Errors = append(result.Errors, persistErrs...)
	if err != nil {
		// Cancellation between batches; already-persisted batches stay.
		e.finish(ctx, req.RunID, result)
		return result, err
	}

	if len(result.Errors) > 0 {
		if err := e.audit.LogRejections(ctx, req.RunID, result.Errors); err != nil {
			log.Error("audit rejections failed", "error", err)
		}
	}

	result.State = StatePersisted
	e.finish(ctx, req.RunID, result)
	log.Info("run persisted",
		"processed", result.ProcessedCount,
		"skipped", result.SkippedCount,
		"errors", len(result.Errors),
	)
	return result, nil
}

// analyze produces the accepted analysis, honoring a caller override.
func (e *Engine) analyze(req RunRequest) (*Analysis, error) {
	if req.Mapping == nil {
		return Analyze(req.Rows, req.Profile, e.matcher)
	}

	// Caller-supplied mapping: the header row is still detected, but the
	// proposed mapping is replaced wholesale. Required fields must be
	// covered or the run aborts exactly like an unrecognized sheet.
	if len(req.Rows) == 0 {
		return nil, &AnalysisError{Profile: req.Profile.Name}
	}
	headerIdx, score := DetectHeader(req.Rows, req.Profile, e.matcher)
	raw := sheet.RowStrings(req.Rows[headerIdx])

	if missing := missingRequired(req.Profile, *req.Mapping); len(missing) > 0 {
		return nil, &AnalysisError{
			Profile:          req.Profile.Name,
			MappedFields:     len(req.Mapping.Columns),
			PopulatedHeaders: score.Populated,
			MissingRequired:  missing,
		}
	}

	confidence := make(map[string]float64, len(req.Mapping.Columns))
	for field, col := range req.Mapping.Columns {
		confidence[field] = col.Confidence
	}

	return &Analysis{
		Profile:        req.Profile.Name,
		HeaderRow:      headerIdx,
		HeaderScore:    score,
		RawHeaders:     raw,
		Mapping:        *req.Mapping,
		Confidence:     confidence,
		RequiredFields: req.Profile.Required,
		OptionalFields: req.Profile.Optional,
	}, nil
}

func (e *Engine) finish(ctx context.Context, runID uuid.UUID, result *ProcessingResult) {
	if e.runs == nil {
		return
	}
	if err := e.runs.FinishRun(ctx, runID, result.State, result.ProcessedCount, result.SkippedCount, len(result.Errors)); err != nil {
		e.log.Error("record run outcome failed", "run_id", runID, "error", err)
	}
}

// MergeByNaturalKey merges records sharing the profile's natural key by
// summing the profile's amount field. Duplicate natural keys are expected
// in ledger-style exports (one line per journal, same account and period);
// treating them as hard duplicates would reject valid data. The policy is
// per-profile: point-of-sale profiles keep duplicates as separate rows.
func MergeByNaturalKey(records []Record, p Profile) []Record {
	if len(p.NaturalKey) == 0 || p.AmountField == "" {
		return records
	}

	merged := make([]Record, 0, len(records))
	index := make(map[string]int)

	for _, rec := range records {
		key := naturalKey(rec, p.NaturalKey)
		at, seen := index[key]
		if !seen {
			index[key] = len(merged)
			merged = append(merged, rec)
			continue
		}

		prev, _ := merged[at].Fields[p.AmountField].(float64)
		next, _ := rec.Fields[p.AmountField].(float64)
		merged[at].Fields[p.AmountField] = prev + next
	}

	return merged
}

func naturalKey(rec Record, fields []string) string {
	key := rec.LocationID.String()
	for _, f := range fields {
		key += "\x1f" + fmt.Sprint(rec.Fields[f])
	}
	return key
}
