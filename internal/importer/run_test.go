package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// engineInserter is an in-memory BulkInserter that records event order and
// rejects batches containing marked records.
type engineInserter struct {
	events   *[]string
	table    string
	inserted []Record
}

func (f *engineInserter) InsertMany(_ context.Context, table string, records []Record) error {
	*f.events = append(*f.events, "insert")
	f.table = table
	for _, r := range records {
		if r.Extra["Status"] == "geweigerd" {
			return errors.New("constraint violation")
		}
	}
	f.inserted = append(f.inserted, records...)
	return nil
}

type memAudit struct {
	events     *[]string
	mappings   []*Analysis
	rejections [][]ValidationError
}

func (a *memAudit) LogMapping(_ context.Context, _ uuid.UUID, analysis *Analysis) error {
	*a.events = append(*a.events, "mapping")
	a.mappings = append(a.mappings, analysis)
	return nil
}

func (a *memAudit) LogRejections(_ context.Context, _ uuid.UUID, errs []ValidationError) error {
	*a.events = append(*a.events, "rejections")
	a.rejections = append(a.rejections, errs)
	return nil
}

type memRuns struct {
	createdProfile string
	createdFile    string
	finishedState  RunState
	processed      int
	skipped        int
	errorCount     int
}

func (r *memRuns) CreateRun(_ context.Context, _ uuid.UUID, profile, fileName string, _ uuid.UUID, _ map[string]string) error {
	r.createdProfile = profile
	r.createdFile = fileName
	return nil
}

func (r *memRuns) FinishRun(_ context.Context, _ uuid.UUID, state RunState, processed, skipped, errorCount int) error {
	r.finishedState = state
	r.processed = processed
	r.skipped = skipped
	r.errorCount = errorCount
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *engineInserter, *memAudit, *memRuns) {
	t.Helper()
	events := &[]string{}
	inserter := &engineInserter{events: events}
	audit := &memAudit{events: events}
	runs := &memRuns{}
	engine := NewEngine(inserter, audit, EngineOptions{Runs: runs, BatchSize: 2})
	return engine, inserter, audit, runs
}

func TestEngineRun_CleanSheet(t *testing.T) {
	engine, inserter, audit, runs := newTestEngine(t)

	raw := [][]string{
		{"Datum", "Omzet", "Product", "Aantal"},
		{"01/03/2024", "120,50", "Koffie", "48"},
		{"02/03/2024", "98,20", "Thee", "31"},
		{"03/03/2024", "55,00", "Gebak", "12"},
	}

	result, err := engine.Run(context.Background(), RunRequest{
		Rows:     cellRows(raw),
		FileName: "omzet.csv",
		Profile:  mustProfile("pos_sales"),
	})
	require.NoError(t, err)

	assert.Equal(t, StatePersisted, result.State)
	assert.Equal(t, 3, result.ProcessedCount)
	assert.Equal(t, 0, result.SkippedCount)
	assert.Empty(t, result.Errors)
	assert.NotEqual(t, uuid.Nil, result.RunID)

	assert.Equal(t, "pos_sales", inserter.table)
	assert.Len(t, inserter.inserted, 3)

	// The mapping snapshot hits the audit trail before any insert.
	events := *audit.events
	require.NotEmpty(t, events)
	assert.Equal(t, "mapping", events[0])
	require.Len(t, audit.mappings, 1)
	assert.Equal(t, 0, audit.mappings[0].HeaderRow)

	assert.Equal(t, "pos_sales", runs.createdProfile)
	assert.Equal(t, "omzet.csv", runs.createdFile)
	assert.Equal(t, StatePersisted, runs.finishedState)
	assert.Equal(t, 3, runs.processed)
}

func TestEngineRun_AnalysisFailure(t *testing.T) {
	engine, inserter, audit, runs := newTestEngine(t)

	raw := [][]string{
		{"xkolom1x", "xkolom2x", "xkolom3x", "xkolom4x"},
		{"aaa111", "bbb222", "ccc333", "ddd444"},
	}

	result, err := engine.Run(context.Background(), RunRequest{
		Rows:    cellRows(raw),
		Profile: mustProfile("pos_sales"),
	})

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, StateFailed, runs.finishedState)
	assert.Empty(t, inserter.inserted)
	assert.Empty(t, audit.mappings, "no mapping snapshot for a rejected sheet")
}

func TestEngineRun_LedgerLinesSummedByNaturalKey(t *testing.T) {
	engine, inserter, _, _ := newTestEngine(t)

	raw := [][]string{
		{"Grootboek", "Omschrijving", "Periode", "Bedrag"},
		{"4001", "Omzet keuken", "2024-03", "100,50"},
		{"4001", "Omzet keuken", "2024-03", "49,50"},
		{"4002", "Inkoop", "2024-03", "10,00"},
	}

	result, err := engine.Run(context.Background(), RunRequest{
		Rows:    cellRows(raw),
		Profile: mustProfile("gl_pnl"),
	})
	require.NoError(t, err)

	assert.Equal(t, StatePersisted, result.State)
	assert.Equal(t, 2, result.ProcessedCount, "duplicate natural keys merge instead of persisting twice")
	assert.Equal(t, "gl_pnl_lines", inserter.table)

	var merged *Record
	for i := range inserter.inserted {
		if inserter.inserted[i].Fields["ledger_code"] == "4001" {
			merged = &inserter.inserted[i]
		}
	}
	require.NotNil(t, merged)
	assert.InDelta(t, 150.0, merged.Fields["amount"].(float64), 1e-9)
}

func TestEngineRun_MappingOverride(t *testing.T) {
	engine, inserter, _, _ := newTestEngine(t)

	// Header names the matcher cannot place; the caller supplies the mapping.
	raw := [][]string{
		{"K1", "K2"},
		{"01/03/2024", "120,50"},
	}
	override := &Mapping{Columns: map[string]MappedColumn{
		"date":    {Index: 0, Header: "K1", Confidence: 1.0},
		"revenue": {Index: 1, Header: "K2", Confidence: 1.0},
	}}

	result, err := engine.Run(context.Background(), RunRequest{
		Rows:    cellRows(raw),
		Profile: mustProfile("pos_sales"),
		Mapping: override,
	})
	require.NoError(t, err)
	assert.Equal(t, StatePersisted, result.State)
	assert.Equal(t, 1, result.ProcessedCount)
	require.Len(t, inserter.inserted, 1)
	assert.InDelta(t, 120.50, inserter.inserted[0].Fields["revenue"].(float64), 1e-9)
}

func TestEngineRun_MappingOverrideMissingRequired(t *testing.T) {
	engine, _, _, runs := newTestEngine(t)

	raw := [][]string{
		{"K1", "K2"},
		{"01/03/2024", "120,50"},
	}
	override := &Mapping{Columns: map[string]MappedColumn{
		"date": {Index: 0, Header: "K1", Confidence: 1.0},
	}}

	result, err := engine.Run(context.Background(), RunRequest{
		Rows:    cellRows(raw),
		Profile: mustProfile("pos_sales"),
		Mapping: override,
	})

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Contains(t, analysisErr.MissingRequired, "revenue")
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, StateFailed, runs.finishedState)
}

func TestEngineRun_RowAndPersistFailuresAreRowLocal(t *testing.T) {
	engine, inserter, audit, runs := newTestEngine(t)

	raw := [][]string{
		{"Datum", "Omzet", "Product", "Aantal", "Status"},
		{"01/03/2024", "120,50", "Koffie", "48", ""},
		{"02/03/2024", "kapot", "Thee", "31", ""},           // invalid required value
		{"03/03/2024", "55,00", "Gebak", "12", "geweigerd"}, // rejected by the insert
		{"04/03/2024", "70,00", "Soep", "9", ""},
	}

	result, err := engine.Run(context.Background(), RunRequest{
		Rows:    cellRows(raw),
		Profile: mustProfile("pos_sales"),
	})
	require.NoError(t, err, "row-local failures never abort a mapped run")

	assert.Equal(t, StatePersisted, result.State)
	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedCount, "insert failures count as errors, not skips")
	require.Len(t, result.Errors, 2)

	// The surviving rows persisted despite their failing neighbors.
	require.Len(t, inserter.inserted, 2)
	assert.InDelta(t, 120.50, inserter.inserted[0].Fields["revenue"].(float64), 1e-9)
	assert.InDelta(t, 70.0, inserter.inserted[1].Fields["revenue"].(float64), 1e-9)

	// Both the coercion failure and the insert failure name their sheet rows.
	assert.ElementsMatch(t, []int{2, 3}, []int{result.Errors[0].Row, result.Errors[1].Row})

	// Rejections reach the audit trail.
	require.Len(t, audit.rejections, 1)
	assert.Len(t, audit.rejections[0], 2)
	assert.Equal(t, 2, runs.errorCount)
	assert.Equal(t, 1, runs.skipped)
}

func TestEngineRun_CustomRegistryDrivesCoercion(t *testing.T) {
	registry := NewRegistry([]Field{
		{Name: "date", Kind: KindDate, Synonyms: []string{"datum"}},
		{Name: "net_margin", Kind: KindNumber, Synonyms: []string{"marge"}},
	})
	events := &[]string{}
	inserter := &engineInserter{events: events}
	engine := NewEngine(inserter, &memAudit{events: events}, EngineOptions{Registry: registry, BatchSize: 2})

	raw := [][]string{
		{"Datum", "Marge"},
		{"01/03/2024", "12,5"},
	}
	profile := Profile{Name: "margins", Table: "margins", Required: []string{"date", "net_margin"}}

	result, err := engine.Run(context.Background(), RunRequest{
		Rows:    cellRows(raw),
		Profile: profile,
	})
	require.NoError(t, err)
	assert.Equal(t, StatePersisted, result.State)

	require.Len(t, inserter.inserted, 1)
	margin, ok := inserter.inserted[0].Fields["net_margin"].(float64)
	require.True(t, ok, "custom registry kinds must drive coercion, got %T",
		inserter.inserted[0].Fields["net_margin"])
	assert.InDelta(t, 12.5, margin, 1e-9)
}

func TestMergeByNaturalKey(t *testing.T) {
	p := mustProfile("gl_pnl")
	records := []Record{
		{Fields: map[string]any{"ledger_code": "4001", "period": "2024-03", "amount": 10.0}},
		{Fields: map[string]any{"ledger_code": "4001", "period": "2024-03", "amount": 5.5}},
		{Fields: map[string]any{"ledger_code": "4001", "period": "2024-04", "amount": 1.0}},
		{Fields: map[string]any{"ledger_code": "4002", "period": "2024-03", "amount": 2.0}},
	}

	merged := MergeByNaturalKey(records, p)
	require.Len(t, merged, 3)
	assert.InDelta(t, 15.5, merged[0].Fields["amount"].(float64), 1e-9)

	// Profiles without the policy pass through untouched.
	same := MergeByNaturalKey(records, mustProfile("pos_sales"))
	assert.Len(t, same, 4)
}
