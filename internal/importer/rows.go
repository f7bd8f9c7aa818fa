package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/horecametrics/importer/internal/sheet"
)

// Resolver resolves a row-embedded entity label (site/location name) to its
// canonical id. Implementations may hit the database; results are cached
// for the lifetime of one run since the lookup is read-only within it.
type Resolver interface {
	Resolve(ctx context.Context, name string) (uuid.UUID, bool, error)
}

// contextCheckInterval is how often (in rows) to honor cancellation.
// Cancellation is row-granular: a caller may abandon a run between rows,
// never mid-row.
const contextCheckInterval = 100

// RowResult aggregates the outcome of processing all data rows.
type RowResult struct {
	Records []Record
	Errors  []ValidationError
	Skipped int
}

type rowProcessor struct {
	profile  Profile
	mapping  Mapping
	headers  []string
	registry *Registry
	resolver Resolver
	runID    uuid.UUID
	entityID uuid.UUID
	now      func() time.Time

	labelCache map[string]uuid.UUID
	labelMiss  map[string]bool
}

// ProcessRows iterates all data rows after the detected header, skipping
// metadata noise, resolving per-row entity labels where the profile asks
// for it, and accumulating records and errors. Field kinds come from the
// given registry, nil meaning the default synonym table. Only a context
// cancellation stops the iteration; every other failure is row-local.
func ProcessRows(ctx context.Context, rows [][]sheet.Cell, analysis *Analysis, p Profile, registry *Registry, resolver Resolver, runID, entityID uuid.UUID) (RowResult, error) {
	proc := &rowProcessor{
		profile:    p,
		mapping:    analysis.Mapping,
		headers:    analysis.RawHeaders,
		registry:   registry,
		resolver:   resolver,
		runID:      runID,
		entityID:   entityID,
		now:        time.Now,
		labelCache: make(map[string]uuid.UUID),
		labelMiss:  make(map[string]bool),
	}

	var result RowResult
	for i := analysis.HeaderRow + 1; i < len(rows); i++ {
		if (i-analysis.HeaderRow)%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return result, err
			}
		}

		rec, errs, ok := proc.processRow(ctx, rows[i], i)
		result.Errors = append(result.Errors, errs...)
		if !ok {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

// processRow builds and validates one row. The bool result reports whether
// the row produced a persistable record; noise rows return false with no
// errors, rejected rows return false with at least one.
func (p *rowProcessor) processRow(ctx context.Context, row []sheet.Cell, rowIdx int) (Record, []ValidationError, bool) {
	built := BuildRecord(row, p.headers, p.mapping, p.profile, p.registry, rowIdx)

	// Rows with no recognized value in any mapped column are section titles,
	// subtotals or other export noise. Skipping them is not an error.
	if built.Recognized == 0 {
		return Record{}, nil, false
	}

	if !built.Complete {
		return Record{}, built.Errors, false
	}

	rec := Record{
		RunID:      p.runID,
		LocationID: p.entityID,
		RowIndex:   rowIdx,
		CreatedAt:  p.now(),
		Fields:     built.Fields,
		Extra:      built.Extra,
	}

	if built.LocationLabel != "" {
		id, err := p.resolveLabel(ctx, built.LocationLabel)
		if err != nil {
			reason := "unresolved location " + built.LocationLabel
			if !errors.Is(err, errUnresolvedLabel) {
				reason = err.Error()
			}
			return Record{}, append(built.Errors, ValidationError{
				Row:    rowIdx,
				Field:  "location_name",
				Value:  built.LocationLabel,
				Reason: reason,
				Raw:    sheet.RowStrings(row),
			}), false
		}
		rec.LocationID = id
	} else if p.profile.EntityRequired {
		return Record{}, append(built.Errors, ValidationError{
			Row:    rowIdx,
			Field:  "location_name",
			Reason: "missing required location label",
			Raw:    sheet.RowStrings(row),
		}), false
	}

	return rec, built.Errors, true
}

func (p *rowProcessor) resolveLabel(ctx context.Context, label string) (uuid.UUID, error) {
	if id, ok := p.labelCache[label]; ok {
		return id, nil
	}
	if p.labelMiss[label] {
		return uuid.Nil, errUnresolvedLabel
	}
	if p.resolver == nil {
		return uuid.Nil, errUnresolvedLabel
	}

	id, found, err := p.resolver.Resolve(ctx, label)
	if err != nil {
		// Transient lookup failures reject only the current row. The label
		// is not miss-cached, so later rows with the same label retry.
		return uuid.Nil, fmt.Errorf("location lookup for %q failed: %w", label, err)
	}
	if !found {
		p.labelMiss[label] = true
		return uuid.Nil, errUnresolvedLabel
	}
	p.labelCache[label] = id
	return id, nil
}

var errUnresolvedLabel = errors.New("unresolved location label")
