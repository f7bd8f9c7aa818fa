package importer

import (
	"fmt"

	"github.com/horecametrics/importer/internal/sheet"
)

// BuiltRecord is the outcome of coercing one raw row against an accepted
// mapping. Errors never short-circuit the build: every mapped column is
// attempted so a single bad cell reports alongside its siblings.
type BuiltRecord struct {
	Fields        map[string]any
	Extra         map[string]string
	LocationLabel string
	Errors        []ValidationError
	Complete      bool
	// Recognized counts mapped columns that held any value at all, parseable
	// or not. Rows with zero recognized values are metadata noise.
	Recognized int
}

// BuildRecord converts one raw row plus the accepted mapping into a
// persistence-ready record. Field kinds come from the given registry, nil
// meaning the default synonym table. Coercion failures on required fields
// mark the row incomplete and emit a ValidationError; optional failures are
// dropped silently. Unmapped columns are preserved verbatim in Extra. The
// location label, when mapped, is captured separately for entity resolution
// rather than written into the record.
func BuildRecord(row []sheet.Cell, headers []string, mapping Mapping, p Profile, registry *Registry, rowIdx int) BuiltRecord {
	rec := BuiltRecord{
		Fields:   make(map[string]any),
		Extra:    make(map[string]string),
		Complete: true,
	}

	if registry == nil {
		registry = DefaultRegistry()
	}
	raw := sheet.RowStrings(row)

	for col := range headers {
		var cell sheet.Cell
		if col < len(row) {
			cell = row[col]
		}

		fieldName, mapped := mapping.FieldAt(col)
		if !mapped {
			if !cell.IsEmpty() && headers[col] != "" {
				rec.Extra[headers[col]] = cell.String()
			}
			continue
		}

		if cell.IsEmpty() {
			if p.IsRequired(fieldName) {
				rec.Complete = false
				rec.Errors = append(rec.Errors, ValidationError{
					Row:    rowIdx,
					Field:  fieldName,
					Reason: "required value is empty",
					Raw:    raw,
				})
			}
			continue
		}
		rec.Recognized++

		field, ok := registry.Lookup(fieldName)
		if !ok {
			// Mapping referenced an unknown field; treat as text.
			field = Field{Name: fieldName, Kind: KindText}
		}

		if field.Kind == KindLocation {
			rec.LocationLabel = cell.String()
			continue
		}

		value, ok := coerce(cell, field.Kind)
		if !ok {
			if p.IsRequired(fieldName) {
				rec.Complete = false
				rec.Errors = append(rec.Errors, ValidationError{
					Row:    rowIdx,
					Field:  fieldName,
					Value:  cell.String(),
					Reason: fmt.Sprintf("invalid %s value %q", kindName(field.Kind), cell.String()),
					Raw:    raw,
				})
			}
			continue
		}
		rec.Fields[fieldName] = value
	}

	return rec
}

// coerce dispatches the parser for the field kind. The bool result reports
// whether the cell held a usable value.
func coerce(cell sheet.Cell, kind FieldKind) (any, bool) {
	switch kind {
	case KindDate:
		if t := ParseDate(cell); t != nil {
			return *t, true
		}
	case KindNumber:
		if v := ParseNumber(cell); v != nil {
			return *v, true
		}
	case KindDuration:
		if v := ParseHours(cell); v != nil {
			return *v, true
		}
	case KindMonth:
		if m := ParseMonth(cell); m != nil {
			return *m, true
		}
	case KindYear:
		if y := ParseYear(cell); y != nil {
			return *y, true
		}
	case KindText, KindLocation:
		if s := cell.String(); s != "" {
			return s, true
		}
	}
	return nil, false
}

func kindName(kind FieldKind) string {
	switch kind {
	case KindDate:
		return "date"
	case KindNumber:
		return "number"
	case KindDuration:
		return "duration"
	case KindMonth:
		return "month"
	case KindYear:
		return "year"
	default:
		return "text"
	}
}
