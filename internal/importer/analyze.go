package importer

import (
	"fmt"
	"strings"

	"github.com/horecametrics/importer/internal/sheet"
)

// analysisSampleRows is how many data rows the analysis snapshot carries for
// approval screens.
const analysisSampleRows = 5

// analysisMinRecognition is the run-aborting guard: below this fraction of
// populated header cells mapped to canonical fields, the sheet is considered
// unrecognizable and no row is ever processed.
const analysisMinRecognition = 0.25

// Analysis is the immutable snapshot produced before any data is written.
// It exists so a caller (or a reviewer reading the audit log) can see exactly
// which mapping the engine decided on, and override it before commit.
type Analysis struct {
	Profile           string             `json:"profile"`
	HeaderRow         int                `json:"headerRow"`
	HeaderScore       HeaderScore        `json:"headerScore"`
	RawHeaders        []string           `json:"rawHeaders"`
	NormalizedHeaders []string           `json:"normalizedHeaders"`
	Mapping           Mapping            `json:"mapping"`
	Confidence        map[string]float64 `json:"confidence"`
	SampleRows        [][]string         `json:"sampleRows"`
	RequiredFields    []string           `json:"requiredFields"`
	OptionalFields    []string           `json:"optionalFields"`
}

// AnalysisError is the hard-abort failure of the analysis stage. It names
// the counts and the still-missing required fields so the caller can tell a
// wrong-profile upload from a garbage file.
type AnalysisError struct {
	Profile          string
	MappedFields     int
	PopulatedHeaders int
	MissingRequired  []string
}

func (e *AnalysisError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sheet not recognized for profile %s: %d of %d header cells mapped",
		e.Profile, e.MappedFields, e.PopulatedHeaders)
	if len(e.MissingRequired) > 0 {
		fmt.Fprintf(&b, ", missing required fields: %s", strings.Join(e.MissingRequired, ", "))
	}
	return b.String()
}

// Analyze runs header detection and mapping construction and enforces the
// recognition-rate guard. On success the returned snapshot is ready for
// audit and row processing; on failure the run must abort before any write.
func Analyze(rows [][]sheet.Cell, p Profile, m *Matcher) (*Analysis, error) {
	if len(rows) == 0 {
		return nil, &AnalysisError{Profile: p.Name}
	}

	headerIdx, score := DetectHeader(rows, p, m)
	headerRow := rows[headerIdx]

	raw := sheet.RowStrings(headerRow)
	normalized := make([]string, len(raw))
	populated := 0
	for i, h := range raw {
		normalized[i] = NormalizeHeader(h)
		if normalized[i] != "" {
			populated++
		}
	}

	mapping := BuildMapping(raw, p, m)
	missing := missingRequired(p, mapping)

	rate := 0.0
	if populated > 0 {
		rate = float64(len(mapping.Columns)) / float64(populated)
	}
	if rate < analysisMinRecognition || len(missing) > 0 {
		return nil, &AnalysisError{
			Profile:          p.Name,
			MappedFields:     len(mapping.Columns),
			PopulatedHeaders: populated,
			MissingRequired:  missing,
		}
	}

	confidence := make(map[string]float64, len(mapping.Columns))
	for field, col := range mapping.Columns {
		confidence[field] = col.Confidence
	}

	var samples [][]string
	for i := headerIdx + 1; i < len(rows) && len(samples) < analysisSampleRows; i++ {
		samples = append(samples, sheet.RowStrings(rows[i]))
	}

	return &Analysis{
		Profile:           p.Name,
		HeaderRow:         headerIdx,
		HeaderScore:       score,
		RawHeaders:        raw,
		NormalizedHeaders: normalized,
		Mapping:           mapping,
		Confidence:        confidence,
		SampleRows:        samples,
		RequiredFields:    p.Required,
		OptionalFields:    p.Optional,
	}, nil
}
