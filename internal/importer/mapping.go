package importer

import "strings"

// mappingThreshold is the minimum confidence for the first-pass fuzzy
// assignment of a header to a field.
const mappingThreshold = 0.5

// substringFallbackConfidence is recorded for last-resort assignments that
// bypass the synonym table entirely.
const substringFallbackConfidence = 0.5

// MappedColumn binds one canonical field to a detected header column.
type MappedColumn struct {
	Index      int     `json:"index"`
	Header     string  `json:"header"`
	Confidence float64 `json:"confidence"`
}

// Mapping is the one-to-one association canonical field -> header column.
// It is built once per run and immutable once accepted; callers may replace
// it wholesale before commit, never patch it afterwards.
type Mapping struct {
	Columns map[string]MappedColumn `json:"columns"`
}

// Column returns the mapped column for a field.
func (m Mapping) Column(field string) (MappedColumn, bool) {
	c, ok := m.Columns[field]
	return c, ok
}

// FieldAt returns the canonical field mapped to a column index.
func (m Mapping) FieldAt(index int) (string, bool) {
	for field, col := range m.Columns {
		if col.Index == index {
			return field, true
		}
	}
	return "", false
}

// BuildMapping assigns the best header to each of the profile's fields.
//
// Pass 1 scores every header against every field via the synonym matcher and
// keeps assignments above the confidence threshold; a header claimed by one
// field is never reused by another. Pass 2 fills still-unmapped required
// fields from the profile's positional template when the sheet has the
// profile's known fixed column count. Pass 3 is a last-resort substring
// match of field-name tokens against header tokens, synonym table ignored.
func BuildMapping(headers []string, p Profile, m *Matcher) Mapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	mapping := Mapping{Columns: make(map[string]MappedColumn)}
	claimed := make(map[int]bool)

	// Pass 1: fuzzy synonym matching, required fields claim first.
	for _, field := range p.AllFields() {
		bestIdx, bestConf := -1, mappingThreshold
		for i, token := range normalized {
			if claimed[i] || token == "" {
				continue
			}
			if conf := m.Match(token, field); conf > bestConf {
				bestIdx, bestConf = i, conf
			}
		}
		if bestIdx >= 0 {
			mapping.Columns[field] = MappedColumn{Index: bestIdx, Header: headers[bestIdx], Confidence: bestConf}
			claimed[bestIdx] = true
		}
	}

	if missingRequired(p, mapping) == nil {
		return mapping
	}

	// Pass 2: positional template for fixed-layout providers.
	if p.Positions != nil && populatedCount(normalized) == p.FixedColumns {
		for _, field := range p.Required {
			if _, ok := mapping.Columns[field]; ok {
				continue
			}
			pos, ok := p.Positions[field]
			if !ok || pos >= len(headers) || claimed[pos] {
				continue
			}
			mapping.Columns[field] = MappedColumn{Index: pos, Header: headers[pos], Confidence: substringFallbackConfidence}
			claimed[pos] = true
		}
	}

	// Pass 3: loose substring match on the field name itself.
	for _, field := range p.Required {
		if _, ok := mapping.Columns[field]; ok {
			continue
		}
		for i, token := range normalized {
			if claimed[i] || token == "" {
				continue
			}
			if tokensOverlap(normalizeFieldName(field), token) {
				mapping.Columns[field] = MappedColumn{Index: i, Header: headers[i], Confidence: substringFallbackConfidence}
				claimed[i] = true
				break
			}
		}
	}

	return mapping
}

// missingRequired lists the profile's required fields absent from the
// mapping, in declared order.
func missingRequired(p Profile, m Mapping) []string {
	var missing []string
	for _, field := range p.Required {
		if _, ok := m.Columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

func populatedCount(normalized []string) int {
	n := 0
	for _, t := range normalized {
		if t != "" {
			n++
		}
	}
	return n
}

// tokensOverlap reports whether any whitespace-separated token of the field
// name is a substring of the header, or vice versa.
func tokensOverlap(fieldName, header string) bool {
	for _, tok := range strings.Fields(fieldName) {
		if strings.Contains(header, tok) || strings.Contains(tok, header) {
			return true
		}
	}
	return false
}
