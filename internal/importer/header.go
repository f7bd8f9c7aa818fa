package importer

import (
	"math"
	"strings"

	"github.com/horecametrics/importer/internal/sheet"
)

// HeaderScanWindow bounds how many leading rows are scored as header
// candidates. Provider exports put the header anywhere in the first screens
// of metadata, never deeper.
var HeaderScanWindow = 50

// Cells longer than this read like descriptive metadata, not headers.
const longCellLimit = 50

// headerMatchThreshold is the confidence above which a header cell counts
// as a recognized canonical field.
const headerMatchThreshold = 0.5

// metadataBlacklist disqualifies rows outright: any populated cell
// containing one of these phrases marks the row as export boilerplate.
var metadataBlacklist = []string{
	"gegenereerd op",
	"rapportage",
	"periode van",
	"totaal generaal",
	"pagina",
	"generated on",
	"report period",
	"grand total",
	"page",
	"export",
}

// HeaderScore carries the scoring detail for one header candidate row,
// surfaced in analysis snapshots for audit.
type HeaderScore struct {
	Row             int
	Score           float64
	Populated       int
	Recognized      int
	RecognitionRate float64
}

// DetectHeader scans the leading rows of a sheet and returns the index of
// the most plausible header row for the profile's fields, along with the
// candidate's scores for diagnostics.
//
// If no row is eligible it returns row 0; the analyzer's recognition-rate
// guard rejects such runs before any data is written.
func DetectHeader(rows [][]sheet.Cell, p Profile, m *Matcher) (int, HeaderScore) {
	window := HeaderScanWindow
	if len(rows) < window {
		window = len(rows)
	}

	fields := p.AllFields()
	best := HeaderScore{Row: 0, Score: math.Inf(-1)}
	found := false

	for i := 0; i < window; i++ {
		cand := scoreHeaderRow(i, rows[i], fields, m)
		if !eligibleHeader(cand) {
			continue
		}
		// Strictly greater keeps the earliest row on ties.
		if !found || cand.Score > best.Score {
			best = cand
			found = true
		}
	}

	if !found {
		return 0, HeaderScore{Row: 0}
	}
	return best.Row, best
}

func scoreHeaderRow(idx int, row []sheet.Cell, fields []string, m *Matcher) HeaderScore {
	cand := HeaderScore{Row: idx}

	for _, cell := range row {
		if cell.IsEmpty() {
			continue
		}
		cand.Populated++

		raw := cell.String()
		if containsBlacklisted(raw) {
			cand.Score = math.Inf(-1)
			return cand
		}

		if len(raw) > longCellLimit {
			cand.Score -= 0.5
		}

		token := NormalizeHeader(raw)
		if _, conf, ok := m.BestField(token, fields, headerMatchThreshold); ok {
			cand.Recognized++
			cand.Score += conf
		}

		if headerShaped(cell, token) {
			cand.Score += 0.25
		}
	}

	if cand.Populated > 0 {
		cand.RecognitionRate = float64(cand.Recognized) / float64(cand.Populated)
	}
	return cand
}

func eligibleHeader(c HeaderScore) bool {
	return !math.IsInf(c.Score, -1) &&
		c.Populated >= 4 &&
		c.RecognitionRate >= 0.5 &&
		c.Recognized >= 3
}

// containsBlacklisted matches on word boundaries so a legitimate header
// like "percentage" is not disqualified by the "page" phrase.
func containsBlacklisted(raw string) bool {
	lowered := NormalizeHeader(raw)
	if lowered == "" {
		return false
	}
	padded := " " + lowered + " "
	for _, phrase := range metadataBlacklist {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}

// headerShaped rewards cells that look like column labels: short text that
// is not purely numeric.
func headerShaped(cell sheet.Cell, token string) bool {
	if cell.Kind != sheet.KindText {
		return false
	}
	return token != "" && len(token) <= 30
}
