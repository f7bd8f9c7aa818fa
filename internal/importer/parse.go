package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/horecametrics/importer/internal/sheet"
)

// Value parsers coerce one tagged cell into a typed value. They are total:
// every parser returns nil on failure and never panics, so the record
// builder can keep filling other fields after a bad cell.

// Spreadsheet date serials count days from the 1900 epoch (with the
// historical leap-year bug baked in, hence Dec 30 1899).
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// serialDateMin/Max bound which numbers are plausibly date serials:
// 1950-01-01 .. 2100-01-01. Outside the window a number is just a number.
const (
	serialDateMin = 18264
	serialDateMax = 73051
)

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"2006-01-02",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	// Free-form fallbacks seen in provider exports.
	"2006/01/02",
	"2 January 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"20060102",
}

// ParseDate accepts DD/MM/YYYY, YYYY-MM-DD, spreadsheet date serials and a
// set of free-form fallback layouts.
func ParseDate(c sheet.Cell) *time.Time {
	switch c.Kind {
	case sheet.KindEmpty:
		return nil
	case sheet.KindNumber:
		return dateFromSerial(c.Number)
	}

	s := strings.TrimSpace(c.Text)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return dateFromSerial(v)
	}
	return nil
}

func dateFromSerial(v float64) *time.Time {
	if v < serialDateMin || v > serialDateMax {
		return nil
	}
	t := serialEpoch.AddDate(0, 0, int(v))
	return &t
}

var (
	// European grouped form: dot-as-thousands, optional comma decimal.
	euGroupedPattern = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+(,\d+)?$`)
	// Bare comma decimal. A lone comma always reads as a decimal marker,
	// including the ambiguous "1,234" and US-grouped shapes like "12,345";
	// the bias toward the European reading is relied upon downstream and
	// must not change.
	commaDecimalPattern = regexp.MustCompile(`^-?\d+,\d+$`)
)

var currencyStripper = strings.NewReplacer(
	"\u20ac", "", "$", "", "\u00a3", "",
	" ", "", "\u00a0", "",
)

// ParseNumber strips currency symbols and whitespace, then disambiguates
// European (1.234,56) from US (1,234.56) formatting. Comma-as-decimal plus
// dot-as-thousands means European; a lone comma decimal also reads as
// European; otherwise commas are treated as thousands separators.
func ParseNumber(c sheet.Cell) *float64 {
	switch c.Kind {
	case sheet.KindEmpty:
		return nil
	case sheet.KindNumber:
		v := c.Number
		return &v
	}

	s := currencyStripper.Replace(strings.TrimSpace(c.Text))
	if s == "" {
		return nil
	}

	// Accounting negatives: (123,45)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	switch {
	case euGroupedPattern.MatchString(s) || commaDecimalPattern.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if negative {
		v = -v
	}
	return &v
}

var clockPattern = regexp.MustCompile(`^(\d{1,3}):([0-5]\d)$`)

// ParseHours accepts H:MM clock notation converted to fractional hours, or
// falls back to number parsing for decimal hour values.
func ParseHours(c sheet.Cell) *float64 {
	if c.Kind == sheet.KindText {
		if m := clockPattern.FindStringSubmatch(strings.TrimSpace(c.Text)); m != nil {
			h, _ := strconv.Atoi(m[1])
			min, _ := strconv.Atoi(m[2])
			v := float64(h) + float64(min)/60
			return &v
		}
	}
	return ParseNumber(c)
}

// dutchMonths is the fixed local-language month table.
var dutchMonths = map[string]int{
	"januari": 1, "februari": 2, "maart": 3, "april": 4,
	"mei": 5, "juni": 6, "juli": 7, "augustus": 8,
	"september": 9, "oktober": 10, "november": 11, "december": 12,
}

var englishMonths = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// ParseMonth accepts localized month names, English names by prefix (jan,
// feb, ...), or an integer 1-12.
func ParseMonth(c sheet.Cell) *int {
	switch c.Kind {
	case sheet.KindEmpty:
		return nil
	case sheet.KindNumber:
		return monthFromInt(c.Number)
	}

	s := strings.ToLower(strings.TrimSpace(c.Text))
	if m, ok := dutchMonths[s]; ok {
		return &m
	}
	if len(s) >= 3 {
		for i, name := range englishMonths {
			if strings.HasPrefix(name, s) {
				m := i + 1
				return &m
			}
		}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return monthFromInt(v)
	}
	return nil
}

func monthFromInt(v float64) *int {
	m := int(v)
	if float64(m) != v || m < 1 || m > 12 {
		return nil
	}
	return &m
}

// ParseYear accepts four-digit years, directly or as numeric cells.
func ParseYear(c sheet.Cell) *int {
	v := ParseNumber(c)
	if v == nil {
		return nil
	}
	y := int(*v)
	if float64(y) != *v || y < 1900 || y > 2100 {
		return nil
	}
	return &y
}
