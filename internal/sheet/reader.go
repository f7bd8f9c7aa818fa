package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ReadFile reads the first sheet of a spreadsheet file into a cell matrix.
// The format is chosen by extension: .xlsx/.xlsm via excelize, anything else
// is treated as CSV.
func ReadFile(path string) ([][]Cell, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	return ReadBytes(filepath.Base(path), data)
}

// ReadBytes reads spreadsheet content already held in memory, e.g. from a
// multipart upload. The name is only used to pick the format.
func ReadBytes(name string, data []byte) ([][]Cell, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return readExcel(name, data)
	default:
		return readCSV(data)
	}
}

func readExcel(name string, data []byte) ([][]Cell, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", name, err)
	}
	defer f.Close()

	// First sheet only; multi-sheet workbooks are out of scope.
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook %s has no sheets", name)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read rows from sheet %s: %w", sheetName, err)
	}

	return matrixFromStrings(rows), nil
}

func readCSV(data []byte) ([][]Cell, error) {
	r := csv.NewReader(bytes.NewReader(sanitizeUTF8(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	return matrixFromStrings(records), nil
}

func matrixFromStrings(records [][]string) [][]Cell {
	out := make([][]Cell, len(records))
	for i, rec := range records {
		row := make([]Cell, len(rec))
		for j, v := range rec {
			row[j] = FromString(v)
		}
		out[i] = row
	}
	return out
}

// sanitizeUTF8 replaces invalid byte sequences with the replacement rune so
// provider exports with broken encodings still parse.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
