package importer

import (
	"errors"
	"testing"
)

func TestAnalyze_CleanSheet(t *testing.T) {
	rows := cellRows([][]string{
		{"Omzetexport maart"},
		{},
		{"Datum", "Omzet", "Product", "Aantal"},
		{"01/03/2024", "120,50", "Koffie", "48"},
		{"02/03/2024", "98,20", "Thee", "31"},
	})

	analysis, err := Analyze(rows, mustProfile("pos_sales"), NewMatcher(DefaultRegistry()))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if analysis.HeaderRow != 2 {
		t.Errorf("HeaderRow = %d, want 2", analysis.HeaderRow)
	}
	if len(analysis.Mapping.Columns) != 4 {
		t.Errorf("mapped fields = %d, want 4", len(analysis.Mapping.Columns))
	}
	if analysis.Confidence["date"] != 1.0 {
		t.Errorf("confidence[date] = %v, want 1.0", analysis.Confidence["date"])
	}
	if len(analysis.SampleRows) != 2 {
		t.Errorf("sample rows = %d, want 2", len(analysis.SampleRows))
	}
	if analysis.NormalizedHeaders[1] != "omzet" {
		t.Errorf("normalized header = %q, want omzet", analysis.NormalizedHeaders[1])
	}
	if len(analysis.RequiredFields) != 2 {
		t.Errorf("required fields = %v", analysis.RequiredFields)
	}
}

func TestAnalyze_SampleRowsCapped(t *testing.T) {
	raw := [][]string{{"Datum", "Omzet", "Product", "Aantal"}}
	for i := 0; i < 10; i++ {
		raw = append(raw, []string{"01/03/2024", "10", "Koffie", "1"})
	}

	analysis, err := Analyze(cellRows(raw), mustProfile("pos_sales"), NewMatcher(DefaultRegistry()))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(analysis.SampleRows) != analysisSampleRows {
		t.Errorf("sample rows = %d, want %d", len(analysis.SampleRows), analysisSampleRows)
	}
}

func TestAnalyze_UnrecognizedSheet(t *testing.T) {
	rows := cellRows([][]string{
		{"xkolom1x", "xkolom2x", "xkolom3x", "xkolom4x"},
		{"aaa111", "bbb222", "ccc333", "ddd444"},
	})

	_, err := Analyze(rows, mustProfile("pos_sales"), NewMatcher(DefaultRegistry()))
	var analysisErr *AnalysisError
	if !errors.As(err, &analysisErr) {
		t.Fatalf("Analyze() error = %v, want AnalysisError", err)
	}
	if len(analysisErr.MissingRequired) != 2 {
		t.Errorf("MissingRequired = %v, want date and revenue", analysisErr.MissingRequired)
	}
}

func TestAnalyze_RecognitionRateGuard(t *testing.T) {
	// Required fields resolve, but the sheet as a whole is mostly alien:
	// 2 of 9 populated headers map, below the 25% guard.
	rows := cellRows([][]string{
		{"Datum", "Omzet", "xkolom1x", "xkolom2x", "xkolom3x", "xkolom4x", "xkolom5x", "xkolom6x", "xkolom7x"},
		{"01/03/2024", "10", "aaa111", "bbb222", "ccc333", "ddd444", "eee555", "fff666", "ggg777"},
	})

	_, err := Analyze(rows, mustProfile("pos_sales"), NewMatcher(DefaultRegistry()))
	var analysisErr *AnalysisError
	if !errors.As(err, &analysisErr) {
		t.Fatalf("Analyze() error = %v, want AnalysisError", err)
	}
	if analysisErr.MappedFields != 2 || analysisErr.PopulatedHeaders != 9 {
		t.Errorf("AnalysisError = %+v, want 2 of 9 mapped", analysisErr)
	}
	if len(analysisErr.MissingRequired) != 0 {
		t.Errorf("MissingRequired = %v, want none: the guard alone rejects", analysisErr.MissingRequired)
	}
}

func TestAnalyze_EmptySheet(t *testing.T) {
	_, err := Analyze(nil, mustProfile("pos_sales"), NewMatcher(DefaultRegistry()))
	var analysisErr *AnalysisError
	if !errors.As(err, &analysisErr) {
		t.Fatalf("Analyze(nil) error = %v, want AnalysisError", err)
	}
}
