package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func reportFixture(t *testing.T) *Report {
	t.Helper()
	input := batchHeader + "\n" +
		"12,32,55,30,40,2.6,1.2,60,Ti-6Al-4V\n" +
		"12,0,55,30,40,2.6,1.2,60,Ti-6Al-4V\n" +
		"15,38,62,34,45,4.3,1.15,60,316L\n"

	p := NewProcessor(newTestEngine(t))
	report, err := p.Process(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	return report
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewReporter(reportFixture(t), "")
	if err := r.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want header + 3 rows", len(records))
	}

	header := records[0]
	if header[0] != "Row" || header[len(header)-1] != "Error" {
		t.Errorf("unexpected header: %v", header)
	}

	// successful row carries prediction and confidence, empty error cell
	row1 := records[1]
	if row1[0] != "1" || row1[1] != "Ti-6Al-4V" {
		t.Errorf("row 1 prefix: %v", row1[:2])
	}
	if row1[len(row1)-3] != "High" {
		t.Errorf("row 1 confidence = %q, want High", row1[len(row1)-3])
	}
	if row1[len(row1)-1] != "" {
		t.Errorf("row 1 error cell = %q, want empty", row1[len(row1)-1])
	}

	// failed row keeps its slot with the error in the last cell
	row2 := records[2]
	if !strings.Contains(row2[len(row2)-1], "DivisionByZero") {
		t.Errorf("row 2 error cell = %q", row2[len(row2)-1])
	}
	if row2[len(row2)-4] != "" {
		t.Errorf("failed row should have empty prediction cell, got %q", row2[len(row2)-4])
	}
	// original inputs are still present on the failed row
	if row2[2] != "12" {
		t.Errorf("row 2 D10 cell = %q, want 12", row2[2])
	}
}

func TestGenerateReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := NewReporter(reportFixture(t), dir)
	if err := r.GenerateReport(); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	for _, name := range []string{"pbpd_predictions.csv", "pbpd_report.json", "pbpd_summary.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing report file %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "pbpd_report.json"))
	if err != nil {
		t.Fatal(err)
	}
	var parsed struct {
		Summary struct {
			Rows      int `json:"rows"`
			Succeeded int `json:"succeeded"`
			Failed    int `json:"failed"`
		} `json:"summary"`
		Rows []struct {
			Row  int    `json:"row"`
			Kind string `json:"error_kind"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("JSON report does not parse: %v", err)
	}
	if parsed.Summary.Rows != 3 || parsed.Summary.Succeeded != 2 || parsed.Summary.Failed != 1 {
		t.Errorf("summary = %+v, want 3/2/1", parsed.Summary)
	}
	if parsed.Rows[1].Kind != "DivisionByZero" {
		t.Errorf("row 2 error kind = %q", parsed.Rows[1].Kind)
	}
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewReporter(reportFixture(t), "").WriteSummary(&buf)
	out := buf.String()

	for _, want := range []string{"Rows: 3", "Succeeded: 2", "Failed: 1", "DivisionByZero: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
