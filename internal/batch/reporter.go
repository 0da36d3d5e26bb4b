package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pbpd/internal/engine"
	"pbpd/internal/features"
)

// Reporter renders a batch report into its downloadable formats: a row-wise
// CSV, a JSON dump, and a short text summary.
type Reporter struct {
	report     *Report
	outputPath string
}

// NewReporter creates a reporter writing into the given directory.
func NewReporter(report *Report, outputPath string) *Reporter {
	return &Reporter{report: report, outputPath: outputPath}
}

// GenerateReport writes all report formats into the output directory.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	csvPath := filepath.Join(r.outputPath, "pbpd_predictions.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create prediction CSV: %w", err)
	}
	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("file", csvPath).Msg("prediction CSV generated")

	jsonPath := filepath.Join(r.outputPath, "pbpd_report.json")
	if err := r.writeJSON(jsonPath); err != nil {
		return err
	}

	summaryPath := filepath.Join(r.outputPath, "pbpd_summary.txt")
	sf, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer sf.Close()
	r.WriteSummary(sf)
	log.Info().Str("file", summaryPath).Msg("summary generated")

	return nil
}

// csvHeader is the report column layout: original inputs, derived features,
// then the prediction or error summary.
var csvHeader = []string{
	"Row", "Material",
	string(features.D10), string(features.D50), string(features.D90),
	string(features.D23), string(features.D34),
	string(features.TapDensity), string(features.HausnerRatio), string(features.LayerThickness),
	"Span", "R23", "R34",
	"Predicted_PBPD_%", "Confidence", "Warnings", "Error",
}

// WriteCSV renders one report row per input row, in input order.
func (r *Reporter) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, row := range r.report.Rows {
		record := []string{
			fmt.Sprintf("%d", row.Index+1),
			row.Label,
		}
		record = append(record, rawCells(row)...)
		record = append(record, derivedCells(row)...)

		if row.Err != nil {
			record = append(record, "", "", "", fmt.Sprintf("%s: %v", engine.KindOf(row.Err), row.Err))
		} else {
			record = append(record,
				fmt.Sprintf("%.2f", row.Result.PBPD),
				string(row.Result.Confidence),
				warningSummary(row),
				"",
			)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func rawCells(row RowResult) []string {
	cells := make([]string, 0, len(numericColumns))
	for _, f := range numericColumns {
		if v, ok := row.Raw[f]; ok {
			cells = append(cells, fmt.Sprintf("%g", v))
		} else {
			cells = append(cells, "")
		}
	}
	return cells
}

func derivedCells(row RowResult) []string {
	if row.Result == nil {
		return []string{"", "", ""}
	}
	cells := make([]string, 0, 3)
	for _, f := range []features.Field{features.Span, features.R23, features.R34} {
		if v, ok := row.Result.Vector.Get(f); ok {
			cells = append(cells, fmt.Sprintf("%.4f", v))
		} else {
			cells = append(cells, "")
		}
	}
	return cells
}

func warningSummary(row RowResult) string {
	if row.Result == nil || len(row.Result.Warnings) == 0 {
		return ""
	}
	parts := make([]string, len(row.Result.Warnings))
	for i, w := range row.Result.Warnings {
		parts[i] = w.String()
	}
	return strings.Join(parts, "; ")
}

// writeJSON dumps the full report, including vectors and warnings, for
// programmatic consumers.
func (r *Reporter) writeJSON(path string) error {
	type jsonRow struct {
		Row    int            `json:"row"`
		Label  string         `json:"material_label"`
		Result *engine.Result `json:"result,omitempty"`
		Error  string         `json:"error,omitempty"`
		Kind   string         `json:"error_kind,omitempty"`
	}

	rows := make([]jsonRow, len(r.report.Rows))
	for i, row := range r.report.Rows {
		rows[i] = jsonRow{Row: row.Index + 1, Label: row.Label, Result: row.Result}
		if row.Err != nil {
			rows[i].Error = row.Err.Error()
			rows[i].Kind = engine.KindOf(row.Err).String()
		}
	}

	report := map[string]interface{}{
		"summary": map[string]interface{}{
			"rows":      len(r.report.Rows),
			"succeeded": r.report.Succeeded(),
			"failed":    r.report.Failed(),
		},
		"rows":         rows,
		"generated_at": time.Now().UTC(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", path).Msg("JSON report generated")
	return nil
}

// WriteSummary prints a human-readable batch summary.
func (r *Reporter) WriteSummary(w io.Writer) {
	fmt.Fprintf(w, "PBPD BATCH PREDICTION SUMMARY\n")
	fmt.Fprintf(w, "=============================\n\n")
	fmt.Fprintf(w, "Rows: %d\n", len(r.report.Rows))
	fmt.Fprintf(w, "Succeeded: %d\n", r.report.Succeeded())
	fmt.Fprintf(w, "Failed: %d\n\n", r.report.Failed())

	kindCounts := make(map[string]int)
	warned := 0
	for _, row := range r.report.Rows {
		if row.Err != nil {
			kindCounts[engine.KindOf(row.Err).String()]++
		} else if len(row.Result.Warnings) > 0 {
			warned++
		}
	}

	if warned > 0 {
		fmt.Fprintf(w, "Rows with out-of-range warnings: %d\n", warned)
	}
	if len(kindCounts) > 0 {
		fmt.Fprintf(w, "\nFAILURES BY KIND\n")
		fmt.Fprintf(w, "----------------\n")
		for _, kind := range []string{"MissingField", "DivisionByZero", "ModelLoadError", "PredictionFailure", "UnknownMaterial", "MalformedRow", "Unknown"} {
			if n := kindCounts[kind]; n > 0 {
				fmt.Fprintf(w, "%s: %d\n", kind, n)
			}
		}
	}
}
