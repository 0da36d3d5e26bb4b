// Package batch processes tabular measurement sets: it parses the batch CSV
// format, runs each row through the prediction engine with per-row error
// isolation, and renders the aggregate report.
package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pbpd/internal/engine"
	"pbpd/internal/features"
)

// Columns is the required CSV header, in canonical order. Input files may
// order columns differently; all nine must be present.
var Columns = []string{
	string(features.D10),
	string(features.D50),
	string(features.D90),
	string(features.D23),
	string(features.D34),
	string(features.TapDensity),
	string(features.HausnerRatio),
	string(features.LayerThickness),
	"Material",
}

// numericColumns are the measurement columns, i.e. Columns minus Material.
var numericColumns = []features.Field{
	features.D10,
	features.D50,
	features.D90,
	features.D23,
	features.D34,
	features.TapDensity,
	features.HausnerRatio,
	features.LayerThickness,
}

// Row is one parsed input row. Index is zero-based over data rows (the
// header is not counted). Err carries the parse failure for malformed rows;
// such rows still occupy their slot in the batch so output order is stable.
type Row struct {
	Index int
	Label string
	Raw   features.RawMeasurement
	Err   error
}

// ParseCSV reads the batch input format. A missing or incomplete header is
// a batch-level error, since no row can be interpreted without it; a
// malformed data row only poisons that row.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // row length checked per row

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	indices := make(map[string]int, len(header))
	for i, col := range header {
		indices[strings.TrimSpace(col)] = i
	}
	var missing []string
	for _, col := range Columns {
		if _, ok := indices[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("CSV header missing required columns: %s", strings.Join(missing, ", "))
	}

	var rows []Row
	for i := 0; ; i++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rows = append(rows, Row{Index: i, Err: engine.NewMalformedRowError(i, "", err)})
			continue
		}
		rows = append(rows, parseRecord(i, record, indices))
	}
	return rows, nil
}

func parseRecord(index int, record []string, indices map[string]int) Row {
	row := Row{Index: index, Raw: make(features.RawMeasurement, len(numericColumns))}

	matIdx := indices["Material"]
	if matIdx >= len(record) {
		row.Err = engine.NewMalformedRowError(index, "Material", fmt.Errorf("row has %d fields", len(record)))
		return row
	}
	row.Label = strings.TrimSpace(record[matIdx])

	for _, col := range numericColumns {
		idx := indices[string(col)]
		if idx >= len(record) {
			row.Err = engine.NewMalformedRowError(index, string(col), fmt.Errorf("row has %d fields", len(record)))
			return row
		}
		cell := strings.TrimSpace(record[idx])
		if cell == "" {
			continue // absent value, FeatureDeriver decides if it was required
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			row.Err = engine.NewMalformedRowError(index, string(col), err)
			return row
		}
		row.Raw[col] = v
	}
	return row
}
