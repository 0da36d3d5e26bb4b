// Package features turns raw powder measurements into the ordered feature
// vectors the per-material regression models consume. Derivation is a pure
// function of its inputs: no shared state, no side effects.
package features

import (
	"fmt"
	"sort"
	"strings"

	"pbpd/internal/material"
)

// Field names a single numeric measurement or derived quantity. The string
// values double as the CSV column headers for batch input.
type Field string

const (
	D10            Field = "D10_µm"
	D50            Field = "D50_µm"
	D90            Field = "D90_µm"
	D23            Field = "D[2,3]"
	D34            Field = "D[3,4]"
	TapDensity     Field = "Tap_Density_g/cm³"
	HausnerRatio   Field = "HR"
	LayerThickness Field = "Effective_Layer_Thickness_µm"
	BulkDensity    Field = "Bulk_Density_g/cm³"

	// Derived quantities.
	Span Field = "Span"
	R23  Field = "R23"
	R34  Field = "R34"
)

// RawMeasurement is a partial record of named measurements. Absence of a key
// means the field was not supplied; zero is a real (if physically dubious)
// value, not a missing one.
type RawMeasurement map[Field]float64

// Clone returns an independent copy of the measurement.
func (r RawMeasurement) Clone() RawMeasurement {
	out := make(RawMeasurement, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Vector is the complete ordered feature set for one model. Fields and
// Values are parallel slices; the order must match the model's training
// schema exactly.
type Vector struct {
	Material material.Group
	Fields   []Field
	Values   []float64
}

// Get returns the value for a field and whether the vector contains it.
func (v Vector) Get(f Field) (float64, bool) {
	for i, name := range v.Fields {
		if name == f {
			return v.Values[i], true
		}
	}
	return 0, false
}

// schemas lists, per material group, the model input fields in training
// order. The order is load-bearing: the serialized models were fitted on
// matrices with exactly these columns.
var schemas = map[material.Group][]Field{
	material.Titanium:       {R23, Span, TapDensity},
	material.StainlessSteel: {R23, R34, Span, TapDensity, HausnerRatio},
	material.Aluminum:       {R34, Span, TapDensity},
}

// Schema returns the ordered model input fields for a group.
func Schema(g material.Group) []Field {
	s := schemas[g]
	out := make([]Field, len(s))
	copy(out, s)
	return out
}

// rawRequirements lists, per group, the raw inputs needed to populate the
// group's schema. Span needs D10/D50/D90; R23 needs D[2,3] and the layer
// thickness; R34 needs D[3,4] and the layer thickness.
var rawRequirements = map[material.Group][]Field{
	material.Titanium:       {D10, D50, D90, D23, TapDensity, LayerThickness},
	material.StainlessSteel: {D10, D50, D90, D23, D34, TapDensity, HausnerRatio, LayerThickness},
	material.Aluminum:       {D10, D50, D90, D34, TapDensity, LayerThickness},
}

// MissingFieldError reports every required field absent from a measurement,
// not just the first one encountered.
type MissingFieldError struct {
	Fields []Field
}

func (e *MissingFieldError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("missing required fields: %s", strings.Join(names, ", "))
}

// DivisionByZeroError reports a zero-valued denominator in a derived
// quantity.
type DivisionByZeroError struct {
	Field Field
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("%s is zero, cannot derive distribution ratios", e.Field)
}

// Derive builds the feature vector for a material group from a raw
// measurement. Supplied D[2,3] and D[3,4] values pass through unchanged;
// Span, R23 and R34 are computed from their constituents. A pre-supplied
// Span is honored only when D10/D50/D90 are absent.
func Derive(raw RawMeasurement, g material.Group) (Vector, error) {
	if !g.Valid() {
		return Vector{}, fmt.Errorf("invalid material group %d", int(g))
	}

	missing := missingFields(raw, g)
	if len(missing) > 0 {
		return Vector{}, &MissingFieldError{Fields: missing}
	}

	span, err := deriveSpan(raw)
	if err != nil {
		return Vector{}, err
	}

	layer := raw[LayerThickness]
	if layer == 0 {
		return Vector{}, &DivisionByZeroError{Field: LayerThickness}
	}

	derived := raw.Clone()
	derived[Span] = span
	derived[R23] = raw[D23] / layer
	derived[R34] = raw[D34] / layer

	schema := schemas[g]
	vec := Vector{
		Material: g,
		Fields:   Schema(g),
		Values:   make([]float64, len(schema)),
	}
	for i, f := range schema {
		vec.Values[i] = derived[f]
	}
	return vec, nil
}

// missingFields returns, sorted by field name for stable error messages,
// every raw field required for the group that the measurement does not
// carry. D10/D50/D90 are not demanded when a precomputed Span is supplied.
func missingFields(raw RawMeasurement, g material.Group) []Field {
	_, hasSpan := raw[Span]

	var missing []Field
	for _, f := range rawRequirements[g] {
		if _, ok := raw[f]; ok {
			continue
		}
		if hasSpan && (f == D10 || f == D50 || f == D90) {
			continue
		}
		missing = append(missing, f)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func deriveSpan(raw RawMeasurement) (float64, error) {
	d10, ok10 := raw[D10]
	d50, ok50 := raw[D50]
	d90, ok90 := raw[D90]
	if ok10 && ok50 && ok90 {
		if d50 == 0 {
			return 0, &DivisionByZeroError{Field: D50}
		}
		return (d90 - d10) / d50, nil
	}
	// missingFields already guaranteed Span is present in this case
	return raw[Span], nil
}
