package validate

import (
	"testing"

	"pbpd/internal/features"
	"pbpd/internal/material"
)

func tiVector(r23, span, tap float64) features.Vector {
	return features.Vector{
		Material: material.Titanium,
		Fields:   []features.Field{features.R23, features.Span, features.TapDensity},
		Values:   []float64{r23, span, tap},
	}
}

func TestCheckInRange(t *testing.T) {
	t.Parallel()

	if warnings := Check(tiVector(0.5, 1.3, 2.6), material.Titanium); len(warnings) != 0 {
		t.Errorf("in-range vector produced warnings: %v", warnings)
	}
}

func TestCheckAboveMax(t *testing.T) {
	t.Parallel()

	warnings := Check(tiVector(0.5, 1.3, 4.7), material.Titanium)
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.Feature != features.TapDensity || w.Bound != AboveMax || w.Limit != 3.00 || w.Value != 4.7 {
		t.Errorf("unexpected warning %+v", w)
	}
}

func TestCheckBelowMin(t *testing.T) {
	t.Parallel()

	warnings := Check(tiVector(0.1, 1.3, 2.6), material.Titanium)
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	if warnings[0].Feature != features.R23 || warnings[0].Bound != BelowMin {
		t.Errorf("unexpected warning %+v", warnings[0])
	}
}

func TestCheckBoundaryValuesPass(t *testing.T) {
	t.Parallel()

	// interval endpoints are inclusive
	if warnings := Check(tiVector(0.20, 0.80, 3.00), material.Titanium); len(warnings) != 0 {
		t.Errorf("boundary values produced warnings: %v", warnings)
	}
	if warnings := Check(tiVector(1.10, 2.00, 2.20), material.Titanium); len(warnings) != 0 {
		t.Errorf("boundary values produced warnings: %v", warnings)
	}
}

func TestCheckCanonicalOrder(t *testing.T) {
	t.Parallel()

	// everything out of range: warnings come back in table order regardless
	// of the vector's own field order
	vec := features.Vector{
		Material: material.StainlessSteel,
		Fields:   []features.Field{features.HausnerRatio, features.TapDensity, features.Span, features.R34, features.R23},
		Values:   []float64{9, 9, 9, 9, 9},
	}
	warnings := Check(vec, material.StainlessSteel)
	want := []features.Field{features.R23, features.R34, features.Span, features.TapDensity, features.HausnerRatio}
	if len(warnings) != len(want) {
		t.Fatalf("got %d warnings, want %d", len(warnings), len(want))
	}
	for i, f := range want {
		if warnings[i].Feature != f {
			t.Errorf("warning %d is for %s, want %s", i, warnings[i].Feature, f)
		}
	}
}

func TestCheckIdempotent(t *testing.T) {
	t.Parallel()

	vec := tiVector(0.1, 2.5, 4.7)
	first := Check(vec, material.Titanium)
	second := Check(vec, material.Titanium)
	if len(first) != len(second) {
		t.Fatalf("repeated checks disagree: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("warning %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestCheckIgnoresUntabledFeatures(t *testing.T) {
	t.Parallel()

	vec := features.Vector{
		Material: material.Titanium,
		Fields:   []features.Field{features.R23, features.Span, features.TapDensity, features.HausnerRatio},
		Values:   []float64{0.5, 1.3, 2.6, 99},
	}
	if warnings := Check(vec, material.Titanium); len(warnings) != 0 {
		t.Errorf("untabled feature produced warnings: %v", warnings)
	}
}

func TestCheckUnknownGroup(t *testing.T) {
	t.Parallel()

	if warnings := Check(tiVector(0.5, 1.3, 2.6), material.Group(42)); warnings != nil {
		t.Errorf("unknown group produced warnings: %v", warnings)
	}
}

func TestCheckRawFlowability(t *testing.T) {
	t.Parallel()

	raw := features.RawMeasurement{features.HausnerRatio: 1.55}

	// titanium's table has no HR bound, so the global advisory applies
	warnings := CheckRaw(raw, material.Titanium)
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.Feature != features.HausnerRatio || w.Bound != AboveMax || w.Limit != 1.4 {
		t.Errorf("unexpected warning %+v", w)
	}

	// stainless steel bounds HR itself; the advisory must not double up
	if warnings := CheckRaw(raw, material.StainlessSteel); len(warnings) != 0 {
		t.Errorf("HR warned twice for stainless steel: %v", warnings)
	}

	if warnings := CheckRaw(features.RawMeasurement{features.HausnerRatio: 1.2}, material.Titanium); len(warnings) != 0 {
		t.Errorf("in-range HR produced warnings: %v", warnings)
	}
}

func TestCheckRawBridging(t *testing.T) {
	t.Parallel()

	raw := features.RawMeasurement{
		features.D23:            72,
		features.LayerThickness: 60,
	}
	warnings := CheckRaw(raw, material.Aluminum)
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1: %v", len(warnings), warnings)
	}
	w := warnings[0]
	if w.Feature != features.D23 || w.Bound != AboveMax || w.Limit != 60 || w.Value != 72 {
		t.Errorf("unexpected warning %+v", w)
	}

	raw[features.D23] = 60 // equal to the layer is not bridging
	if warnings := CheckRaw(raw, material.Aluminum); len(warnings) != 0 {
		t.Errorf("D[2,3] == layer produced warnings: %v", warnings)
	}

	// either field absent: nothing to compare
	if warnings := CheckRaw(features.RawMeasurement{features.D23: 72}, material.Aluminum); len(warnings) != 0 {
		t.Errorf("absent layer produced warnings: %v", warnings)
	}
}

func TestWarningString(t *testing.T) {
	t.Parallel()

	w := Warning{Feature: features.TapDensity, Value: 4.7, Bound: AboveMax, Limit: 3.0}
	want := "Tap_Density_g/cm³=4.7 above-max 3"
	if got := w.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestRangesCopy(t *testing.T) {
	t.Parallel()

	ranges := Ranges(material.Aluminum)
	if len(ranges) != 3 {
		t.Fatalf("got %d aluminum ranges, want 3", len(ranges))
	}
	ranges[features.Span] = Range{Min: -1, Max: -1}
	if fresh := Ranges(material.Aluminum)[features.Span]; fresh.Min == -1 {
		t.Error("Ranges returned shared state, mutation leaked")
	}
	if Ranges(material.Group(42)) != nil {
		t.Error("unknown group should have no range table")
	}
}
