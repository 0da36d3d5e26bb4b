package ml

import (
	"math"
	"strings"
	"testing"

	"pbpd/internal/features"
	"pbpd/internal/material"
)

const tiArtifact = `{
	"material": "ti",
	"version": "2024.2",
	"features": ["R23", "Span", "Tap_Density_g/cm³"],
	"intercept": 31.05,
	"coefficients": {"R23": -4.21, "Span": -3.08, "Tap_Density_g/cm³": 12.47},
	"feature_means": {"R23": 0.54, "Span": 1.32, "Tap_Density_g/cm³": 2.61},
	"metrics": {"r2": 0.91, "rmse": 1.4, "training_samples": 118}
}`

func tiModel(t *testing.T) *linearModel {
	t.Helper()
	m, err := parseArtifact([]byte(tiArtifact), material.Titanium)
	if err != nil {
		t.Fatalf("parseArtifact failed: %v", err)
	}
	return m
}

func tiTestVector(r23, span, tap float64) features.Vector {
	return features.Vector{
		Material: material.Titanium,
		Fields:   []features.Field{features.R23, features.Span, features.TapDensity},
		Values:   []float64{r23, span, tap},
	}
}

func TestPredictLinear(t *testing.T) {
	t.Parallel()

	m := tiModel(t)
	got, err := m.Predict(tiTestVector(0.5, 1.34375, 2.6))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	want := 31.05 + -4.21*0.5 + -3.08*1.34375 + 12.47*2.6
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Predict = %v, want %v", got, want)
	}
}

func TestPredictSchemaMismatch(t *testing.T) {
	t.Parallel()

	m := tiModel(t)

	// wrong order
	vec := features.Vector{
		Fields: []features.Field{features.Span, features.R23, features.TapDensity},
		Values: []float64{1.3, 0.5, 2.6},
	}
	if _, err := m.Predict(vec); err == nil {
		t.Error("expected error for out-of-order schema")
	}

	// wrong count
	short := features.Vector{
		Fields: []features.Field{features.R23, features.Span},
		Values: []float64{0.5, 1.3},
	}
	if _, err := m.Predict(short); err == nil {
		t.Error("expected error for short vector")
	}
}

func TestPredictRejectsNonFinite(t *testing.T) {
	t.Parallel()

	m := tiModel(t)
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := m.Predict(tiTestVector(bad, 1.3, 2.6)); err == nil {
			t.Errorf("expected error for input %v", bad)
		}
	}
}

func TestParseArtifactWrongMaterial(t *testing.T) {
	t.Parallel()

	_, err := parseArtifact([]byte(tiArtifact), material.Aluminum)
	if err == nil || !strings.Contains(err.Error(), `"al"`) {
		t.Errorf("expected material mismatch error, got %v", err)
	}
}

func TestParseArtifactMissingCoefficient(t *testing.T) {
	t.Parallel()

	broken := strings.Replace(tiArtifact, `"Span": -3.08, `, "", 1)
	if _, err := parseArtifact([]byte(broken), material.Titanium); err == nil {
		t.Error("expected error for missing coefficient")
	}
}

func TestParseArtifactMissingFeatureMean(t *testing.T) {
	t.Parallel()

	// a silently zeroed mean would shift every Explain baseline, so a
	// missing mean is rejected like a missing coefficient
	broken := strings.Replace(tiArtifact, `"Span": 1.32, `, "", 1)
	_, err := parseArtifact([]byte(broken), material.Titanium)
	if err == nil || !strings.Contains(err.Error(), "feature mean") {
		t.Errorf("expected feature mean error, got %v", err)
	}
}

func TestParseArtifactGarbage(t *testing.T) {
	t.Parallel()

	if _, err := parseArtifact([]byte("not json"), material.Titanium); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := parseArtifact([]byte(`{"material":"ti"}`), material.Titanium); err == nil {
		t.Error("expected error for empty feature schema")
	}
}

func TestSchemaCopy(t *testing.T) {
	t.Parallel()

	m := tiModel(t)
	schema := m.Schema()
	schema[0] = "tampered"
	if m.Schema()[0] != features.R23 {
		t.Error("Schema returned shared slice, mutation leaked")
	}
}

func TestBaselineAtMeans(t *testing.T) {
	t.Parallel()

	m := tiModel(t)
	// predicting at the training means must equal the baseline
	got, err := m.Predict(tiTestVector(0.54, 1.32, 2.61))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if math.Abs(got-m.Baseline()) > 1e-12 {
		t.Errorf("prediction at means = %v, baseline = %v", got, m.Baseline())
	}
}
