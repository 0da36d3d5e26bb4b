// Package ml loads and serves the trained per-material PBPD regression
// models. Artifacts are versioned JSON bundles produced by the offline
// training pipeline; at runtime they are opaque beyond Predict and Explain.
package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"pbpd/internal/features"
	"pbpd/internal/material"
)

// Model is the runtime view of a trained regressor.
type Model interface {
	// Predict returns the PBPD estimate in percent for a feature vector
	// matching the model's schema exactly, in matching order.
	Predict(vec features.Vector) (float64, error)
	// Explain returns additive per-feature contributions that sum to
	// (prediction − baseline), where baseline is the model's output at the
	// training feature means.
	Explain(vec features.Vector) (map[features.Field]float64, error)
	// Schema returns the ordered input fields the model was trained on.
	Schema() []features.Field
}

// ModelMetrics are the offline evaluation scores stored with an artifact.
type ModelMetrics struct {
	R2              float64 `json:"r2"`
	RMSE            float64 `json:"rmse"`
	TrainingSamples int     `json:"training_samples"`
}

// artifact is the on-disk JSON layout of a trained model.
type artifact struct {
	Material     string             `json:"material"`
	Version      string             `json:"version"`
	TrainedAt    time.Time          `json:"trained_at"`
	Features     []features.Field   `json:"features"`
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
	FeatureMeans map[string]float64 `json:"feature_means"`
	Metrics      ModelMetrics       `json:"metrics"`
}

// linearModel is the deserialized regression: prediction is the intercept
// plus the coefficient-weighted feature sum.
type linearModel struct {
	group     material.Group
	version   string
	trainedAt time.Time
	schema    []features.Field
	intercept float64
	coef      []float64
	means     []float64
	metrics   ModelMetrics
}

// parseArtifact validates and decodes a serialized model for a group.
func parseArtifact(data []byte, g material.Group) (*linearModel, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}

	if a.Material != g.Key() {
		return nil, fmt.Errorf("artifact is for material %q, expected %q", a.Material, g.Key())
	}
	if len(a.Features) == 0 {
		return nil, fmt.Errorf("artifact has no feature schema")
	}

	m := &linearModel{
		group:     g,
		version:   a.Version,
		trainedAt: a.TrainedAt,
		schema:    a.Features,
		intercept: a.Intercept,
		coef:      make([]float64, len(a.Features)),
		means:     make([]float64, len(a.Features)),
		metrics:   a.Metrics,
	}
	for i, f := range a.Features {
		c, ok := a.Coefficients[string(f)]
		if !ok {
			return nil, fmt.Errorf("artifact missing coefficient for %s", f)
		}
		mean, ok := a.FeatureMeans[string(f)]
		if !ok {
			return nil, fmt.Errorf("artifact missing feature mean for %s", f)
		}
		m.coef[i] = c
		m.means[i] = mean
	}
	return m, nil
}

func (m *linearModel) Schema() []features.Field {
	out := make([]features.Field, len(m.schema))
	copy(out, m.schema)
	return out
}

// checkSchema enforces the invariant that a vector's field set matches the
// model's expected input schema exactly, in matching order.
func (m *linearModel) checkSchema(vec features.Vector) error {
	if len(vec.Fields) != len(m.schema) {
		return fmt.Errorf("feature count mismatch: model expects %d, got %d", len(m.schema), len(vec.Fields))
	}
	for i, f := range m.schema {
		if vec.Fields[i] != f {
			return fmt.Errorf("feature %d mismatch: model expects %s, got %s", i, f, vec.Fields[i])
		}
	}
	return nil
}

func (m *linearModel) Predict(vec features.Vector) (float64, error) {
	if err := m.checkSchema(vec); err != nil {
		return 0, err
	}

	y := m.intercept
	for i, v := range vec.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("feature %s is not finite: %v", vec.Fields[i], v)
		}
		y += m.coef[i] * v
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("model produced non-finite output %v", y)
	}
	return y, nil
}

func (m *linearModel) Explain(vec features.Vector) (map[features.Field]float64, error) {
	if err := m.checkSchema(vec); err != nil {
		return nil, err
	}

	contributions := make(map[features.Field]float64, len(m.schema))
	for i, f := range m.schema {
		contributions[f] = m.coef[i] * (vec.Values[i] - m.means[i])
	}
	return contributions, nil
}

// Baseline returns the model output at the training feature means, the
// reference point explanation contributions are measured against.
func (m *linearModel) Baseline() float64 {
	y := m.intercept
	for i, mean := range m.means {
		y += m.coef[i] * mean
	}
	return y
}

// Version returns the artifact version string, if any.
func (m *linearModel) Version() string { return m.version }
