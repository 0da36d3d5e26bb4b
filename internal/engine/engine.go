// Package engine orchestrates the prediction pipeline: derive features,
// resolve the material's model, validate against training ranges, predict,
// and assemble the result with its advisory warnings.
package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"pbpd/internal/features"
	"pbpd/internal/material"
	"pbpd/internal/ml"
	"pbpd/internal/validate"
)

// Confidence is the qualitative trust tier of a material's model, set by
// how much training data backs it.
type Confidence string

const (
	ConfidenceHigh     Confidence = "High"
	ConfidenceModerate Confidence = "Moderate"
	ConfidenceLow      Confidence = "Low"
)

// confidenceByGroup reflects relative training set sizes: the titanium
// model is the best supported, the aluminum one the thinnest.
var confidenceByGroup = map[material.Group]Confidence{
	material.Titanium:       ConfidenceHigh,
	material.StainlessSteel: ConfidenceModerate,
	material.Aluminum:       ConfidenceLow,
}

// Result is one successful prediction with its advisory metadata.
type Result struct {
	Material    material.Group     `json:"material"`
	Vector      features.Vector    `json:"vector"`
	PBPD        float64            `json:"pbpd_percent"`
	Warnings    []validate.Warning `json:"warnings,omitempty"`
	Confidence  Confidence         `json:"confidence"`
	PredictedAt time.Time          `json:"predicted_at"`
}

// MetricsInterface defines the metrics methods the engine needs.
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailureInc(kind string)
	PredictionLatencyObserve(seconds float64)
	PBPDObserve(percent float64)
	RangeWarningsAdd(n int)
	ExplanationErrorsInc()
}

// Engine runs the validation, derivation and prediction pipeline. It is
// stateless apart from the model registry it resolves models through, and
// is safe for concurrent use.
type Engine struct {
	registry *ml.Registry
	metrics  MetricsInterface
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics wires pipeline metrics into the engine.
func WithMetrics(m MetricsInterface) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over a model registry.
func New(registry *ml.Registry, opts ...Option) *Engine {
	e := &Engine{registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Predict runs the full pipeline for one measurement. All failures are
// deterministic given the same input, so nothing is retried; the typed
// error is surfaced to the caller with its row context intact.
func (e *Engine) Predict(raw features.RawMeasurement, g material.Group) (*Result, error) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.PredictionsInc()
		defer func() {
			e.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
		}()
	}

	vec, err := features.Derive(raw, g)
	if err != nil {
		e.fail(err)
		return nil, err
	}

	model, err := e.registry.Resolve(g)
	if err != nil {
		e.fail(err)
		return nil, err
	}

	warnings := validate.Check(vec, g)
	warnings = append(warnings, validate.CheckRaw(raw, g)...)
	if e.metrics != nil && len(warnings) > 0 {
		e.metrics.RangeWarningsAdd(len(warnings))
	}

	pbpd, err := model.Predict(vec)
	if err != nil {
		wrapped := &PredictionFailureError{Material: g, cause: err}
		e.fail(wrapped)
		return nil, wrapped
	}

	if e.metrics != nil {
		e.metrics.PBPDObserve(pbpd)
	}
	log.Debug().
		Str("material", g.Key()).
		Float64("pbpd", pbpd).
		Int("warnings", len(warnings)).
		Msg("prediction complete")

	return &Result{
		Material:    g,
		Vector:      vec,
		PBPD:        pbpd,
		Warnings:    warnings,
		Confidence:  confidenceByGroup[g],
		PredictedAt: time.Now().UTC(),
	}, nil
}

// Explain computes the per-feature contribution breakdown for a
// measurement. It is on-demand and independent of Predict: an explanation
// failure never invalidates a prediction already made.
func (e *Engine) Explain(raw features.RawMeasurement, g material.Group) (*ml.Explanation, error) {
	vec, err := features.Derive(raw, g)
	if err != nil {
		return nil, err
	}

	model, err := e.registry.Resolve(g)
	if err != nil {
		return nil, err
	}

	exp, err := ml.Explain(model, vec)
	if err != nil {
		if e.metrics != nil {
			e.metrics.ExplanationErrorsInc()
		}
		log.Warn().Err(err).Str("material", g.Key()).Msg("explanation failed")
		return nil, err
	}
	return exp, nil
}

func (e *Engine) fail(err error) {
	if e.metrics != nil {
		e.metrics.PredictionFailureInc(KindOf(err).String())
	}
}
