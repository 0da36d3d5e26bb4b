package ml

import (
	"fmt"
	"sort"

	"pbpd/internal/features"
)

// Explanation holds the per-feature contribution breakdown of a single
// prediction. Contributions are additive: their sum approximates
// (prediction − baseline).
type Explanation struct {
	Contributions map[features.Field]float64 `json:"contributions"`
	Baseline      float64                    `json:"baseline"`
}

// TopFeatures returns feature names ordered by absolute contribution,
// largest first.
func (e *Explanation) TopFeatures() []features.Field {
	names := make([]features.Field, 0, len(e.Contributions))
	for f := range e.Contributions {
		names = append(names, f)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := e.Contributions[names[i]], e.Contributions[names[j]]
		if abs(ci) != abs(cj) {
			return abs(ci) > abs(cj)
		}
		return names[i] < names[j]
	})
	return names
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Explain computes the contribution breakdown for a model and input vector.
// It is computed only on demand; callers must not let a failure here block
// the prediction path.
func Explain(model Model, vec features.Vector) (*Explanation, error) {
	if model == nil {
		return nil, fmt.Errorf("no model")
	}

	contributions, err := model.Explain(vec)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}

	exp := &Explanation{Contributions: contributions}
	if lm, ok := model.(interface{ Baseline() float64 }); ok {
		exp.Baseline = lm.Baseline()
	}
	return exp, nil
}
