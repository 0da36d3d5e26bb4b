// Package validate checks derived feature vectors against the per-material
// ranges observed in the training data. Out-of-range values are advisory:
// the request still succeeds, but each violation is recorded as a warning so
// the caller knows the model is extrapolating.
package validate

import (
	"fmt"

	"pbpd/internal/features"
	"pbpd/internal/material"
)

// Bound identifies which side of a training range a value violated.
type Bound int

const (
	BelowMin Bound = iota
	AboveMax
)

func (b Bound) String() string {
	if b == BelowMin {
		return "below-min"
	}
	return "above-max"
}

// Range is the [Min, Max] interval a feature covered during training.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Warning records one out-of-range feature on an otherwise valid input.
type Warning struct {
	Feature features.Field
	Value   float64
	Bound   Bound
	Limit   float64
}

func (w Warning) String() string {
	return fmt.Sprintf("%s=%.4g %s %.4g", w.Feature, w.Value, w.Bound, w.Limit)
}

// MarshalText lets warnings render as readable strings in report columns.
func (w Warning) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// rangeTable holds training ranges for one material group, in the group's
// canonical feature order so warning output is deterministic.
type rangeTable struct {
	order  []features.Field
	ranges map[features.Field]Range
}

// tables is fixed at build time and read-only at runtime. The intervals are
// the min/max of each derived feature over the group's training set.
var tables = map[material.Group]rangeTable{
	material.Titanium: {
		order: []features.Field{features.R23, features.Span, features.TapDensity},
		ranges: map[features.Field]Range{
			features.R23:        {Min: 0.20, Max: 1.10},
			features.Span:       {Min: 0.80, Max: 2.00},
			features.TapDensity: {Min: 2.20, Max: 3.00},
		},
	},
	material.StainlessSteel: {
		order: []features.Field{features.R23, features.R34, features.Span, features.TapDensity, features.HausnerRatio},
		ranges: map[features.Field]Range{
			features.R23:          {Min: 0.15, Max: 1.20},
			features.R34:          {Min: 0.20, Max: 1.40},
			features.Span:         {Min: 0.80, Max: 2.00},
			features.TapDensity:   {Min: 3.90, Max: 5.00},
			features.HausnerRatio: {Min: 1.00, Max: 1.40},
		},
	},
	material.Aluminum: {
		order: []features.Field{features.R34, features.Span, features.TapDensity},
		ranges: map[features.Field]Range{
			features.R34:        {Min: 0.20, Max: 1.50},
			features.Span:       {Min: 0.80, Max: 2.00},
			features.TapDensity: {Min: 1.10, Max: 1.70},
		},
	},
}

// Check compares every vector feature present in the group's range table
// against its training interval and returns the violations in the table's
// canonical order. Features without a table entry are ignored. Check never
// fails: an empty slice means everything was in range.
func Check(vec features.Vector, g material.Group) []Warning {
	table, ok := tables[g]
	if !ok {
		return nil
	}

	var warnings []Warning
	for _, f := range table.order {
		value, present := vec.Get(f)
		if !present {
			continue
		}
		r := table.ranges[f]
		switch {
		case value < r.Min:
			warnings = append(warnings, Warning{Feature: f, Value: value, Bound: BelowMin, Limit: r.Min})
		case value > r.Max:
			warnings = append(warnings, Warning{Feature: f, Value: value, Bound: AboveMax, Limit: r.Max})
		}
	}
	return warnings
}

// flowabilityHRLimit is the Hausner ratio above which a powder flows poorly
// regardless of alloy.
const flowabilityHRLimit = 1.4

// CheckRaw applies the material-independent advisories to a raw measurement:
// a Hausner ratio above 1.4 predicts poor flowability, and a D[2,3] larger
// than the layer thickness means particles bridge the layer. The HR advisory
// is skipped when the group's own table already bounds HR, so a single value
// never warns twice. Like Check, CheckRaw never fails.
func CheckRaw(raw features.RawMeasurement, g material.Group) []Warning {
	var warnings []Warning

	if hr, ok := raw[features.HausnerRatio]; ok && hr > flowabilityHRLimit {
		if _, covered := tables[g].ranges[features.HausnerRatio]; !covered {
			warnings = append(warnings, Warning{Feature: features.HausnerRatio, Value: hr, Bound: AboveMax, Limit: flowabilityHRLimit})
		}
	}

	d23, okD := raw[features.D23]
	layer, okL := raw[features.LayerThickness]
	if okD && okL && d23 > layer {
		warnings = append(warnings, Warning{Feature: features.D23, Value: d23, Bound: AboveMax, Limit: layer})
	}
	return warnings
}

// Ranges returns a copy of the training range table for a group, for
// display surfaces that want to show users what the model has seen.
func Ranges(g material.Group) map[features.Field]Range {
	table, ok := tables[g]
	if !ok {
		return nil
	}
	out := make(map[features.Field]Range, len(table.ranges))
	for f, r := range table.ranges {
		out[f] = r
	}
	return out
}
