// Package material defines the closed set of powder material groups the
// predictor supports and the rules for resolving a group from free-text
// material labels or from a measured bulk density.
package material

import (
	"fmt"
	"strings"
)

// Group identifies one of the supported material families. Each group has
// its own trained model and training-data range table.
type Group int

const (
	Titanium Group = iota
	StainlessSteel
	Aluminum

	// Count is the number of material groups; registry tables are sized by it.
	Count = 3
)

// String returns the human-readable group name.
func (g Group) String() string {
	switch g {
	case Titanium:
		return "Titanium"
	case StainlessSteel:
		return "StainlessSteel"
	case Aluminum:
		return "Aluminum"
	default:
		return fmt.Sprintf("Group(%d)", int(g))
	}
}

// Key returns the short identifier used in artifact file names and APIs.
func (g Group) Key() string {
	switch g {
	case Titanium:
		return "ti"
	case StainlessSteel:
		return "ss"
	case Aluminum:
		return "al"
	default:
		return "unknown"
	}
}

// MarshalText renders the group as its short key in JSON and reports.
func (g Group) MarshalText() ([]byte, error) {
	return []byte(g.Key()), nil
}

// UnmarshalText accepts a short key or full group name.
func (g *Group) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Valid reports whether g is one of the defined groups.
func (g Group) Valid() bool {
	return g >= Titanium && g <= Aluminum
}

// Groups returns all groups in canonical order.
func Groups() []Group {
	return []Group{Titanium, StainlessSteel, Aluminum}
}

// UnknownMaterialError is returned when a material label matches no known
// alias. It is row-scoped: in batch mode it fails only the row that carried
// the label.
type UnknownMaterialError struct {
	Label string
}

func (e *UnknownMaterialError) Error() string {
	return fmt.Sprintf("unknown material label %q", e.Label)
}

// aliases maps substrings of lowercased material labels to groups. Order
// matters: titanium is checked first so that labels like "Ti-6Al-4V" resolve
// to titanium even though they also contain "al".
var aliases = []struct {
	group Group
	subs  []string
}{
	{Titanium, []string{"ti"}},
	{StainlessSteel, []string{"ss", "316", "304", "stainless", "steel"}},
	{Aluminum, []string{"al", "alumin"}},
}

// FromLabel classifies a free-text material label (e.g. "Ti-6Al-4V", "316L",
// "AlSi10Mg") into a Group by substring match against known aliases.
func FromLabel(label string) (Group, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return 0, &UnknownMaterialError{Label: label}
	}
	for _, a := range aliases {
		for _, sub := range a.subs {
			if strings.Contains(l, sub) {
				return a.group, nil
			}
		}
	}
	return 0, &UnknownMaterialError{Label: label}
}

// FromDensity infers the group from a measured bulk density in g/cm³:
// aluminum alloys sit below 3.5, titanium alloys between 3.5 and 6, and
// steels above.
func FromDensity(bulkDensity float64) Group {
	switch {
	case bulkDensity < 3.5:
		return Aluminum
	case bulkDensity < 6:
		return Titanium
	default:
		return StainlessSteel
	}
}

// Parse resolves a short group key ("ti", "ss", "al") or a full group name.
// Unlike FromLabel it requires an exact key, not an alias substring.
func Parse(s string) (Group, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ti", "titanium":
		return Titanium, nil
	case "ss", "stainlesssteel", "stainless_steel":
		return StainlessSteel, nil
	case "al", "aluminum", "aluminium":
		return Aluminum, nil
	default:
		return 0, &UnknownMaterialError{Label: s}
	}
}
