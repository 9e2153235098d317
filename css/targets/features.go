package targets

// Feature is a CSS feature whose support depends on the browser.
type Feature int

const (
	// CustomMediaQueries is @custom-media, not shipped by any browser yet.
	CustomMediaQueries Feature = iota
	// HexAlphaColors is #rrggbbaa and #rgba notation.
	HexAlphaColors
	// Nesting is CSS nesting in style rules.
	Nesting
)

// support lists the first version of each browser implementing a feature.
// A browser missing from the table does not support the feature.
var support = map[Feature]map[Browser]Version{
	CustomMediaQueries: {},
	HexAlphaColors: {
		Android:   V(62, 0, 0),
		Chrome:    V(62, 0, 0),
		Edge:      V(79, 0, 0),
		Firefox:   V(49, 0, 0),
		IOSSafari: V(9, 3, 0),
		Opera:     V(49, 0, 0),
		Safari:    V(10, 0, 0),
		Samsung:   V(8, 2, 0),
	},
	Nesting: {
		Android:   V(120, 0, 0),
		Chrome:    V(120, 0, 0),
		Edge:      V(120, 0, 0),
		Firefox:   V(117, 0, 0),
		IOSSafari: V(17, 2, 0),
		Opera:     V(106, 0, 0),
		Safari:    V(17, 2, 0),
		Samsung:   V(25, 0, 0),
	},
}

// IsCompatible reports whether every targeted browser supports f. With no
// targets everything is compatible.
func (f Feature) IsCompatible(t *Browsers) bool {
	if t == nil {
		return true
	}
	table := support[f]
	for i, v := range t.versions {
		if v == 0 {
			continue
		}
		first, ok := table[Browser(i)]
		if !ok || v < first {
			return false
		}
	}
	return true
}

func (f Feature) String() string {
	switch f {
	case CustomMediaQueries:
		return "custom-media-queries"
	case HexAlphaColors:
		return "hex-alpha-colors"
	case Nesting:
		return "nesting"
	}
	return "unknown"
}
