// Package targets describes the browsers a style sheet is produced for and
// answers whether a CSS feature can be emitted as is for all of them.
package targets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidQuery is returned for a browser query that cannot be parsed.
var ErrInvalidQuery = errors.New("invalid browser query")

// Version packs major.minor.patch as major<<16 | minor<<8 | patch.
type Version uint32

// V builds a Version.
func V(major, minor, patch uint8) Version {
	return Version(uint32(major)<<16 | uint32(minor)<<8 | uint32(patch))
}

func (v Version) String() string {
	major, minor, patch := v>>16, (v>>8)&0xff, v&0xff
	switch {
	case patch != 0:
		return fmt.Sprintf("%d.%d.%d", major, minor, patch)
	case minor != 0:
		return fmt.Sprintf("%d.%d", major, minor)
	}
	return strconv.Itoa(int(major))
}

// ParseVersion parses "15", "15.4" or "15.4.1".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: version %q", ErrInvalidQuery, s)
	}
	var nums [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: version %q: %w", ErrInvalidQuery, s, err)
		}
		nums[i] = uint8(n)
	}
	return V(nums[0], nums[1], nums[2]), nil
}

// Browser identifies a browser family.
type Browser int

const (
	Android Browser = iota
	Chrome
	Edge
	Firefox
	IE
	IOSSafari
	Opera
	Safari
	Samsung
	browserCount
)

var browserNames = [browserCount]string{
	Android:   "android",
	Chrome:    "chrome",
	Edge:      "edge",
	Firefox:   "firefox",
	IE:        "ie",
	IOSSafari: "ios_saf",
	Opera:     "opera",
	Safari:    "safari",
	Samsung:   "samsung",
}

var browserAliases = map[string]Browser{
	"ios":      IOSSafari,
	"explorer": IE,
	"ff":       Firefox,
}

func (b Browser) String() string {
	if b < 0 || b >= browserCount {
		return "unknown"
	}
	return browserNames[b]
}

// ParseBrowser maps a browser name to Browser.
func ParseBrowser(name string) (Browser, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range browserNames {
		if n == name {
			return Browser(i), true
		}
	}
	b, ok := browserAliases[name]
	return b, ok
}

// Browsers holds the minimum version per browser. Zero means the browser is
// not targeted.
type Browsers struct {
	versions [browserCount]Version
}

// Set targets browser b starting at version v.
func (t *Browsers) Set(b Browser, v Version) {
	t.versions[b] = v
}

// Get returns the minimum targeted version of b, false if b is not targeted.
func (t *Browsers) Get(b Browser) (Version, bool) {
	v := t.versions[b]
	return v, v != 0
}

// IsEmpty reports whether no browser is targeted.
func (t *Browsers) IsEmpty() bool {
	for _, v := range t.versions {
		if v != 0 {
			return false
		}
	}
	return true
}

// String lists targeted browsers as "name version" queries.
func (t *Browsers) String() string {
	var parts []string
	for i, v := range t.versions {
		if v != 0 {
			parts = append(parts, browserNames[i]+" "+v.String())
		}
	}
	return strings.Join(parts, ", ")
}

// Parse builds Browsers from queries like "chrome 90" or "safari 15.4".
// When a browser is listed several times the lowest version is kept.
func Parse(queries []string) (*Browsers, error) {
	t := &Browsers{}
	for _, q := range queries {
		fields := strings.Fields(q)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidQuery, q)
		}
		b, ok := ParseBrowser(fields[0])
		if !ok {
			return nil, fmt.Errorf("%w: unknown browser %q", ErrInvalidQuery, fields[0])
		}
		v, err := ParseVersion(fields[1])
		if err != nil {
			return nil, err
		}
		if v == 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidQuery, q)
		}
		if cur, ok := t.Get(b); !ok || v < cur {
			t.Set(b, v)
		}
	}
	return t, nil
}
