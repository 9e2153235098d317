package config

import (
	"fmt"
	"strings"
)

// Specification of source map output.
// ENUM(none, inline, file)
type SourceMapMode int

const (
	SourceMapModeNone SourceMapMode = iota
	SourceMapModeInline
	SourceMapModeFile
)

var sourceMapModeNames = []string{"none", "inline", "file"}

// SourceMapModeNames returns list of possible string values.
func SourceMapModeNames() []string {
	return append([]string(nil), sourceMapModeNames...)
}

func (m SourceMapMode) String() string {
	if m >= 0 && int(m) < len(sourceMapModeNames) {
		return sourceMapModeNames[m]
	}
	return fmt.Sprintf("SourceMapMode(%d)", int(m))
}

// IsValid checks that value is one of the defined modes.
func (m SourceMapMode) IsValid() bool {
	return m >= 0 && int(m) < len(sourceMapModeNames)
}

// Enabled reports whether any source map is requested.
func (m SourceMapMode) Enabled() bool {
	return m != SourceMapModeNone
}

// ParseSourceMapMode converts a string (case insensitive) to SourceMapMode.
func ParseSourceMapMode(name string) (SourceMapMode, error) {
	for i, n := range sourceMapModeNames {
		if strings.EqualFold(n, name) {
			return SourceMapMode(i), nil
		}
	}
	return SourceMapModeNone, fmt.Errorf("%s is not a valid SourceMapMode, try [%s]", name, strings.Join(sourceMapModeNames, ", "))
}

func (m SourceMapMode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("%d is not a valid SourceMapMode", int(m))
	}
	return []byte(m.String()), nil
}

func (m *SourceMapMode) UnmarshalText(text []byte) error {
	v, err := ParseSourceMapMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
