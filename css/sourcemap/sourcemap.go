// Package sourcemap builds and reads version 3 source maps.
//
// See https://sourcemaps.info/spec.html.
package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrInvalidSourceMap = errors.New("invalid source map")
	ErrInvalidDataURL   = errors.New("source map url is not an inline json data url")
)

// OriginalLocation is a position in one of the sources.
type OriginalLocation struct {
	Source uint32
	Line   uint32 // zero based
	Column uint32 // zero based
	Name   *uint32
}

// Mapping ties a generated position to an original one. Original is nil for
// generated text without a source.
type Mapping struct {
	GeneratedLine   uint32
	GeneratedColumn uint32
	Original        *OriginalLocation
}

// SourceMap collects mappings while a style sheet is printed.
type SourceMap struct {
	ProjectRoot    string
	sources        []string
	sourcesContent []string
	names          []string
	mappings       []Mapping
}

// New returns an empty source map.
func New(projectRoot string) *SourceMap {
	return &SourceMap{ProjectRoot: projectRoot}
}

// AddSource registers a source path and returns its index. Registering the
// same path again returns the existing index.
func (sm *SourceMap) AddSource(path string) uint32 {
	if i := slices.Index(sm.sources, path); i >= 0 {
		return uint32(i)
	}
	sm.sources = append(sm.sources, path)
	sm.sourcesContent = append(sm.sourcesContent, "")
	return uint32(len(sm.sources) - 1)
}

// SetSourceContent embeds the text of source i.
func (sm *SourceMap) SetSourceContent(i uint32, content string) error {
	if int(i) >= len(sm.sources) {
		return fmt.Errorf("%w: source index %d out of range", ErrInvalidSourceMap, i)
	}
	sm.sourcesContent[i] = content
	return nil
}

// AddName registers a symbol name and returns its index.
func (sm *SourceMap) AddName(name string) uint32 {
	if i := slices.Index(sm.names, name); i >= 0 {
		return uint32(i)
	}
	sm.names = append(sm.names, name)
	return uint32(len(sm.names) - 1)
}

// AddMapping records a mapping. Mappings may be added in any order.
func (sm *SourceMap) AddMapping(generatedLine, generatedColumn uint32, original *OriginalLocation) {
	sm.mappings = append(sm.mappings, Mapping{
		GeneratedLine:   generatedLine,
		GeneratedColumn: generatedColumn,
		Original:        original,
	})
}

// Sources returns registered source paths.
func (sm *SourceMap) Sources() []string { return sm.sources }

// SourcesContent returns embedded source texts, empty when not set.
func (sm *SourceMap) SourcesContent() []string { return sm.sourcesContent }

// Names returns registered symbol names.
func (sm *SourceMap) Names() []string { return sm.names }

// Mappings returns mappings sorted by generated position.
func (sm *SourceMap) Mappings() []Mapping {
	sortMappings(sm.mappings)
	return sm.mappings
}

func sortMappings(m []Mapping) {
	slices.SortStableFunc(m, func(a, b Mapping) int {
		if a.GeneratedLine != b.GeneratedLine {
			return int(a.GeneratedLine) - int(b.GeneratedLine)
		}
		return int(a.GeneratedColumn) - int(b.GeneratedColumn)
	})
}

type wireSourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// ToJSON serializes the source map.
func (sm *SourceMap) ToJSON() ([]byte, error) {
	w := wireSourceMap{
		Version:    3,
		SourceRoot: sm.ProjectRoot,
		Sources:    nonNil(sm.sources),
		Names:      nonNil(sm.names),
		Mappings:   encodeMappings(sm.Mappings()),
	}
	if slices.ContainsFunc(sm.sourcesContent, func(s string) bool { return s != "" }) {
		w.SourcesContent = sm.sourcesContent
	}
	return json.Marshal(&w)
}

// DataURL returns the map as an inline data URL suitable for a
// sourceMappingURL comment.
func (sm *SourceMap) DataURL() (string, error) {
	data, err := sm.ToJSON()
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(data), nil
}

const dataURLPrefix = "data:application/json;base64,"

// FromJSON parses a source map.
func FromJSON(data []byte) (*SourceMap, error) {
	var w wireSourceMap
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSourceMap, err)
	}
	if w.Version != 3 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidSourceMap, w.Version)
	}
	mappings, err := decodeMappings(w.Mappings)
	if err != nil {
		return nil, err
	}
	sm := &SourceMap{
		ProjectRoot:    w.SourceRoot,
		sources:        w.Sources,
		sourcesContent: make([]string, len(w.Sources)),
		names:          w.Names,
		mappings:       mappings,
	}
	copy(sm.sourcesContent, w.SourcesContent)
	return sm, nil
}

// FromDataURL parses a source map embedded in a base64 JSON data URL. Only
// inline maps are supported; external map files have to be read by the
// caller.
func FromDataURL(url string) (*SourceMap, error) {
	const prefix = "data:application/json;"
	if !strings.HasPrefix(url, prefix) {
		return nil, ErrInvalidDataURL
	}
	rest := url[len(prefix):]
	if strings.HasPrefix(rest, "charset=") {
		i := strings.IndexByte(rest, ';')
		if i < 0 {
			return nil, ErrInvalidDataURL
		}
		rest = rest[i+1:]
	}
	payload, ok := strings.CutPrefix(rest, "base64,")
	if !ok {
		return nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
	}
	return FromJSON(data)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
