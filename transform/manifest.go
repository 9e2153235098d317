package transform

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/maruel/natural"

	"csspipe/css"
	"csspipe/css/modules"
)

// Manifest is written next to every output, it describes what scoping and
// dependency analysis produced.
type Manifest struct {
	Source       string             `json:"source"`
	Output       string             `json:"output"`
	Encoding     string             `json:"encoding,omitempty"`
	Exports      modules.Exports    `json:"-"`
	References   modules.References `json:"-"`
	Dependencies []css.Dependency   `json:"dependencies,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
}

// MarshalJSON keeps export and reference keys in natural order ("btn2"
// before "btn10") so manifests diff well.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type plain Manifest
	base, err := json.Marshal((*plain)(m))
	if err != nil {
		return nil, err
	}
	if len(m.Exports) == 0 && len(m.References) == 0 {
		return base, nil
	}

	buf := bytes.NewBuffer(base[:len(base)-1])
	if len(m.Exports) > 0 {
		if err := writeNaturalObject(buf, "exports", m.Exports); err != nil {
			return nil, err
		}
	}
	if len(m.References) > 0 {
		if err := writeNaturalObject(buf, "references", m.References); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func naturalKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})
	return keys
}

// writeNaturalObject appends `,"field":{...}` to buf, buf always holds at
// least one field already.
func writeNaturalObject[V any](buf *bytes.Buffer, field string, m map[string]V) error {
	buf.WriteString(`,"` + field + `":{`)
	for i, k := range naturalKeys(m) {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return err
		}
		val, err := json.Marshal(m[k])
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}
