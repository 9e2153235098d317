package modules

import (
	"encoding/json"
	"fmt"
)

// Reference is a name referenced from an export, e.g. via "composes". The
// set of kinds is closed; consumers dispatch with MatchReference.
type Reference interface {
	json.Marshaler
	isReference()
}

// LocalReference points at a compiled name in the same source.
type LocalReference struct {
	Name string
}

// GlobalReference points at a name which is not scoped.
type GlobalReference struct {
	Name string
}

// DependencyReference points at a name exported by another file.
type DependencyReference struct {
	Name      string
	Specifier string
}

func (LocalReference) isReference()      {}
func (GlobalReference) isReference()     {}
func (DependencyReference) isReference() {}

// MatchReference calls the function matching the kind of r. Adding a new
// reference kind changes this signature, so every consumer has to handle it.
func MatchReference[T any](r Reference,
	local func(LocalReference) T,
	global func(GlobalReference) T,
	dependency func(DependencyReference) T,
) T {
	switch r := r.(type) {
	case LocalReference:
		return local(r)
	case GlobalReference:
		return global(r)
	case DependencyReference:
		return dependency(r)
	}
	// unreachable, Reference cannot be implemented outside of this package
	panic(fmt.Sprintf("unexpected css module reference %T", r))
}

type wireReference struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Specifier string `json:"specifier,omitempty"`
}

func (r LocalReference) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireReference{Type: "local", Name: r.Name})
}

func (r GlobalReference) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireReference{Type: "global", Name: r.Name})
}

func (r DependencyReference) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireReference{Type: "dependency", Name: r.Name, Specifier: r.Specifier})
}

// UnmarshalReference decodes a reference from its tagged JSON form.
func UnmarshalReference(data []byte) (Reference, error) {
	var w wireReference
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	switch w.Type {
	case "local":
		return LocalReference{Name: w.Name}, nil
	case "global":
		return GlobalReference{Name: w.Name}, nil
	case "dependency":
		return DependencyReference{Name: w.Name, Specifier: w.Specifier}, nil
	}
	return nil, fmt.Errorf("unknown css module reference type %q", w.Type)
}

// Export is the compiled form of one original identifier.
type Export struct {
	Name         string      `json:"name"`
	Composes     []Reference `json:"composes"`
	IsReferenced bool        `json:"isReferenced"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Export) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name         string            `json:"name"`
		Composes     []json.RawMessage `json:"composes"`
		IsReferenced bool              `json:"isReferenced"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Name, e.IsReferenced = raw.Name, raw.IsReferenced
	e.Composes = make([]Reference, 0, len(raw.Composes))
	for _, c := range raw.Composes {
		r, err := UnmarshalReference(c)
		if err != nil {
			return err
		}
		e.Composes = append(e.Composes, r)
	}
	return nil
}

// Exports maps original identifiers to their exports.
type Exports map[string]Export

// References maps placeholder names printed in the output to the
// references they stand for.
type References map[string]Reference

// UnmarshalJSON implements json.Unmarshaler.
func (r *References) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*r = nil
		return nil
	}
	out := make(References, len(raw))
	for k, v := range raw {
		ref, err := UnmarshalReference(v)
		if err != nil {
			return err
		}
		out[k] = ref
	}
	*r = out
	return nil
}
