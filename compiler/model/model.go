// Package model declares the intermediate representation produced by the
// translator: a model of named sources and queries plus the pipelines of
// unnamed queries, ready for a SQL back end.
package model

import (
	"slices"
)

type Entry interface {
	entryNode()
	EntryName() string
}

type ModelDef struct {
	Name           string                    `json:"name"`
	Contents       map[string]Entry          `json:"contents"`
	Order          []string                  `json:"order"`
	Exports        []string                  `json:"exports"`
	QueryList      []*Query                  `json:"query_list"`
	Dependencies   Dependencies              `json:"dependencies"`
	SourceRegistry map[string]*RegistryValue `json:"source_registry"`
}

func NewModelDef(name string) *ModelDef {
	return &ModelDef{
		Name:           name,
		Contents:       make(map[string]Entry),
		SourceRegistry: make(map[string]*RegistryValue),
	}
}

// Set adds or replaces a named entry, keeping first-definition order.
func (m *ModelDef) Set(name string, e Entry, exported bool) {
	if _, ok := m.Contents[name]; !ok {
		m.Order = append(m.Order, name)
	}
	m.Contents[name] = e
	if exported && !slices.Contains(m.Exports, name) {
		m.Exports = append(m.Exports, name)
	}
}

func (m *ModelDef) Source(name string) *SourceDef {
	s, _ := m.Contents[name].(*SourceDef)
	return s
}

// ResolveSourceID returns the source registered under id whether it is a
// visible entry or a hidden dependency.
func (m *ModelDef) ResolveSourceID(id string) *SourceDef {
	v, ok := m.SourceRegistry[id]
	if !ok {
		return nil
	}
	if v.Reference != "" {
		return m.Source(v.Reference)
	}
	return v.Source
}

// RegistryValue is either a Reference to the name of a visible source or a
// hidden Source carried along for a persistent dependency.
type RegistryValue struct {
	Reference string     `json:"reference,omitempty"`
	Source    *SourceDef `json:"source,omitempty"`
}

func MakeSourceID(name, url string) string {
	if url == "" {
		url = "unknown"
	}
	return name + "@" + url
}

type SQLBlock struct {
	Kind   string     `json:"kind" unpack:""`
	Name   string     `json:"name"`
	Source *SourceDef `json:"source"`
}

func (*SQLBlock) entryNode() {}

func (s *SQLBlock) EntryName() string { return s.Name }

type Acceptance string

const (
	AcceptLiteral   Acceptance = "literal"
	AcceptConstant  Acceptance = "constant"
	AcceptScalar    Acceptance = "scalar"
	AcceptAggregate Acceptance = "aggregate"
	AcceptOutput    Acceptance = "output"
)

type Param struct {
	Name   string     `json:"name"`
	Types  []DataType `json:"types,omitempty"`
	Accept Acceptance `json:"accept"`
}

type Overload struct {
	Params   []Param  `json:"params"`
	Variadic bool     `json:"variadic,omitempty"`
	Returns  DataType `json:"returns,omitempty"`
	Shape    Shape    `json:"shape"`
}

// Function is an entry of the global namespace.
type Function struct {
	Kind      string      `json:"kind" unpack:""`
	Name      string      `json:"name"`
	Overloads []*Overload `json:"overloads"`
}

func (*Function) entryNode() {}

func (f *Function) EntryName() string { return f.Name }
