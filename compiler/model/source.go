package model

import (
	"slices"

	"github.com/brimdata/semq/pkg/field"
)

type SourceType string

const (
	SourceTable       SourceType = "table"
	SourceSQL         SourceType = "sql_select"
	SourceComposite   SourceType = "composite"
	SourceQuery       SourceType = "query_source"
	SourceQueryOutput SourceType = "query_result"
)

type SourceDef struct {
	Kind       string       `json:"kind" unpack:""`
	Type       SourceType   `json:"type"`
	Name       string       `json:"name"`
	As         string       `json:"as,omitempty"`
	Connection string       `json:"connection,omitempty"`
	TablePath  string       `json:"table_path,omitempty"`
	SelectStr  string       `json:"select,omitempty"`
	Query      *Query       `json:"query,omitempty"`
	Fields     []FieldDef   `json:"fields"`
	Filters    []*Filter    `json:"filters,omitempty"`
	PrimaryKey string       `json:"primary_key,omitempty"`
	Candidates []*SourceDef `json:"candidates,omitempty"`
	SourceID   string       `json:"source_id,omitempty"`
	Persist    bool         `json:"persist,omitempty"`
	Extends    string       `json:"extends,omitempty"`
	DependsOn  []string     `json:"depends_on,omitempty"`
	Location   *Location    `json:"location,omitempty"`
}

func (*SourceDef) entryNode() {}

func (s *SourceDef) EntryName() string {
	return s.Name
}

// Copy returns a copy of s whose slices may be appended to without
// disturbing s.
func (s *SourceDef) Copy() *SourceDef {
	out := *s
	out.Fields = slices.Clone(s.Fields)
	out.Filters = slices.Clone(s.Filters)
	out.Candidates = slices.Clone(s.Candidates)
	out.DependsOn = slices.Clone(s.DependsOn)
	return &out
}

func (s *SourceDef) Field(name string) FieldDef {
	for _, f := range s.Fields {
		if f.FieldName() == name {
			return f
		}
	}
	return nil
}

// Lookup resolves path through joins.  It returns nil if any element of
// the path is undefined or if a non-final element is not a join.
func (s *SourceDef) Lookup(path field.Path) FieldDef {
	if len(path) == 0 {
		return nil
	}
	f := s.Field(path[0])
	if f == nil || len(path) == 1 {
		return f
	}
	j, ok := f.(*JoinField)
	if !ok {
		return nil
	}
	return j.Source.Lookup(path[1:])
}

// IsComposite returns true if s or any source joined to it is composite.
func (s *SourceDef) IsComposite() bool {
	if s.Type == SourceComposite {
		return true
	}
	for _, f := range s.Fields {
		if j, ok := f.(*JoinField); ok && j.Source.IsComposite() {
			return true
		}
	}
	return false
}

// IsPersistable reports whether s could be materialized by a builder,
// which holds for SQL and query sources.
func (s *SourceDef) IsPersistable() bool {
	return s.Type == SourceSQL || s.Type == SourceQuery
}

type FieldDef interface {
	fieldDefNode()
	FieldName() string
}

type (
	// AtomicField is a column of the underlying table when Expr is nil and
	// otherwise a dimension or measure.
	AtomicField struct {
		Kind            string            `json:"kind" unpack:""`
		Name            string            `json:"name"`
		Type            DataType          `json:"type"`
		Shape           Shape             `json:"shape"`
		Expr            Expr              `json:"expr,omitempty"`
		Usage           []FieldUsage      `json:"usage,omitempty"`
		RequiresGroupBy []RequiredGroupBy `json:"requires_group_by,omitempty"`
		Ungroupings     []Ungrouping      `json:"ungroupings,omitempty"`
		Location        *Location         `json:"location,omitempty"`
	}
	JoinField struct {
		Kind         string       `json:"kind" unpack:""`
		Name         string       `json:"name"`
		Relationship string       `json:"relationship"`
		Source       *SourceDef   `json:"source"`
		On           Expr         `json:"on,omitempty"`
		OnUsage      []FieldUsage `json:"on_usage,omitempty"`
		Location     *Location    `json:"location,omitempty"`
	}
	ViewField struct {
		Kind     string    `json:"kind" unpack:""`
		Name     string    `json:"name"`
		Pipeline []Segment `json:"pipeline"`
		Location *Location `json:"location,omitempty"`
	}
)

func (*AtomicField) fieldDefNode() {}
func (*JoinField) fieldDefNode()   {}
func (*ViewField) fieldDefNode()   {}

func (a *AtomicField) FieldName() string { return a.Name }
func (j *JoinField) FieldName() string   { return j.Name }
func (v *ViewField) FieldName() string   { return v.Name }

func NewColumn(name string, typ DataType) *AtomicField {
	return &AtomicField{Kind: "AtomicField", Name: name, Type: typ}
}

// IsCompositeField reports whether f varies among composite inputs.
func IsCompositeField(f FieldDef) bool {
	switch f := f.(type) {
	case *AtomicField:
		_, ok := f.Expr.(*CompositeField)
		return ok
	case *JoinField:
		return f.Source.Type == SourceComposite
	}
	return false
}

// FieldType is the type name used in diagnostics.
func FieldType(f FieldDef) DataType {
	switch f := f.(type) {
	case *AtomicField:
		return f.Type
	case *JoinField:
		return TypeJoin
	case *ViewField:
		return TypeView
	}
	return TypeError
}
