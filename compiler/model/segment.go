package model

import "github.com/brimdata/semq/pkg/field"

type FieldUsage struct {
	Path                 field.Path            `json:"path"`
	At                   *Location             `json:"at,omitempty"`
	AnalyticFunctionUse  bool                  `json:"analytic_function_use,omitempty"`
	UniqueKeyRequirement *UniqueKeyRequirement `json:"unique_key_requirement,omitempty"`
}

type UniqueKeyRequirement struct {
	IsCount bool `json:"is_count"`
}

// RequiredGroupBy says a measure is only meaningful when Path is grouped
// by (or pinned to a single value) in the referencing nest level.
type RequiredGroupBy struct {
	Path  field.Path  `json:"path"`
	At    *Location   `json:"at,omitempty"`
	Usage *FieldUsage `json:"usage,omitempty"`
}

// Ungrouping records an all() or exclude() so a required group-by on an
// ungrouped field can be found unsatisfiable.  Fields is nil for all()
// with no arguments.
type Ungrouping struct {
	Control string       `json:"control"`
	Fields  []field.Path `json:"fields,omitempty"`
	Usage   []FieldUsage `json:"usage,omitempty"`
	Path    field.Path   `json:"path,omitempty"`
}

// UngroupedBy reports whether u removes path from the grouping.
func (u Ungrouping) UngroupedBy(path field.Path) bool {
	if u.Fields == nil {
		return true
	}
	has := field.List(u.Fields).Has(path)
	if u.Control == "all" {
		return !has
	}
	return has
}

type Filter struct {
	Expr  Expr         `json:"expr"`
	Code  string       `json:"code"`
	Shape Shape        `json:"shape"`
	Usage []FieldUsage `json:"usage,omitempty"`
}

type OrderBy struct {
	Field string `json:"field"`
	Dir   string `json:"dir,omitempty"`
}

// QueryField is an element of a segment's output: a reference to a source
// field, a new atomic field, or a nested view.
type QueryField interface {
	queryFieldNode()
	FieldName() string
}

type FieldRef struct {
	Kind string     `json:"kind" unpack:""`
	Path field.Path `json:"path"`
	At   *Location  `json:"at,omitempty"`
}

func (*FieldRef) queryFieldNode()    {}
func (*AtomicField) queryFieldNode() {}
func (*ViewField) queryFieldNode()   {}

func (f *FieldRef) FieldName() string { return f.Path.Leaf() }

type Segment interface {
	segmentNode()
	Base() *SegmentBase
	SegmentType() string
}

type SegmentBase struct {
	Fields  []QueryField `json:"fields"`
	Filters []*Filter    `json:"filters,omitempty"`
	Limit   int          `json:"limit,omitempty"`
	OrderBy []OrderBy    `json:"order_by,omitempty"`
	// Usage is the segment's own field usage before expansion.
	Usage []FieldUsage `json:"-"`
	// Output is the shape of the segment's results as seen by the next
	// segment.
	Output *SourceDef `json:"-"`
	At     *Location  `json:"-"`
}

func (s *SegmentBase) Base() *SegmentBase { return s }

type (
	Reduce struct {
		Kind string `json:"kind" unpack:""`
		SegmentBase
		Having             []*Filter    `json:"having,omitempty"`
		ExpandedFieldUsage []FieldUsage `json:"expanded_field_usage,omitempty"`
	}
	Project struct {
		Kind string `json:"kind" unpack:""`
		SegmentBase
	}
	Index struct {
		Kind string `json:"kind" unpack:""`
		SegmentBase
	}
)

func (*Reduce) segmentNode()  {}
func (*Project) segmentNode() {}
func (*Index) segmentNode()   {}

func (*Reduce) SegmentType() string  { return "reduce" }
func (*Project) SegmentType() string { return "project" }
func (*Index) SegmentType() string   { return "index" }

// CopySegment returns a shallow copy of seg whose slices may be appended
// to without disturbing seg.
func CopySegment(seg Segment) Segment {
	switch seg := seg.(type) {
	case *Reduce:
		out := *seg
		out.SegmentBase = seg.SegmentBase.clone()
		out.Having = append([]*Filter(nil), seg.Having...)
		return &out
	case *Project:
		out := *seg
		out.SegmentBase = seg.SegmentBase.clone()
		return &out
	case *Index:
		out := *seg
		out.SegmentBase = seg.SegmentBase.clone()
		return &out
	}
	panic("unknown segment type")
}

func (s SegmentBase) clone() SegmentBase {
	s.Fields = append([]QueryField(nil), s.Fields...)
	s.Filters = append([]*Filter(nil), s.Filters...)
	s.OrderBy = append([]OrderBy(nil), s.OrderBy...)
	s.Usage = append([]FieldUsage(nil), s.Usage...)
	return s
}

type Query struct {
	Kind     string     `json:"kind" unpack:""`
	Name     string     `json:"name,omitempty"`
	As       string     `json:"as,omitempty"`
	Source   *SourceDef `json:"source"`
	Pipeline []Segment  `json:"pipeline"`
	// CompositeResolved is the input chosen for a composite source.
	CompositeResolved *SourceDef `json:"composite_resolved,omitempty"`
	Location          *Location  `json:"location,omitempty"`
}

func (*Query) entryNode() {}

func (q *Query) EntryName() string {
	return q.Name
}

// Output returns the shape of the final segment's results.
func (q *Query) Output() *SourceDef {
	if len(q.Pipeline) == 0 {
		return q.Source
	}
	return q.Pipeline[len(q.Pipeline)-1].Base().Output
}
