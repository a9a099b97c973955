// Package describe summarizes the queries of a translated model: where
// their rows come from, which composite input was chosen, and the fields
// each stage uses.
package describe

import (
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/pkg/field"
)

type Info struct {
	Queries []Query `json:"queries"`
}

type Query struct {
	// Name is empty for a run: query.
	Name      string   `json:"name,omitempty"`
	Source    Source   `json:"source"`
	Resolved  Source   `json:"resolved,omitempty"`
	Stages    []Stage  `json:"stages"`
	DependsOn []string `json:"depends_on,omitempty"`
}

type Stage struct {
	Kind            string     `json:"kind"`
	AggregationKeys field.List `json:"aggregation_keys"`
	Usage           field.List `json:"usage"`
	Limit           int        `json:"limit,omitempty"`
}

type Source interface {
	Source()
}

type (
	Table struct {
		Kind       string `json:"kind"`
		Connection string `json:"connection"`
		Path       string `json:"path"`
	}
	SQL struct {
		Kind       string `json:"kind"`
		Connection string `json:"connection"`
		Select     string `json:"select"`
	}
	Composite struct {
		Kind       string   `json:"kind"`
		Candidates []Source `json:"candidates"`
	}
	QueryResult struct {
		Kind  string `json:"kind"`
		Query Query  `json:"query"`
	}
)

func (*Table) Source()       {}
func (*SQL) Source()         {}
func (*Composite) Source()   {}
func (*QueryResult) Source() {}

// Analyze describes the named queries of m in definition order followed
// by its run: queries.
func Analyze(m *model.ModelDef) *Info {
	var info Info
	for _, name := range m.Order {
		if q, ok := m.Contents[name].(*model.Query); ok {
			info.Queries = append(info.Queries, describeQuery(name, q))
		}
	}
	for _, q := range m.QueryList {
		info.Queries = append(info.Queries, describeQuery("", q))
	}
	return &info
}

func describeQuery(name string, q *model.Query) Query {
	out := Query{
		Name:      name,
		Source:    describeSource(q.Source),
		DependsOn: q.Source.DependsOn,
	}
	input := q.Source
	if q.CompositeResolved != nil {
		out.Resolved = describeSource(q.CompositeResolved)
		input = q.CompositeResolved
	}
	for _, seg := range q.Pipeline {
		out.Stages = append(out.Stages, describeStage(seg, input))
		input = seg.Base().Output
	}
	return out
}

func describeSource(s *model.SourceDef) Source {
	switch s.Type {
	case model.SourceTable:
		return &Table{Kind: "Table", Connection: s.Connection, Path: s.TablePath}
	case model.SourceSQL:
		return &SQL{Kind: "SQL", Connection: s.Connection, Select: s.SelectStr}
	case model.SourceComposite:
		var candidates []Source
		for _, c := range s.Candidates {
			candidates = append(candidates, describeSource(c))
		}
		return &Composite{Kind: "Composite", Candidates: candidates}
	case model.SourceQuery:
		if s.Query != nil {
			return &QueryResult{Kind: "QueryResult", Query: describeQuery("", s.Query)}
		}
	}
	return nil
}

func describeStage(seg model.Segment, input *model.SourceDef) Stage {
	base := seg.Base()
	// The key list of a reduce with no group-by fields is an empty slice
	// and not nil.
	var keys field.List
	usage := base.Usage
	if r, ok := seg.(*model.Reduce); ok {
		keys = field.List{}
		for _, f := range base.Fields {
			if ref, ok := f.(*model.FieldRef); ok && isDimension(input, ref.Path) {
				keys = append(keys, ref.Path)
			}
			if a, ok := f.(*model.AtomicField); ok && a.Shape == model.Scalar {
				keys = append(keys, field.New(a.Name))
			}
		}
		if r.ExpandedFieldUsage != nil {
			usage = r.ExpandedFieldUsage
		}
	}
	stage := Stage{
		Kind:            seg.SegmentType(),
		AggregationKeys: keys,
		Usage:           field.List{},
		Limit:           base.Limit,
	}
	for _, u := range usage {
		if len(u.Path) > 0 {
			stage.Usage = stage.Usage.Append(u.Path)
		}
	}
	return stage
}

func isDimension(input *model.SourceDef, path field.Path) bool {
	f, ok := input.Lookup(path).(*model.AtomicField)
	return ok && f.Shape == model.Scalar
}
