// Package sfmt renders translated models as deterministic text for tests
// and the command line.
package sfmt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/brimdata/semq/compiler/model"
)

// Model formats the entries of m in definition order followed by its
// run: queries.
func Model(m *model.ModelDef) string {
	c := newCanon()
	for _, name := range m.Order {
		c.entry(name, m.Contents[name], slices.Contains(m.Exports, name))
	}
	for _, q := range m.QueryList {
		c.query("run:", q)
	}
	c.flush()
	return c.String()
}

func Query(q *model.Query) string {
	c := newCanon()
	c.query("run:", q)
	c.flush()
	return c.String()
}

func Source(s *model.SourceDef) string {
	c := newCanon()
	c.source(s.Name, s, true)
	c.flush()
	return c.String()
}

func Expr(e model.Expr) string {
	c := newCanon()
	c.expr(e, "")
	return c.String()
}

type canon struct {
	shared
}

func newCanon() *canon {
	return &canon{shared: shared{formatter{tab: 2}}}
}

func (c *canon) entry(name string, e model.Entry, exported bool) {
	switch e := e.(type) {
	case *model.SourceDef:
		c.source(name, e, exported)
	case *model.Query:
		c.query(fmt.Sprintf("query: %s%s is", name, private(exported)), e)
	case *model.SQLBlock:
		c.line("sql: %s%s is %s.sql(%q)", name, private(exported), e.Source.Connection, e.Source.SelectStr)
		c.open()
		c.fields(e.Source.Fields)
		c.close()
	case *model.Function:
		c.line("function: %s", name)
	default:
		c.line("unknown entry %T", e)
	}
}

func private(exported bool) string {
	if exported {
		return ""
	}
	return " (private)"
}

func (c *canon) source(name string, s *model.SourceDef, exported bool) {
	if s.Persist {
		c.line("#@ persist %s", s.SourceID)
	}
	c.line("source: %s%s is %s", name, private(exported), origin(s))
	c.open()
	c.sourceBody(s)
	c.close()
}

func origin(s *model.SourceDef) string {
	switch s.Type {
	case model.SourceTable:
		return fmt.Sprintf("%s.table('%s')", s.Connection, s.TablePath)
	case model.SourceSQL:
		return fmt.Sprintf("%s.sql(%q)", s.Connection, s.SelectStr)
	case model.SourceComposite:
		return "compose"
	case model.SourceQuery:
		return "query"
	case model.SourceQueryOutput:
		return "query_result"
	}
	return string(s.Type)
}

func (c *canon) sourceBody(s *model.SourceDef) {
	if len(s.DependsOn) > 0 {
		c.line("depends_on: %s", strings.Join(s.DependsOn, ", "))
	}
	if s.PrimaryKey != "" {
		c.line("primary_key: %s", s.PrimaryKey)
	}
	for _, f := range s.Filters {
		c.line("where: %s", f.Code)
	}
	if s.Query != nil {
		c.query("from:", s.Query)
	}
	for k, candidate := range s.Candidates {
		c.line("candidate %d: %s", k, origin(candidate))
		c.open()
		c.sourceBody(candidate)
		c.close()
	}
	c.fields(s.Fields)
}

func (c *canon) fields(fields []model.FieldDef) {
	for _, f := range fields {
		c.field(f)
	}
}

func (c *canon) field(f model.FieldDef) {
	switch f := f.(type) {
	case *model.AtomicField:
		c.writeTab()
		switch {
		case f.Expr == nil:
			c.write("%s %s", f.Name, f.Type)
		case f.Shape.IsAggregate():
			c.write("measure: %s %s = ", f.Name, f.Type)
			c.expr(f.Expr, "")
		default:
			c.write("dimension: %s %s = ", f.Name, f.Type)
			c.expr(f.Expr, "")
		}
		if len(f.RequiresGroupBy) > 0 {
			c.write(" {grouped_by: ")
			for k, rgb := range f.RequiresGroupBy {
				if k > 0 {
					c.write(", ")
				}
				c.fieldpath(rgb.Path)
			}
			c.write("}")
		}
		c.ret()
	case *model.JoinField:
		c.writeTab()
		c.write("join_%s: %s is %s", f.Relationship, f.Name, origin(f.Source))
		if f.On != nil {
			c.write(" on ")
			c.expr(f.On, "")
		}
		c.ret()
		c.open()
		c.sourceBody(f.Source)
		c.close()
	case *model.ViewField:
		c.line("view: %s", f.Name)
		c.open()
		c.pipeline(f.Pipeline)
		c.close()
	default:
		c.line("unknown field %T", f)
	}
}

func (c *canon) query(head string, q *model.Query) {
	c.line("%s %s", head, origin(q.Source))
	c.open()
	if q.Source.Name != "" {
		c.line("source: %s", q.Source.Name)
	}
	if q.CompositeResolved != nil {
		c.line("resolved: %s", origin(q.CompositeResolved))
	}
	c.pipeline(q.Pipeline)
	c.close()
}

func (c *canon) pipeline(pipeline []model.Segment) {
	for _, seg := range pipeline {
		c.segment(seg)
	}
}

func (c *canon) segment(seg model.Segment) {
	c.line("-> %s", seg.SegmentType())
	c.open()
	base := seg.Base()
	for _, f := range base.Filters {
		c.line("where: %s", f.Code)
	}
	for _, f := range base.Fields {
		c.queryField(f)
	}
	if r, ok := seg.(*model.Reduce); ok {
		for _, f := range r.Having {
			c.line("having: %s", f.Code)
		}
	}
	for _, o := range base.OrderBy {
		if o.Dir != "" {
			c.line("order_by: %s %s", o.Field, o.Dir)
		} else {
			c.line("order_by: %s", o.Field)
		}
	}
	if base.Limit > 0 {
		c.line("limit: %d", base.Limit)
	}
	c.close()
}

func (c *canon) queryField(f model.QueryField) {
	switch f := f.(type) {
	case *model.FieldRef:
		c.writeTab()
		c.fieldpath(f.Path)
		c.ret()
	case *model.AtomicField:
		c.writeTab()
		c.write("%s = ", f.Name)
		c.expr(f.Expr, "")
		c.ret()
	case *model.ViewField:
		c.line("nest: %s", f.Name)
		c.open()
		c.pipeline(f.Pipeline)
		c.close()
	default:
		c.line("unknown query field %T", f)
	}
}
