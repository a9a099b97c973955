package semantic

import (
	"fmt"
	"slices"

	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/pkg/field"
)

// segmentKinds maps each segment property to the kind of segment it
// implies.  where:, limit:, and order_by: are legal in any segment.
var segmentKinds = map[string]string{
	"group_by":  "reduce",
	"aggregate": "reduce",
	"calculate": "reduce",
	"nest":      "reduce",
	"having":    "reduce",
	"select":    "project",
	"index":     "index",
}

// indexOutput is the fixed schema of the rows produced by an index segment.
func indexOutput(connection string) *model.SourceDef {
	return &model.SourceDef{
		Kind:       "SourceDef",
		Type:       model.SourceQueryOutput,
		Name:       "query_result",
		Connection: connection,
		Fields: []model.FieldDef{
			model.NewColumn("fieldName", model.TypeString),
			model.NewColumn("fieldPath", model.TypeString),
			model.NewColumn("fieldValue", model.TypeString),
			model.NewColumn("fieldType", model.TypeString),
			model.NewColumn("fieldRange", model.TypeString),
			model.NewColumn("weight", model.TypeNumber),
		},
	}
}

type pendingCalc struct {
	slot int
	name string
	item *ast.QueryItem
}

// segmentBuilder accumulates the properties of a single segment.  Fields
// and their output columns are kept in parallel slots so that calculate:
// items, which are compiled after everything else, keep their textual
// position.
type segmentBuilder struct {
	a       *analyzer
	input   *model.SourceDef
	base    model.Segment
	kind    string
	fields  []model.QueryField
	columns []model.FieldDef
	names   map[string]bool
	filters []*model.Filter
	having  []*model.Filter
	limit   int
	orderBy []model.OrderBy
	ok      bool

	calcs   []pendingCalc
	havings []*ast.Filter
	orders  *ast.OrderBy
}

func (a *analyzer) newSegmentBuilder(input *model.SourceDef, base model.Segment) *segmentBuilder {
	return &segmentBuilder{
		a:     a,
		input: input,
		base:  base,
		names: make(map[string]bool),
		ok:    true,
	}
}

// compileSegment compiles props into one segment over input.  base is
// the segment being refined, if any, and supplies the segment kind when
// props do not imply one as well as the outputs visible to having:,
// calculate:, and order_by:.
func (a *analyzer) compileSegment(props []ast.SegmentProp, n ast.Node, input *model.SourceDef, base model.Segment) model.Segment {
	b := a.newSegmentBuilder(input, base)
	for _, p := range props {
		b.prop(p)
	}
	if b.ok {
		b.finish()
	}
	if !b.ok {
		return nil
	}
	return b.segment(n, len(props) == 0)
}

func (b *segmentBuilder) setKind(op string, n ast.Node) bool {
	kind := segmentKinds[op]
	if b.kind == "" {
		b.kind = kind
		return true
	}
	if b.kind != kind {
		b.a.errorf(n, "Cannot add %s: to a %s segment", op, b.kind)
		b.ok = false
		return false
	}
	return true
}

func (b *segmentBuilder) prop(p ast.SegmentProp) {
	switch p := p.(type) {
	case *ast.FieldList:
		if !b.setKind(p.Op, p) {
			return
		}
		for _, item := range p.Items {
			b.item(p.Op, item)
		}
	case *ast.Nest:
		if b.setKind("nest", p) {
			b.nest(p)
		}
	case *ast.Filter:
		if p.Op == "having" {
			if b.setKind("having", p) {
				b.havings = append(b.havings, p)
			}
			return
		}
		fs := &fieldSpace{source: b.input}
		for _, e := range p.Exprs {
			f := b.a.filter("where", e, fs)
			if f == nil {
				b.ok = false
				continue
			}
			b.filters = append(b.filters, f)
		}
	case *ast.Limit:
		if b.limit > 0 {
			b.a.error(p, "Query operation already limited")
			b.ok = false
			return
		}
		b.limit = p.Value
	case *ast.OrderBy:
		if b.orders != nil {
			b.a.error(p, "Query operation already sorted")
			b.ok = false
			return
		}
		b.orders = p
	default:
		panic(fmt.Errorf("semantic: unknown segment property %T", p))
	}
}

func (b *segmentBuilder) add(name string, n ast.Node, f model.QueryField, column model.FieldDef) bool {
	if b.names[name] {
		b.a.errorf(n, "Cannot redefine '%s'", name)
		b.ok = false
		return false
	}
	b.names[name] = true
	b.fields = append(b.fields, f)
	b.columns = append(b.columns, column)
	return true
}

func (b *segmentBuilder) item(op string, item *ast.QueryItem) {
	if item.Star || item.Wildcard != nil {
		b.wildcard(op, item)
		return
	}
	if op == "calculate" {
		var name string
		if item.Name != nil {
			name = item.Name.Name
		} else if p, ok := item.Expr.(*ast.Path); ok {
			name = p.FieldPath().Leaf()
		} else {
			b.a.errorf(item, "Expressions in %s: must be named", op)
			b.ok = false
			return
		}
		// Reserve the slot; the expression is compiled once all other
		// outputs are known.
		if b.add(name, item, nil, nil) {
			b.calcs = append(b.calcs, pendingCalc{slot: len(b.fields) - 1, name: name, item: item})
		}
		return
	}
	fs := &fieldSpace{source: b.input}
	if item.Name == nil {
		p, ok := item.Expr.(*ast.Path)
		if !ok {
			b.a.errorf(item, "Expressions in %s: must be named", op)
			b.ok = false
			return
		}
		v := b.a.compilePath(p, fs)
		if !b.a.checkShape(op, v, p) {
			b.ok = false
			return
		}
		path := p.FieldPath()
		ref := &model.FieldRef{Kind: "FieldRef", Path: path, At: b.a.loc(p)}
		b.add(path.Leaf(), p, ref, model.NewColumn(path.Leaf(), v.typ))
		return
	}
	fs.defining = item.Name.Name
	v := b.a.compileExpr(item.Expr, fs)
	if !b.a.checkShape(op, v, item.Expr) {
		b.ok = false
		return
	}
	f := b.atomic(item, v)
	b.add(f.Name, item.Name, f, model.NewColumn(f.Name, f.Type))
}

func (b *segmentBuilder) atomic(item *ast.QueryItem, v exprValue) *model.AtomicField {
	return &model.AtomicField{
		Kind:        "AtomicField",
		Name:        item.Name.Name,
		Type:        v.typ,
		Shape:       v.shape,
		Expr:        v.expr,
		Usage:       v.usage,
		Ungroupings: v.ungroupings,
		Location:    b.a.loc(item),
	}
}

// wildcard expands "*" or "j.*" to every scalar field of the input (or of
// the join) not already named in the segment.
func (b *segmentBuilder) wildcard(op string, item *ast.QueryItem) {
	if op != "select" && op != "index" {
		b.a.errorf(item, "Wildcards are not allowed in %s:", op)
		b.ok = false
		return
	}
	s := b.input
	var prefix field.Path
	if item.Wildcard != nil {
		f := b.a.resolvePath(item.Wildcard, b.input)
		j, ok := f.(*model.JoinField)
		if !ok {
			if f != nil {
				b.a.errorf(item.Wildcard, "'%s' is not a join", item.Wildcard)
			}
			b.ok = false
			return
		}
		s = j.Source
		prefix = item.Wildcard.FieldPath()
	}
	at := b.a.loc(item)
	for _, f := range s.Fields {
		atomic, ok := f.(*model.AtomicField)
		if !ok || atomic.Shape != model.Scalar || b.names[atomic.Name] {
			continue
		}
		path := append(slices.Clone(prefix), atomic.Name)
		b.names[atomic.Name] = true
		b.fields = append(b.fields, &model.FieldRef{Kind: "FieldRef", Path: path, At: at})
		b.columns = append(b.columns, model.NewColumn(atomic.Name, atomic.Type))
	}
}

func (b *segmentBuilder) nest(n *ast.Nest) {
	view := n.View
	if view == nil {
		view = &ast.ViewRef{Kind: "ViewRef", Name: n.Name, Loc: n.Name.Loc}
	}
	pipeline := b.a.compileView(view, b.input, "")
	if pipeline == nil {
		b.ok = false
		return
	}
	name := n.Name.Name
	out := pipeline[len(pipeline)-1].Base().Output.Copy()
	out.Name = name
	vf := &model.ViewField{
		Kind:     "ViewField",
		Name:     name,
		Pipeline: pipeline,
		Location: b.a.loc(n),
	}
	column := &model.JoinField{
		Kind:         "JoinField",
		Name:         name,
		Relationship: "many",
		Source:       out,
	}
	b.add(name, n.Name, vf, column)
}

// visible is the output space seen by calculate:, having:, and order_by:.
func (b *segmentBuilder) visible() *model.SourceDef {
	out := &model.SourceDef{Kind: "SourceDef", Type: model.SourceQueryOutput}
	if b.base != nil {
		out.Fields = slices.Clone(b.base.Base().Output.Fields)
	}
	for _, c := range b.columns {
		if c != nil {
			out.Fields = append(out.Fields, c)
		}
	}
	return out
}

func (b *segmentBuilder) finish() {
	outputs := b.visible()
	for _, calc := range b.calcs {
		item := calc.item
		fs := &fieldSpace{source: b.input, outputs: outputs}
		if item.Name != nil {
			fs.defining = item.Name.Name
		}
		v := b.a.compileExpr(item.Expr, fs)
		if !b.a.checkShape("calculate", v, item.Expr) {
			b.ok = false
			continue
		}
		f := &model.AtomicField{
			Kind:        "AtomicField",
			Name:        calc.name,
			Type:        v.typ,
			Shape:       v.shape,
			Expr:        v.expr,
			Usage:       analyticUsage(v.usage),
			Ungroupings: v.ungroupings,
			Location:    b.a.loc(item),
		}
		column := model.NewColumn(f.Name, f.Type)
		b.fields[calc.slot] = f
		b.columns[calc.slot] = column
		outputs.Fields = append(outputs.Fields, column)
	}
	for _, h := range b.havings {
		fs := &fieldSpace{source: b.input, outputs: outputs}
		for _, e := range h.Exprs {
			f := b.a.filter("having", e, fs)
			if f == nil {
				b.ok = false
				continue
			}
			b.having = append(b.having, f)
		}
	}
	if b.orders != nil {
		for _, item := range b.orders.Items {
			if outputs.Field(item.Field.Name) == nil {
				b.a.errorf(item.Field, "Unknown field '%s' in output space", item.Field.Name)
				b.ok = false
				continue
			}
			b.orderBy = append(b.orderBy, model.OrderBy{Field: item.Field.Name, Dir: item.Dir})
		}
	}
}

// analyticUsage marks usage from calculate: so it is never expanded
// through a join.
func analyticUsage(usage []model.FieldUsage) []model.FieldUsage {
	out := make([]model.FieldUsage, 0, len(usage))
	for _, u := range usage {
		u.AnalyticFunctionUse = true
		out = append(out, u)
	}
	return out
}

func (b *segmentBuilder) segment(n ast.Node, empty bool) model.Segment {
	kind := b.kind
	if kind == "" {
		switch {
		case b.base != nil:
			kind = b.base.SegmentType()
		case empty:
			b.a.warn(n, "View has no fields")
			kind = "reduce"
		default:
			b.a.error(n, "Can't determine view type (`group_by` / `aggregate` / `nest`, `select`, `index`)")
			return nil
		}
	}
	base := model.SegmentBase{
		Fields:  b.fields,
		Filters: b.filters,
		Limit:   b.limit,
		OrderBy: b.orderBy,
	}
	if base.Fields == nil {
		base.Fields = []model.QueryField{}
	}
	var seg model.Segment
	switch kind {
	case "reduce":
		seg = &model.Reduce{Kind: "Reduce", SegmentBase: base, Having: b.having}
	case "project":
		seg = &model.Project{Kind: "Project", SegmentBase: base}
	case "index":
		seg = &model.Index{Kind: "Index", SegmentBase: base}
	default:
		panic(fmt.Errorf("semantic: unknown segment kind %q", kind))
	}
	out := seg.Base()
	if kind == "index" {
		out.Output = indexOutput(b.input.Connection)
	} else {
		out.Output = &model.SourceDef{
			Kind:       "SourceDef",
			Type:       model.SourceQueryOutput,
			Name:       "query_result",
			Connection: b.input.Connection,
			Fields:     b.columns,
		}
	}
	out.Usage = segmentUsage(seg)
	return seg
}

// compileView compiles a view expression against input into a pipeline.
// kindHint is the kind of segment a field used as a view should become,
// or empty for the default.
func (a *analyzer) compileView(v ast.ViewExpr, input *model.SourceDef, kindHint string) []model.Segment {
	switch v := v.(type) {
	case *ast.SegmentView:
		seg := a.compileSegment(v.Props, v, input, nil)
		if seg == nil {
			return nil
		}
		return []model.Segment{seg}
	case *ast.ViewRef:
		switch f := input.Field(v.Name.Name).(type) {
		case nil:
			a.error(v.Name, undefined(v.Name.Name, fieldNames(input)))
		case *model.ViewField:
			pipeline := slices.Clone(f.Pipeline)
			pipeline[0] = relocate(pipeline[0], a.loc(v))
			return pipeline
		case *model.AtomicField:
			if seg := a.lens(v, f, input, kindHint); seg != nil {
				return []model.Segment{seg}
			}
		default:
			a.errorf(v.Name, "'%s' is not a view", v.Name.Name)
		}
		return nil
	case *ast.ViewRefine:
		pipeline := a.compileView(v.Base, input, kindHint)
		if pipeline == nil {
			return nil
		}
		return a.refine(pipeline, v.Refinement, input)
	case *ast.ViewArrow:
		head := a.compileView(v.Base, input, kindHint)
		if head == nil {
			return nil
		}
		tail := a.compileView(v.Next, head[len(head)-1].Base().Output, "")
		if tail == nil {
			return nil
		}
		return slices.Concat(head, tail)
	}
	panic(fmt.Errorf("semantic: unknown view type %T", v))
}

// lens turns a reference to a field used as a view into a one-field
// segment: a dimension is grouped by (or selected or indexed when the
// hint says so) and a measure is aggregated.
func (a *analyzer) lens(ref *ast.ViewRef, f *model.AtomicField, input *model.SourceDef, kindHint string) model.Segment {
	op := "group_by"
	switch {
	case f.Shape.IsAggregate():
		op = "aggregate"
	case kindHint == "project":
		op = "select"
	case kindHint == "index":
		op = "index"
	}
	path := &ast.Path{Kind: "Path", Elems: []*ast.ID{ref.Name}, Loc: ref.Name.Loc}
	list := &ast.FieldList{
		Kind:  "FieldList",
		Op:    op,
		Items: []*ast.QueryItem{{Kind: "QueryItem", Expr: path, Loc: ref.Loc}},
		Loc:   ref.Loc,
	}
	return a.compileSegment([]ast.SegmentProp{list}, ref, input, nil)
}

// semQuery compiles a query expression.  The result is always a fresh
// query which the caller may modify.
func (a *analyzer) semQuery(e ast.QueryExpr) *model.Query {
	switch e := e.(type) {
	case *ast.QueryRef:
		switch entry := a.scope.Lookup(e.Name.Name).(type) {
		case nil:
			a.error(e.Name, undefined(e.Name.Name, a.scope.Names()))
		case *model.Query:
			q := *entry
			q.Pipeline = slices.Clone(entry.Pipeline)
			return &q
		default:
			a.error(e, "Cannot run this object as a query")
		}
		return nil
	case *ast.FromSource:
		a.error(e, "Cannot run this object as a query")
		return nil
	case *ast.Arrow:
		if src, ok := a.querySourceHead(e.Base); ok {
			if src == nil {
				return nil
			}
			pipeline := a.compileView(e.View, src, "")
			if pipeline == nil {
				return nil
			}
			return a.finishQuery(&model.Query{Kind: "Query", Source: src, Pipeline: pipeline}, e)
		}
		q := a.semQuery(e.Base)
		if q == nil {
			return nil
		}
		tail := a.compileView(e.View, q.Output(), "")
		if tail == nil {
			return nil
		}
		q.Name = ""
		q.Pipeline = append(q.Pipeline, tail...)
		return a.finishQuery(q, e)
	case *ast.Refine:
		if _, ok := a.querySourceHead(e.Base); ok {
			a.error(e.Base, "Cannot refine a source")
			return nil
		}
		q := a.semQuery(e.Base)
		if q == nil {
			return nil
		}
		pipeline := a.refine(q.Pipeline, e.Refinement, q.Source)
		if pipeline == nil {
			return nil
		}
		q.Name = ""
		q.Pipeline = pipeline
		return a.finishQuery(q, e)
	}
	panic(fmt.Errorf("semantic: unknown query type %T", e))
}

// querySourceHead reports whether e, at the head of an arrow, names a
// source rather than a query.  The returned source is nil if it failed
// to compile.
func (a *analyzer) querySourceHead(e ast.QueryExpr) (*model.SourceDef, bool) {
	switch e := e.(type) {
	case *ast.QueryRef:
		switch entry := a.scope.Lookup(e.Name.Name).(type) {
		case *model.SourceDef:
			return entry.Copy(), true
		case *model.SQLBlock:
			return entry.Source.Copy(), true
		case *model.Function:
			a.errorf(e.Name, "'%s' is a function, not a source", e.Name.Name)
			return nil, true
		}
	case *ast.FromSource:
		return a.semSource(e.Source), true
	}
	return nil, false
}

// finishQuery resolves a composite source against the first segment,
// checks required group-bys otherwise, and records the expanded usage of
// every reduce segment.
func (a *analyzer) finishQuery(q *model.Query, n ast.Node) *model.Query {
	input := q.Source
	q.CompositeResolved = nil
	if q.Source.IsComposite() {
		resolved, err := resolveQuerySource(q.Source, q.Pipeline[0])
		if err != nil {
			a.compositeError(err, n)
			return nil
		}
		if resolved != nil {
			q.CompositeResolved = resolved
			input = resolved
		}
	} else if !a.checkRequiredGroupBys(q.Source, q.Pipeline[0], n) {
		return nil
	}
	pipeline := make([]model.Segment, 0, len(q.Pipeline))
	for k, seg := range q.Pipeline {
		if k > 0 {
			input = q.Pipeline[k-1].Base().Output
		}
		if r, ok := seg.(*model.Reduce); ok {
			r = model.CopySegment(r).(*model.Reduce)
			r.ExpandedFieldUsage, _, _ = expandFieldUsage(model.MergeUsage(filterUsage(input), r.Usage), input.Fields)
			seg = r
		}
		pipeline = append(pipeline, seg)
	}
	q.Pipeline = pipeline
	return q
}
