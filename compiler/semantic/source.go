package semantic

import (
	"fmt"
	"slices"

	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/pkg/field"
)

// semSource translates a source expression.  The result may be modified
// by the caller.  It returns nil if an error was logged.
func (a *analyzer) semSource(e ast.SourceExpr) *model.SourceDef {
	switch e := e.(type) {
	case *ast.TableSource:
		return a.tableSource(e)
	case *ast.SQLSource:
		return a.sqlSource(e.Connection, e.Select, e)
	case *ast.NamedSource:
		return a.namedSource(e.Name)
	case *ast.ComposeSource:
		return a.compose(e)
	case *ast.ExtendSource:
		base := a.semSource(e.Base)
		if base == nil {
			return nil
		}
		return a.extend(derive(base), e.Props)
	case *ast.QuerySource:
		q := a.semQuery(e.Query)
		if q == nil {
			return nil
		}
		return querySource(q)
	}
	panic(fmt.Errorf("semantic: unknown source type %T", e))
}

func columns(schema *model.TableSchema) []model.FieldDef {
	fields := make([]model.FieldDef, 0, len(schema.Columns))
	for _, c := range schema.Columns {
		fields = append(fields, model.NewColumn(c.Name, c.Type))
	}
	return fields
}

func (a *analyzer) tableSource(e *ast.TableSource) *model.SourceDef {
	key := TableKey(e.Connection.Name, e.Table.Text)
	schema, err := a.resolver.Table(key)
	if err != nil {
		a.errorf(e, "failed to get schema for table '%s': %s", key, err)
		return nil
	}
	return &model.SourceDef{
		Kind:       "SourceDef",
		Type:       model.SourceTable,
		Name:       e.Table.Text,
		Connection: e.Connection.Name,
		TablePath:  e.Table.Text,
		Fields:     columns(schema),
		Location:   a.loc(e),
	}
}

func (a *analyzer) sqlSource(conn *ast.ID, sel *ast.String, n ast.Node) *model.SourceDef {
	key := SQLKey(conn.Name, sel.Text)
	schema, err := a.resolver.SQL(key)
	if err != nil {
		a.errorf(n, "failed to get schema for sql block '%s': %s", key, err)
		return nil
	}
	return &model.SourceDef{
		Kind:       "SourceDef",
		Type:       model.SourceSQL,
		Name:       key,
		Connection: conn.Name,
		SelectStr:  sel.Text,
		Fields:     columns(schema),
		Location:   a.loc(n),
	}
}

func (a *analyzer) namedSource(name *ast.ID) *model.SourceDef {
	switch e := a.scope.Lookup(name.Name).(type) {
	case nil:
		a.error(name, undefined(name.Name, a.scope.Names()))
	case *model.SourceDef:
		return e.Copy()
	case *model.SQLBlock:
		return e.Source.Copy()
	case *model.Query:
		return querySource(e)
	default:
		a.errorf(name, "'%s' is not a source", name.Name)
	}
	return nil
}

// querySource is a source whose rows are the results of q.
func querySource(q *model.Query) *model.SourceDef {
	out := q.Output()
	return &model.SourceDef{
		Kind:       "SourceDef",
		Type:       model.SourceQuery,
		Name:       q.Name,
		Connection: q.Source.Connection,
		Query:      q,
		Fields:     slices.Clone(out.Fields),
		DependsOn:  dependsOn(nil, q.Source),
		Location:   q.Location,
	}
}

// compose builds a composite source.  Each atomic field of an input becomes
// a composite field, which must have the same type in every input that
// defines it.  Joins of the same name are composed recursively.
func (a *analyzer) compose(e *ast.ComposeSource) *model.SourceDef {
	var inputs []*model.SourceDef
	var nodes []ast.Node
	for _, src := range e.Sources {
		s := a.semSource(src)
		if s == nil {
			return nil
		}
		inputs = append(inputs, s)
		nodes = append(nodes, src)
	}
	return a.composeSources(inputs, nodes, e)
}

func (a *analyzer) composeSources(inputs []*model.SourceDef, nodes []ast.Node, n ast.Node) *model.SourceDef {
	loc := a.loc(n)
	out := &model.SourceDef{
		Kind:       "SourceDef",
		Type:       model.SourceComposite,
		Name:       "composite_source",
		Connection: inputs[0].Connection,
		Location:   loc,
	}
	fields := make(map[string]*model.AtomicField)
	var order []string
	joins := make(map[string][]*model.JoinField)
	ok := true
	for k, s := range inputs {
		if s.Connection != out.Connection {
			a.errorf(nodes[k], "All sources in a composite source must share the same connection; connection `%s` differs from previous connection `%s`", s.Connection, out.Connection)
			ok = false
		}
		for _, f := range s.Fields {
			switch f := f.(type) {
			case *model.JoinField:
				if _, exists := joins[f.Name]; !exists {
					order = append(order, f.Name)
				}
				joins[f.Name] = append(joins[f.Name], f)
			case *model.AtomicField:
				existing, exists := fields[f.Name]
				if !exists {
					fields[f.Name] = &model.AtomicField{
						Kind:     "AtomicField",
						Name:     f.Name,
						Type:     f.Type,
						Shape:    f.Shape,
						Expr:     &model.CompositeField{Kind: "CompositeField"},
						Usage:    []model.FieldUsage{{Path: field.New(f.Name), At: loc}},
						Location: loc,
					}
					order = append(order, f.Name)
					continue
				}
				if existing.Type != f.Type {
					a.errorf(nodes[k], "field `%s` must have the same type in all composite inputs: `%s` does not match `%s`", f.Name, f.Type, existing.Type)
					ok = false
				}
			case *model.ViewField:
				a.warn(nodes[k], fmt.Sprintf("Only atomic fields are supported in composite sources; field `%s` is not atomic and will be ignored", f.Name))
			}
		}
		out.Candidates = append(out.Candidates, s)
		out.DependsOn = dependsOn(out.DependsOn, s)
	}
	for _, name := range order {
		if f, found := fields[name]; found {
			if _, isJoin := joins[name]; isJoin {
				a.errorf(n, "field `%s` must be a join in all sources or none", name)
				return nil
			}
			out.Fields = append(out.Fields, f)
			continue
		}
		js := joins[name]
		var sources []*model.SourceDef
		var srcNodes []ast.Node
		for _, j := range js {
			sources = append(sources, j.Source)
			srcNodes = append(srcNodes, n)
		}
		composed := a.composeSources(sources, srcNodes, n)
		if composed == nil {
			return nil
		}
		out.Fields = append(out.Fields, &model.JoinField{
			Kind:         "JoinField",
			Name:         name,
			Relationship: js[0].Relationship,
			Source:       composed,
			Location:     loc,
		})
	}
	if !ok {
		return nil
	}
	return out
}

// extend applies the properties of an extend block to s.  Field filters
// apply first and views are compiled last so they can see every field.
func (a *analyzer) extend(s *model.SourceDef, props []ast.SourceProp) *model.SourceDef {
	ok := true
	for _, p := range props {
		if ff, isFilter := p.(*ast.FieldFilter); isFilter {
			ok = a.fieldFilter(s, ff) && ok
		}
	}
	var pkSet bool
	for _, p := range props {
		switch p := p.(type) {
		case *ast.FieldFilter, *ast.ViewDecl:
		case *ast.FieldDecls:
			for _, d := range p.Fields {
				ok = a.fieldDecl(s, d, p.Measure) && ok
			}
		case *ast.JoinDecl:
			ok = a.joinDecl(s, p) && ok
		case *ast.SourceWhere:
			fs := &fieldSpace{source: s}
			for _, e := range p.Exprs {
				f := a.filter("where", e, fs)
				if f == nil {
					ok = false
					continue
				}
				s.Filters = append(s.Filters, f)
			}
		case *ast.PrimaryKey:
			if s.Field(p.Name.Name) == nil {
				a.error(p.Name, undefined(p.Name.Name, fieldNames(s)))
				ok = false
				continue
			}
			if pkSet {
				a.warn(p, "Primary key redefined")
			}
			pkSet = true
			s.PrimaryKey = p.Name.Name
		default:
			panic(fmt.Errorf("semantic: unknown source property %T", p))
		}
	}
	for _, p := range props {
		if v, isView := p.(*ast.ViewDecl); isView {
			ok = a.viewDecl(s, v) && ok
		}
	}
	if !ok {
		return nil
	}
	return s
}

func (a *analyzer) fieldFilter(s *model.SourceDef, ff *ast.FieldFilter) bool {
	names := make(map[string]bool)
	ok := true
	for _, id := range ff.Names {
		if s.Field(id.Name) == nil {
			a.error(id, undefined(id.Name, fieldNames(s)))
			ok = false
			continue
		}
		names[id.Name] = true
	}
	s.Fields = slices.DeleteFunc(s.Fields, func(f model.FieldDef) bool {
		return names[f.FieldName()] != ff.Accept
	})
	return ok
}

func (a *analyzer) checkNew(s *model.SourceDef, name *ast.ID) bool {
	if s.Field(name.Name) != nil {
		a.errorf(name, "Cannot redefine '%s'", name.Name)
		return false
	}
	return true
}

func (a *analyzer) fieldDecl(s *model.SourceDef, d *ast.FieldDecl, measure bool) bool {
	if !a.checkNew(s, d.Name) {
		return false
	}
	v := a.compileExpr(d.Expr, &fieldSpace{source: s, defining: d.Name.Name})
	op := "dimension"
	if measure {
		op = "measure"
	}
	if !a.checkShape(op, v, d.Expr) {
		return false
	}
	f := &model.AtomicField{
		Kind:        "AtomicField",
		Name:        d.Name.Name,
		Type:        v.typ,
		Shape:       v.shape,
		Expr:        v.expr,
		Usage:       v.usage,
		Ungroupings: v.ungroupings,
		Location:    a.loc(d),
	}
	for _, p := range d.GroupedBy {
		if a.resolvePath(p, s) == nil {
			return false
		}
		f.RequiresGroupBy = append(f.RequiresGroupBy, model.RequiredGroupBy{Path: p.FieldPath(), At: a.loc(p)})
	}
	s.Fields = append(s.Fields, f)
	return true
}

func (a *analyzer) joinDecl(s *model.SourceDef, d *ast.JoinDecl) bool {
	if !a.checkNew(s, d.Name) {
		return false
	}
	var js *model.SourceDef
	if d.Source != nil {
		js = a.semSource(d.Source)
	} else {
		js = a.namedSource(d.Name)
	}
	if js == nil {
		return false
	}
	j := &model.JoinField{
		Kind:         "JoinField",
		Name:         d.Name.Name,
		Relationship: d.Relationship,
		Source:       js,
		Location:     a.loc(d),
	}
	s.Fields = append(s.Fields, j)
	s.DependsOn = dependsOn(s.DependsOn, js)
	if d.With != nil {
		if d.Relationship != "one" {
			a.error(d, "Foreign key join not legal in join_many:")
			return a.dropField(s, j.Name)
		}
		if js.PrimaryKey == "" {
			a.errorf(d, "join_one: Cannot use with unless source '%s' has a primary key", d.Name.Name)
			return a.dropField(s, j.Name)
		}
		if js.Field(js.PrimaryKey) == nil {
			a.errorf(d, "join_one: Primary key '%s' not found in source", js.PrimaryKey)
			return a.dropField(s, j.Name)
		}
		v := a.compilePath(d.With, &fieldSpace{source: s})
		if v.isError() {
			return a.dropField(s, j.Name)
		}
		pk := field.Path{j.Name, js.PrimaryKey}
		j.On = &model.Binary{Kind: "Binary", Op: "=", LHS: v.expr, RHS: model.NewField(pk)}
		j.OnUsage = model.MergeUsage(v.usage, []model.FieldUsage{{Path: pk, At: a.loc(d.With)}})
		return true
	}
	v := a.compileExpr(d.On, &fieldSpace{source: s})
	if v.isError() {
		return a.dropField(s, j.Name)
	}
	if v.typ != model.TypeBoolean {
		a.error(d.On, "Join condition must be boolean")
		return a.dropField(s, j.Name)
	}
	j.On = v.expr
	j.OnUsage = v.usage
	return true
}

func (a *analyzer) dropField(s *model.SourceDef, name string) bool {
	s.Fields = slices.DeleteFunc(s.Fields, func(f model.FieldDef) bool {
		return f.FieldName() == name
	})
	return false
}

func (a *analyzer) viewDecl(s *model.SourceDef, d *ast.ViewDecl) bool {
	if !a.checkNew(s, d.Name) {
		return false
	}
	pipeline := a.compileView(d.View, s, "")
	if pipeline == nil {
		return false
	}
	s.Fields = append(s.Fields, &model.ViewField{
		Kind:     "ViewField",
		Name:     d.Name.Name,
		Pipeline: pipeline,
		Location: a.loc(d),
	})
	return true
}
