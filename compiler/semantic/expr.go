package semantic

import (
	"fmt"
	"slices"

	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/pkg/field"
)

// exprValue is the result of compiling an expression: its translation
// together with everything the classifier and usage tracker need to know
// about it.
type exprValue struct {
	typ         model.DataType
	shape       model.Shape
	space       model.EvalSpace
	expr        model.Expr
	usage       []model.FieldUsage
	ungroupings []model.Ungrouping
}

func errorValue() exprValue {
	return exprValue{typ: model.TypeError, expr: model.NewBadExpr()}
}

func (v exprValue) isError() bool {
	return v.typ == model.TypeError
}

// fieldSpace is the set of names an expression can refer to.  When outputs
// is non-nil, single names are first looked up among the outputs of the
// segment being built.  defining is the name of the field whose definition
// is being compiled, if any.
type fieldSpace struct {
	source   *model.SourceDef
	outputs  *model.SourceDef
	defining string
}

func (a *analyzer) compileExpr(e ast.Expr, fs *fieldSpace) exprValue {
	switch e := e.(type) {
	case *ast.Literal:
		return exprValue{
			typ:  model.DataType(e.Type),
			expr: model.NewLiteral(model.DataType(e.Type), e.Value),
		}
	case *ast.ParenExpr:
		return a.compileExpr(e.Expr, fs)
	case *ast.Path:
		return a.compilePath(e, fs)
	case *ast.UnaryExpr:
		return a.compileUnary(e, fs)
	case *ast.BinaryExpr:
		return a.compileBinary(e, fs)
	case *ast.CallExpr:
		switch e.Func.Name {
		case "all", "exclude":
			return a.compileUngroup(e, fs)
		}
		return a.compileCall(e, fs)
	case *ast.AggCall:
		return a.compileAggCall(e, fs)
	}
	panic(fmt.Errorf("semantic: unknown expression type %T", e))
}

func (a *analyzer) compilePath(p *ast.Path, fs *fieldSpace) exprValue {
	path := p.FieldPath()
	if fs.defining != "" && len(path) == 1 && path[0] == fs.defining {
		a.errorf(p, "Circular reference to '%s' in definition", fs.defining)
		return errorValue()
	}
	if fs.outputs != nil && len(path) == 1 {
		if f, ok := fs.outputs.Field(path[0]).(*model.AtomicField); ok {
			return exprValue{
				typ:   f.Type,
				space: model.SpaceOutput,
				expr:  &model.OutputField{Kind: "OutputField", Name: f.Name},
			}
		}
	}
	f := a.resolvePath(p, fs.source)
	switch f := f.(type) {
	case nil:
		return errorValue()
	case *model.JoinField:
		a.errorf(p, "'%s' is a join and cannot be used as a value", path)
		return errorValue()
	case *model.ViewField:
		return exprValue{
			typ:   model.TypeView,
			space: model.SpaceInput,
			expr:  model.NewField(path),
			usage: []model.FieldUsage{{Path: path, At: a.loc(p)}},
		}
	case *model.AtomicField:
		space := model.SpaceInput
		if f.Shape.IsAggregate() {
			space = model.SpaceOutput
		}
		return exprValue{
			typ:   f.Type,
			shape: f.Shape,
			space: space,
			expr:  model.NewField(path),
			usage: []model.FieldUsage{{Path: path, At: a.loc(p)}},
		}
	}
	return errorValue()
}

// resolvePath looks up p through the joins of s, logging an error and
// returning nil if it does not resolve.
func (a *analyzer) resolvePath(p *ast.Path, s *model.SourceDef) model.FieldDef {
	cur := s
	for k, id := range p.Elems {
		f := cur.Field(id.Name)
		if f == nil {
			a.error(id, undefined(id.Name, fieldNames(cur)))
			return nil
		}
		if k == len(p.Elems)-1 {
			return f
		}
		j, ok := f.(*model.JoinField)
		if !ok {
			a.errorf(p.Elems[k+1], "'%s' cannot contain a '%s'", id.Name, p.Elems[k+1].Name)
			return nil
		}
		cur = j.Source
	}
	return nil
}

func fieldNames(s *model.SourceDef) []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.FieldName())
	}
	return names
}

func (a *analyzer) compileUnary(e *ast.UnaryExpr, fs *fieldSpace) exprValue {
	v := a.compileExpr(e.Operand, fs)
	want := model.TypeNumber
	if e.Op == "not" {
		want = model.TypeBoolean
	}
	if !v.isError() && v.typ != want && v.typ != model.TypeNull {
		a.errorf(e, "The '%s' operator requires a %s, not a '%s'", e.Op, want, v.typ)
		return errorValue()
	}
	v.typ = want
	v.expr = &model.Unary{Kind: "Unary", Op: e.Op, Operand: v.expr}
	return v
}

func (a *analyzer) compileBinary(e *ast.BinaryExpr, fs *fieldSpace) exprValue {
	lhs := a.compileExpr(e.LHS, fs)
	rhs := a.compileExpr(e.RHS, fs)
	out := exprValue{
		shape:       model.MaxShape(lhs.shape, rhs.shape),
		space:       model.MergeSpaces(lhs.space, rhs.space),
		expr:        &model.Binary{Kind: "Binary", Op: e.Op, LHS: lhs.expr, RHS: rhs.expr},
		usage:       model.MergeUsage(lhs.usage, rhs.usage),
		ungroupings: slices.Concat(lhs.ungroupings, rhs.ungroupings),
	}
	if lhs.isError() || rhs.isError() {
		out.typ = model.TypeError
		return out
	}
	switch e.Op {
	case "+", "-", "*", "/", "%":
		out.typ = model.TypeNumber
		if !a.requireType(e, e.Op, model.TypeNumber, lhs, rhs) {
			out.typ = model.TypeError
		}
	case "and", "or":
		out.typ = model.TypeBoolean
		if !a.requireType(e, e.Op, model.TypeBoolean, lhs, rhs) {
			out.typ = model.TypeError
		}
	case "~":
		out.typ = model.TypeBoolean
		if !a.requireType(e, e.Op, model.TypeString, lhs, rhs) {
			out.typ = model.TypeError
		}
	default:
		out.typ = model.TypeBoolean
		if !comparableTypes(lhs.typ, rhs.typ) {
			a.errorf(e, "Cannot compare a %s to a %s", lhs.typ, rhs.typ)
			out.typ = model.TypeError
		}
	}
	return out
}

func (a *analyzer) requireType(e *ast.BinaryExpr, op string, want model.DataType, operands ...exprValue) bool {
	for _, v := range operands {
		if v.typ != want && v.typ != model.TypeNull {
			a.errorf(e, "The '%s' operator requires a %s, not a '%s'", op, want, v.typ)
			return false
		}
	}
	return true
}

func comparableTypes(a, b model.DataType) bool {
	if a == b || a == model.TypeNull || b == model.TypeNull {
		return true
	}
	if a == model.TypeNative || b == model.TypeNative {
		return true
	}
	temporal := func(t model.DataType) bool {
		return t == model.TypeDate || t == model.TypeTimestamp
	}
	return temporal(a) && temporal(b)
}

func (a *analyzer) compileArgs(args []ast.Expr, fs *fieldSpace) ([]exprValue, bool) {
	vals := make([]exprValue, 0, len(args))
	ok := true
	for _, arg := range args {
		v := a.compileExpr(arg, fs)
		if v.isError() {
			ok = false
		}
		vals = append(vals, v)
	}
	return vals, ok
}

func (a *analyzer) lookupFunction(id *ast.ID) *model.Function {
	f, ok := a.scope.Lookup(id.Name).(*model.Function)
	if !ok {
		a.errorf(id, "Unknown function '%s'", id.Name)
		return nil
	}
	return f
}

func (a *analyzer) compileCall(e *ast.CallExpr, fs *fieldSpace) exprValue {
	f := a.lookupFunction(e.Func)
	if f == nil {
		return errorValue()
	}
	args, ok := a.compileArgs(e.Args, fs)
	if !ok {
		return errorValue()
	}
	o := matchOverload(f, args)
	if o == nil {
		a.error(e, noOverload(f.Name, args))
		return errorValue()
	}
	switch o.Shape {
	case model.Aggregate:
		var arg exprValue
		if len(args) > 0 {
			arg = args[0]
		}
		return a.aggregate(e, f.Name, o, args, structPathOf(arg.usage))
	case model.Analytic:
		if !a.checkCallArgs(e, f.Name, o, args) {
			return errorValue()
		}
		for k, arg := range args {
			if arg.shape == model.Analytic {
				a.error(e.Args[k], "Analytic expression cannot be analytic")
				return errorValue()
			}
		}
		out := exprValue{
			typ:   returnType(o, args),
			shape: model.Analytic,
			space: model.SpaceOutput,
			expr:  &model.Call{Kind: "Call", Func: f.Name, Args: exprs(args)},
		}
		for _, arg := range args {
			out.usage = model.MergeUsage(out.usage, arg.usage)
			out.ungroupings = append(out.ungroupings, arg.ungroupings...)
		}
		out.usage = append(out.usage, model.FieldUsage{AnalyticFunctionUse: true})
		return out
	}
	if !a.checkCallArgs(e, f.Name, o, args) {
		return errorValue()
	}
	out := exprValue{
		typ:   returnType(o, args),
		space: model.SpaceConstant,
		expr:  &model.Call{Kind: "Call", Func: f.Name, Args: exprs(args)},
	}
	if len(args) > 0 {
		out.space = model.SpaceLiteral
	}
	for _, arg := range args {
		out.shape = model.MaxShape(out.shape, arg.shape)
		out.space = model.MergeSpaces(out.space, arg.space)
		out.usage = model.MergeUsage(out.usage, arg.usage)
		out.ungroupings = append(out.ungroupings, arg.ungroupings...)
	}
	return out
}

func (a *analyzer) checkCallArgs(n ast.Node, name string, o *model.Overload, args []exprValue) bool {
	msgs := checkParams(name, o, args)
	for _, msg := range msgs {
		a.error(n, msg)
	}
	return len(msgs) == 0
}

func exprs(vals []exprValue) []model.Expr {
	out := make([]model.Expr, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.expr)
	}
	return out
}

// aggregate builds a reduction of args computed over the join at
// structPath, which is nil for the query's source.
func (a *analyzer) aggregate(n ast.Node, name string, o *model.Overload, args []exprValue, structPath field.Path) exprValue {
	for _, arg := range args {
		if arg.shape.IsAggregate() {
			a.error(n, "Aggregate expression cannot be aggregate")
			return errorValue()
		}
		if arg.shape == model.Analytic {
			a.error(n, "Aggregate expression cannot be analytic")
			return errorValue()
		}
	}
	if !a.checkCallArgs(n, name, o, args) {
		return errorValue()
	}
	agg := &model.AggregateExpr{Kind: "AggregateExpr", Func: name, StructPath: structPath}
	out := exprValue{
		typ:   returnType(o, args),
		shape: model.Aggregate,
		space: model.SpaceOutput,
		expr:  agg,
	}
	if len(args) > 0 {
		agg.Arg = args[0].expr
		out.usage = args[0].usage
		out.ungroupings = args[0].ungroupings
	}
	switch {
	case name == "count" && len(args) == 0:
		out.usage = model.MergeUsage(out.usage, []model.FieldUsage{{
			Path:                 structPath,
			UniqueKeyRequirement: &model.UniqueKeyRequirement{IsCount: true},
		}})
	case isAsymmetric(name):
		out.usage = model.MergeUsage(out.usage, []model.FieldUsage{{
			Path:                 structPath,
			UniqueKeyRequirement: &model.UniqueKeyRequirement{},
		}})
	}
	return out
}

// structPathOf is the longest join path shared by every field in usage.
func structPathOf(usage []model.FieldUsage) field.Path {
	var out field.Path
	first := true
	for _, u := range usage {
		if len(u.Path) == 0 {
			continue
		}
		head := u.Path.Head()
		if first {
			out = slices.Clone(head)
			first = false
			continue
		}
		k := 0
		for k < len(out) && k < len(head) && out[k] == head[k] {
			k++
		}
		out = out[:k]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// compileAggCall handles a reduction at a path: "source.count()",
// "j.count()", "j.sum(j.x)", or "j.x.sum()".
func (a *analyzer) compileAggCall(e *ast.AggCall, fs *fieldSpace) exprValue {
	f := a.lookupFunction(e.Func)
	if f == nil {
		return errorValue()
	}
	if f.Overloads[0].Shape != model.Aggregate {
		a.errorf(e.Func, "'%s' is not an aggregate function", f.Name)
		return errorValue()
	}
	path := e.Path.FieldPath()
	var structPath field.Path
	var args []exprValue
	if len(path) == 1 && path[0] == "source" && fs.source.Field("source") == nil {
		vals, ok := a.compileArgs(e.Args, fs)
		if !ok {
			return errorValue()
		}
		args = vals
	} else {
		target := a.resolvePath(e.Path, fs.source)
		if target == nil {
			return errorValue()
		}
		switch target := target.(type) {
		case *model.JoinField:
			structPath = path
			vals, ok := a.compileArgs(e.Args, fs)
			if !ok {
				return errorValue()
			}
			args = vals
		case *model.AtomicField:
			if len(e.Args) > 0 || f.Name == "count" {
				a.errorf(e, "Cannot compute %s() at '%s', which is not a join", f.Name, path)
				return errorValue()
			}
			v := a.compilePath(e.Path, fs)
			if v.isError() {
				return v
			}
			structPath = path.Head()
			if len(structPath) == 0 {
				structPath = nil
			}
			args = []exprValue{v}
		default:
			a.errorf(e.Path, "'%s' is a %s and cannot be aggregated", path, model.FieldType(target))
			return errorValue()
		}
	}
	o := matchOverload(f, args)
	if o == nil {
		a.error(e, noOverload(f.Name, args))
		return errorValue()
	}
	return a.aggregate(e, f.Name, o, args, structPath)
}

// compileUngroup handles all(expr, fields...) and exclude(expr, fields...).
func (a *analyzer) compileUngroup(e *ast.CallExpr, fs *fieldSpace) exprValue {
	name := e.Func.Name
	if len(e.Args) == 0 || (name == "exclude" && len(e.Args) < 2) {
		a.error(e, noOverload(name, nil))
		return errorValue()
	}
	v := a.compileExpr(e.Args[0], fs)
	if v.isError() {
		return v
	}
	switch v.shape {
	case model.Aggregate:
	case model.UngroupedAggregate:
		a.errorf(e, "%s() expression must not already be ungrouped", name)
		return errorValue()
	default:
		a.errorf(e, "%s() expression must be an aggregate", name)
		return errorValue()
	}
	var fields []field.Path
	for _, arg := range e.Args[1:] {
		p, ok := arg.(*ast.Path)
		if !ok {
			a.errorf(arg, "%s() arguments after the first must be field names", name)
			return errorValue()
		}
		fields = append(fields, p.FieldPath())
	}
	u := model.Ungrouping{Control: name, Fields: fields, Usage: v.usage}
	return exprValue{
		typ:         v.typ,
		shape:       model.UngroupedAggregate,
		space:       model.SpaceOutput,
		expr:        &model.Ungroup{Kind: "Ungroup", Control: name, Expr: v.expr, Fields: fields},
		usage:       v.usage,
		ungroupings: append(slices.Clone(v.ungroupings), u),
	}
}
