package semantic

import (
	"fmt"

	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/model"
)

func kindOf(v exprValue) string {
	switch {
	case v.typ == model.TypeView:
		return "a view field"
	case v.shape.IsAggregate():
		return "an aggregate field"
	case v.shape == model.Analytic:
		return "an analytic field"
	}
	return "a scalar field"
}

func useInstead(v exprValue) string {
	switch {
	case v.typ == model.TypeView:
		return "a nest"
	case v.shape.IsAggregate():
		return "an aggregate"
	case v.shape == model.Analytic:
		return "a calculate"
	}
	return "a group_by or select"
}

func operation(op string) string {
	if op == "aggregate" || op == "index" {
		return "an " + op
	}
	return "a " + op
}

// checkShape reports whether v may appear in op, logging an error at n if
// it may not.  Values that already failed to compile are rejected without
// a further message.
func (a *analyzer) checkShape(op string, v exprValue, n ast.Node) bool {
	if v.isError() {
		return false
	}
	view := v.typ == model.TypeView
	var ok bool
	switch op {
	case "group_by", "select":
		ok = !view && v.shape == model.Scalar
	case "aggregate":
		ok = !view && v.shape.IsAggregate()
	case "calculate":
		ok = !view
	case "index":
		if view || v.shape != model.Scalar {
			a.errorf(n, "Cannot use %s in an index operation", kindOf(v))
			return false
		}
		return true
	case "dimension":
		switch {
		case v.shape.IsAggregate():
			a.error(n, "Cannot use an aggregate field in a dimension declaration, did you mean to use a measure declaration instead?")
		case v.shape == model.Analytic:
			a.error(n, "Cannot use an analytic field in a dimension declaration")
		case view:
			a.error(n, "Cannot use a view field in a dimension declaration")
		default:
			return true
		}
		return false
	case "measure":
		switch {
		case view:
			a.error(n, "Cannot use a view field in a measure declaration")
		case v.shape == model.Scalar:
			a.error(n, "Cannot use a scalar field in a measure declaration, did you mean to use a dimension declaration instead?")
		case v.shape == model.Analytic:
			a.error(n, "Cannot use an analytic field in a measure declaration")
		default:
			return true
		}
		return false
	case "where":
		switch {
		case v.shape.IsAggregate():
			a.error(n, "Aggregate expressions are not allowed in `where:`; use `having:`")
		case v.shape == model.Analytic:
			a.error(n, "Analytic expressions are not allowed in `where:`")
		default:
			return true
		}
		return false
	case "having":
		if v.shape == model.Analytic {
			a.error(n, "Analytic expressions are not allowed in `having:`")
			return false
		}
		return true
	default:
		panic(fmt.Errorf("semantic: unknown operation %q", op))
	}
	if !ok {
		a.errorf(n, "Cannot use %s in %s operation, did you mean to use %s operation instead?", kindOf(v), operation(op), useInstead(v))
	}
	return ok
}

// filter compiles a where: or having: condition.
func (a *analyzer) filter(op string, e ast.Expr, fs *fieldSpace) *model.Filter {
	v := a.compileExpr(e, fs)
	if !a.checkShape(op, v, e) {
		return nil
	}
	if v.typ != model.TypeBoolean && v.typ != model.TypeNull {
		a.error(e, "Filter expression must have boolean value")
		return nil
	}
	return &model.Filter{
		Expr:  v.expr,
		Code:  a.text(e),
		Shape: v.shape,
		Usage: v.usage,
	}
}
