package sfmt

import (
	"strings"

	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/pkg/field"
)

type shared struct {
	formatter
}

func (s *shared) literal(e *model.Literal) {
	switch e.Type {
	case model.TypeString:
		s.write("'%s'", strings.ReplaceAll(e.Value, "'", `\'`))
	case model.TypeDate, model.TypeTimestamp:
		s.write("@%s", e.Value)
	default:
		s.WriteString(e.Value)
	}
}

func (s *shared) fieldpath(path field.Path) {
	for k, elem := range path {
		if k > 0 {
			s.write(".")
		}
		if isIdentifier(elem) {
			s.WriteString(elem)
		} else {
			s.write("`%s`", elem)
		}
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for k, r := range s {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case k > 0 && '0' <= r && r <= '9':
		default:
			return false
		}
	}
	return true
}

func (s *shared) exprs(exprs []model.Expr) {
	for k, e := range exprs {
		if k > 0 {
			s.write(", ")
		}
		s.expr(e, "")
	}
}

func (s *shared) expr(e model.Expr, parent string) {
	switch e := e.(type) {
	case nil:
		s.write("null")
	case *model.BadExpr:
		s.write("<error>")
	case *model.Binary:
		parens := needsparens(parent, e.Op)
		s.maybewrite("(", parens)
		s.expr(e.LHS, e.Op)
		s.write(" %s ", e.Op)
		s.expr(e.RHS, e.Op)
		s.maybewrite(")", parens)
	case *model.AggregateExpr:
		if len(e.StructPath) > 0 {
			s.fieldpath(e.StructPath)
			s.write(".")
		}
		s.write("%s(", e.Func)
		if e.Arg != nil {
			s.expr(e.Arg, "")
		}
		s.write(")")
	case *model.Call:
		s.write("%s(", e.Func)
		s.exprs(e.Args)
		s.write(")")
	case *model.CompositeField:
		s.write("<composite>")
	case *model.Field:
		s.fieldpath(e.Path)
	case *model.Literal:
		s.literal(e)
	case *model.OutputField:
		s.write("output.")
		s.fieldpath(field.New(e.Name))
	case *model.Unary:
		if e.Op == "not" {
			s.write("not ")
		} else {
			s.WriteString(e.Op)
		}
		s.expr(e.Operand, "not")
	case *model.Ungroup:
		s.write("%s(", e.Control)
		s.expr(e.Expr, "")
		for _, f := range e.Fields {
			s.write(", ")
			s.fieldpath(f)
		}
		s.write(")")
	default:
		s.write("(unknown expr %T)", e)
	}
}

func (s *shared) maybewrite(str string, do bool) {
	if do {
		s.WriteString(str)
	}
}

func needsparens(parent, op string) bool {
	return precedence(parent)-precedence(op) < 0
}

func precedence(op string) int {
	switch op {
	case "not":
		return 1
	case "*", "/", "%":
		return 3
	case "+", "-":
		return 4
	case "<", "<=", ">", ">=", "=", "!=", "~", "!~":
		return 5
	case "and":
		return 6
	case "or":
		return 7
	default:
		return 100
	}
}
