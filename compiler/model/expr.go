package model

import "github.com/brimdata/semq/pkg/field"

type Expr interface {
	exprNode()
}

type (
	// A BadExpr is a placeholder for an expression containing semantic
	// errors.
	BadExpr struct {
		Kind string `json:"kind" unpack:""`
	}
	Binary struct {
		Kind string `json:"kind" unpack:""`
		Op   string `json:"op"`
		LHS  Expr   `json:"lhs"`
		RHS  Expr   `json:"rhs"`
	}
	// Aggregate is a reduction.  Arg is nil for count().  StructPath is
	// the join path the reduction is computed over.
	AggregateExpr struct {
		Kind       string     `json:"kind" unpack:""`
		Func       string     `json:"func"`
		Arg        Expr       `json:"arg"`
		StructPath field.Path `json:"struct_path,omitempty"`
	}
	Call struct {
		Kind string `json:"kind" unpack:""`
		Func string `json:"func"`
		Args []Expr `json:"args"`
	}
	// CompositeField stands in for the definition of a field that differs
	// among the inputs of a composite source.
	CompositeField struct {
		Kind string `json:"kind" unpack:""`
	}
	Field struct {
		Kind string     `json:"kind" unpack:""`
		Path field.Path `json:"path"`
	}
	Literal struct {
		Kind  string   `json:"kind" unpack:""`
		Type  DataType `json:"type"`
		Value string   `json:"value"`
	}
	OutputField struct {
		Kind string `json:"kind" unpack:""`
		Name string `json:"name"`
	}
	Unary struct {
		Kind    string `json:"kind" unpack:""`
		Op      string `json:"op"`
		Operand Expr   `json:"operand"`
	}
	// Ungroup is all() or exclude().  An empty Fields list on all() ungroups
	// every dimension.
	Ungroup struct {
		Kind    string       `json:"kind" unpack:""`
		Control string       `json:"control"`
		Expr    Expr         `json:"expr"`
		Fields  []field.Path `json:"fields,omitempty"`
	}
)

func (*BadExpr) exprNode()        {}
func (*Binary) exprNode()         {}
func (*AggregateExpr) exprNode()  {}
func (*Call) exprNode()           {}
func (*CompositeField) exprNode() {}
func (*Field) exprNode()          {}
func (*Literal) exprNode()        {}
func (*OutputField) exprNode()    {}
func (*Unary) exprNode()          {}
func (*Ungroup) exprNode()        {}

func NewField(path field.Path) *Field {
	return &Field{Kind: "Field", Path: path}
}

func NewLiteral(typ DataType, value string) *Literal {
	return &Literal{Kind: "Literal", Type: typ, Value: value}
}

func NewBadExpr() *BadExpr {
	return &BadExpr{Kind: "BadExpr"}
}

// WalkExpr calls visit on e and each of its descendants in depth-first
// order.
func WalkExpr(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch e := e.(type) {
	case *Binary:
		WalkExpr(e.LHS, visit)
		WalkExpr(e.RHS, visit)
	case *AggregateExpr:
		WalkExpr(e.Arg, visit)
	case *Call:
		for _, a := range e.Args {
			WalkExpr(a, visit)
		}
	case *Unary:
		WalkExpr(e.Operand, visit)
	case *Ungroup:
		WalkExpr(e.Expr, visit)
	}
}
