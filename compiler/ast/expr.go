package ast

import "github.com/brimdata/semq/pkg/field"

type Expr interface {
	Node
	exprNode()
}

type (
	// A BinaryExpr is any expression of the form "lhs op rhs" including
	// arithmetic (+, -, *, /, %), logical operators (and, or), and
	// comparisons (=, !=, <, <=, >, >=, ~).
	BinaryExpr struct {
		Kind string `json:"kind" unpack:""`
		Op   string `json:"op"`
		LHS  Expr   `json:"lhs"`
		RHS  Expr   `json:"rhs"`
		Loc  `json:"loc"`
	}
	UnaryExpr struct {
		Kind    string `json:"kind" unpack:""`
		Op      string `json:"op"`
		Operand Expr   `json:"operand"`
		Loc     `json:"loc"`
	}
	// Literal is a constant.  Type is one of number, string, boolean, null,
	// date, or timestamp.
	Literal struct {
		Kind  string `json:"kind" unpack:""`
		Type  string `json:"type"`
		Value string `json:"value"`
		Loc   `json:"loc"`
	}
	// Path is a dotted field reference.
	Path struct {
		Kind  string `json:"kind" unpack:""`
		Elems []*ID  `json:"elems"`
		Loc   `json:"loc"`
	}
	CallExpr struct {
		Kind string `json:"kind" unpack:""`
		Func *ID    `json:"func"`
		Args []Expr `json:"args"`
		Loc  `json:"loc"`
	}
	// AggCall is a reduction applied at a path, e.g., "j.sum(j.x)",
	// "x.avg()", or "source.count()".
	AggCall struct {
		Kind string `json:"kind" unpack:""`
		Path *Path  `json:"path"`
		Func *ID    `json:"func"`
		Args []Expr `json:"args"`
		Loc  `json:"loc"`
	}
	ParenExpr struct {
		Kind string `json:"kind" unpack:""`
		Expr Expr   `json:"expr"`
		Loc  `json:"loc"`
	}
)

func (*BinaryExpr) exprNode() {}
func (*UnaryExpr) exprNode()  {}
func (*Literal) exprNode()    {}
func (*Path) exprNode()       {}
func (*CallExpr) exprNode()   {}
func (*AggCall) exprNode()    {}
func (*ParenExpr) exprNode()  {}

func (p *Path) FieldPath() field.Path {
	out := make(field.Path, 0, len(p.Elems))
	for _, id := range p.Elems {
		out = append(out, id.Name)
	}
	return out
}

func (p *Path) String() string {
	return p.FieldPath().String()
}
