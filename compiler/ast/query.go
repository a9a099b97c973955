package ast

type QueryExpr interface {
	Node
	queryNode()
}

type (
	// QueryRef names a query or, at the head of an arrow, a source.
	QueryRef struct {
		Kind string `json:"kind" unpack:""`
		Name *ID    `json:"name"`
		Loc  `json:"loc"`
	}
	// FromSource is an unnamed source at the head of an arrow.
	FromSource struct {
		Kind   string     `json:"kind" unpack:""`
		Source SourceExpr `json:"source"`
		Loc    `json:"loc"`
	}
	Arrow struct {
		Kind string    `json:"kind" unpack:""`
		Base QueryExpr `json:"base"`
		View ViewExpr  `json:"view"`
		Loc  `json:"loc"`
	}
	// Refine is "query + view".
	Refine struct {
		Kind       string    `json:"kind" unpack:""`
		Base       QueryExpr `json:"base"`
		Refinement ViewExpr  `json:"refinement"`
		Loc        `json:"loc"`
	}
)

func (*QueryRef) queryNode()   {}
func (*FromSource) queryNode() {}
func (*Arrow) queryNode()      {}
func (*Refine) queryNode()     {}

type ViewExpr interface {
	Node
	viewNode()
}

type (
	SegmentView struct {
		Kind  string        `json:"kind" unpack:""`
		Props []SegmentProp `json:"props"`
		Loc   `json:"loc"`
	}
	ViewRef struct {
		Kind string `json:"kind" unpack:""`
		Name *ID    `json:"name"`
		Loc  `json:"loc"`
	}
	ViewRefine struct {
		Kind       string   `json:"kind" unpack:""`
		Base       ViewExpr `json:"base"`
		Refinement ViewExpr `json:"refinement"`
		Loc        `json:"loc"`
	}
	// ViewArrow is a multi-stage view, e.g., "{...} -> {...}".
	ViewArrow struct {
		Kind string   `json:"kind" unpack:""`
		Base ViewExpr `json:"base"`
		Next ViewExpr `json:"next"`
		Loc  `json:"loc"`
	}
)

func (*SegmentView) viewNode() {}
func (*ViewRef) viewNode()     {}
func (*ViewRefine) viewNode()  {}
func (*ViewArrow) viewNode()   {}

type SegmentProp interface {
	Node
	segmentPropNode()
}

type (
	// FieldList is one of group_by:, aggregate:, calculate:, select:, or
	// index: as given by Op.
	FieldList struct {
		Kind  string       `json:"kind" unpack:""`
		Op    string       `json:"op"`
		Items []*QueryItem `json:"items"`
		Loc   `json:"loc"`
	}
	Nest struct {
		Kind string   `json:"kind" unpack:""`
		Name *ID      `json:"name"`
		View ViewExpr `json:"view"`
		Loc  `json:"loc"`
	}
	// Filter is where: or having: as given by Op.
	Filter struct {
		Kind  string `json:"kind" unpack:""`
		Op    string `json:"op"`
		Exprs []Expr `json:"exprs"`
		Loc   `json:"loc"`
	}
	Limit struct {
		Kind  string `json:"kind" unpack:""`
		Value int    `json:"value"`
		Loc   `json:"loc"`
	}
	OrderBy struct {
		Kind  string       `json:"kind" unpack:""`
		Items []*OrderItem `json:"items"`
		Loc   `json:"loc"`
	}
)

func (*FieldList) segmentPropNode() {}
func (*Nest) segmentPropNode()      {}
func (*Filter) segmentPropNode()    {}
func (*Limit) segmentPropNode()     {}
func (*OrderBy) segmentPropNode()   {}

// PropName is the keyword introducing p.
func PropName(p SegmentProp) string {
	switch p := p.(type) {
	case *FieldList:
		return p.Op
	case *Nest:
		return "nest"
	case *Filter:
		return p.Op
	case *Limit:
		return "limit"
	case *OrderBy:
		return "order_by"
	}
	return "unknown"
}

// QueryItem is "name is expr", a field reference (Name nil), or a wildcard.
type QueryItem struct {
	Kind     string `json:"kind" unpack:""`
	Name     *ID    `json:"name"`
	Expr     Expr   `json:"expr"`
	Wildcard *Path  `json:"wildcard"`
	Star     bool   `json:"star"`
	Loc      `json:"loc"`
}

type OrderItem struct {
	Kind  string `json:"kind" unpack:""`
	Field *ID    `json:"field"`
	Dir   string `json:"dir"`
	Loc   `json:"loc"`
}
