package ast

type SourceExpr interface {
	Node
	sourceNode()
}

type (
	// TableSource is "conn.table('path')".
	TableSource struct {
		Kind       string  `json:"kind" unpack:""`
		Connection *ID     `json:"connection"`
		Table      *String `json:"table"`
		Loc        `json:"loc"`
	}
	// SQLSource is "conn.sql('select ...')".
	SQLSource struct {
		Kind       string  `json:"kind" unpack:""`
		Connection *ID     `json:"connection"`
		Select     *String `json:"select"`
		Loc        `json:"loc"`
	}
	NamedSource struct {
		Kind string `json:"kind" unpack:""`
		Name *ID    `json:"name"`
		Loc  `json:"loc"`
	}
	ComposeSource struct {
		Kind    string       `json:"kind" unpack:""`
		Sources []SourceExpr `json:"sources"`
		Loc     `json:"loc"`
	}
	ExtendSource struct {
		Kind  string       `json:"kind" unpack:""`
		Base  SourceExpr   `json:"base"`
		Props []SourceProp `json:"props"`
		Loc   `json:"loc"`
	}
	// QuerySource is a source whose rows are the results of a query.
	QuerySource struct {
		Kind  string    `json:"kind" unpack:""`
		Query QueryExpr `json:"query"`
		Loc   `json:"loc"`
	}
)

func (*TableSource) sourceNode()   {}
func (*SQLSource) sourceNode()     {}
func (*NamedSource) sourceNode()   {}
func (*ComposeSource) sourceNode() {}
func (*ExtendSource) sourceNode()  {}
func (*QuerySource) sourceNode()   {}

type SourceProp interface {
	Node
	sourcePropNode()
}

type (
	// FieldDecls is the list of a dimension: or measure: property.
	FieldDecls struct {
		Kind    string       `json:"kind" unpack:""`
		Measure bool         `json:"measure"`
		Fields  []*FieldDecl `json:"fields"`
		Loc     `json:"loc"`
	}
	FieldDecl struct {
		Kind        string        `json:"kind" unpack:""`
		Annotations []*Annotation `json:"annotations"`
		Name        *ID           `json:"name"`
		Expr        Expr          `json:"expr"`
		GroupedBy   []*Path       `json:"grouped_by"`
		Loc         `json:"loc"`
	}
	// JoinDecl joins Source (or the source named by Name when Source is
	// nil) on an expression or with a foreign key.
	JoinDecl struct {
		Kind         string     `json:"kind" unpack:""`
		Relationship string     `json:"relationship"`
		Name         *ID        `json:"name"`
		Source       SourceExpr `json:"source"`
		On           Expr       `json:"on"`
		With         *Path      `json:"with"`
		Loc          `json:"loc"`
	}
	SourceWhere struct {
		Kind  string `json:"kind" unpack:""`
		Exprs []Expr `json:"exprs"`
		Loc   `json:"loc"`
	}
	PrimaryKey struct {
		Kind string `json:"kind" unpack:""`
		Name *ID    `json:"name"`
		Loc  `json:"loc"`
	}
	ViewDecl struct {
		Kind        string        `json:"kind" unpack:""`
		Annotations []*Annotation `json:"annotations"`
		Name        *ID           `json:"name"`
		View        ViewExpr      `json:"view"`
		Loc         `json:"loc"`
	}
	// FieldFilter is except: (Accept false) or accept: (Accept true).
	FieldFilter struct {
		Kind   string `json:"kind" unpack:""`
		Accept bool   `json:"accept"`
		Names  []*ID  `json:"names"`
		Loc    `json:"loc"`
	}
)

func (*FieldDecls) sourcePropNode()  {}
func (*JoinDecl) sourcePropNode()    {}
func (*SourceWhere) sourcePropNode() {}
func (*PrimaryKey) sourcePropNode()  {}
func (*ViewDecl) sourcePropNode()    {}
func (*FieldFilter) sourcePropNode() {}
