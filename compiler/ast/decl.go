package ast

type Decl interface {
	Node
	declNode()
}

type SourceDecl struct {
	Kind        string        `json:"kind" unpack:""`
	Annotations []*Annotation `json:"annotations"`
	Name        *ID           `json:"name"`
	Source      SourceExpr    `json:"source"`
	Loc         `json:"loc"`
}

type QueryDecl struct {
	Kind        string        `json:"kind" unpack:""`
	Annotations []*Annotation `json:"annotations"`
	Name        *ID           `json:"name"`
	Query       QueryExpr     `json:"query"`
	Loc         `json:"loc"`
}

type RunDecl struct {
	Kind        string        `json:"kind" unpack:""`
	Annotations []*Annotation `json:"annotations"`
	Query       QueryExpr     `json:"query"`
	Loc         `json:"loc"`
}

// SQLDecl is "sql: name is conn.sql('select ...')".
type SQLDecl struct {
	Kind       string  `json:"kind" unpack:""`
	Name       *ID     `json:"name"`
	Connection *ID     `json:"connection"`
	Select     *String `json:"select"`
	Loc        `json:"loc"`
}

// ImportDecl imports every export of URL when Items is empty and otherwise
// only the named items.
type ImportDecl struct {
	Kind  string        `json:"kind" unpack:""`
	URL   *String       `json:"url"`
	Items []*ImportItem `json:"items"`
	Loc   `json:"loc"`
}

type ImportItem struct {
	Kind string `json:"kind" unpack:""`
	Name *ID    `json:"name"`
	As   *ID    `json:"as"`
	Loc  `json:"loc"`
}

func (i *ImportItem) DestName() string {
	if i.As != nil {
		return i.As.Name
	}
	return i.Name.Name
}

func (*SourceDecl) declNode() {}
func (*QueryDecl) declNode()  {}
func (*RunDecl) declNode()    {}
func (*SQLDecl) declNode()    {}
func (*ImportDecl) declNode() {}
