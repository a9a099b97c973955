package model

import "strings"

type DataType string

const (
	TypeNumber    DataType = "number"
	TypeString    DataType = "string"
	TypeBoolean   DataType = "boolean"
	TypeDate      DataType = "date"
	TypeTimestamp DataType = "timestamp"
	TypeJSON      DataType = "json"
	TypeNative    DataType = "sql native"
	TypeNull      DataType = "null"
	TypeError     DataType = "error"
	TypeView      DataType = "view"
	TypeJoin      DataType = "join"
)

// Shape is the aggregation shape of an expression.  Shapes are ordered so
// the shape of a compound expression is the max of its parts.
type Shape int

const (
	Scalar Shape = iota
	Aggregate
	UngroupedAggregate
	Analytic
)

func (s Shape) String() string {
	switch s {
	case Scalar:
		return "scalar"
	case Aggregate:
		return "aggregate"
	case UngroupedAggregate:
		return "ungrouped_aggregate"
	case Analytic:
		return "analytic"
	}
	return "unknown"
}

func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s Shape) IsAggregate() bool {
	return s == Aggregate || s == UngroupedAggregate
}

func MaxShape(shapes ...Shape) Shape {
	out := Scalar
	for _, s := range shapes {
		out = max(out, s)
	}
	return out
}

// EvalSpace says where an expression can be evaluated.  Spaces are ordered
// so the space of a compound expression is the max of its parts: literals
// and constants anywhere, output expressions against a segment's results,
// and input expressions against source rows.
type EvalSpace int

const (
	SpaceLiteral EvalSpace = iota
	SpaceConstant
	SpaceOutput
	SpaceInput
)

func (e EvalSpace) String() string {
	switch e {
	case SpaceLiteral:
		return "literal"
	case SpaceConstant:
		return "constant"
	case SpaceOutput:
		return "output"
	case SpaceInput:
		return "input"
	}
	return "unknown"
}

func (e EvalSpace) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func MergeSpaces(spaces ...EvalSpace) EvalSpace {
	out := SpaceLiteral
	for _, s := range spaces {
		out = max(out, s)
	}
	return out
}

// Column is one column of a table or SQL block schema.
type Column struct {
	Name string   `json:"name" yaml:"name"`
	Type DataType `json:"type" yaml:"type"`
}

// TableSchema is what a connection supplies for a table or SQL block.
type TableSchema struct {
	Connection string   `json:"connection,omitempty" yaml:"connection,omitempty"`
	Columns    []Column `json:"columns" yaml:"columns"`
}

// ParseDataType maps a SQL column type name onto a DataType.
func ParseDataType(sqlType string) DataType {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "number", "int", "integer", "int2", "int4", "int8", "smallint", "bigint", "tinyint",
		"real", "float", "float4", "float8", "double", "double precision", "numeric", "decimal":
		return TypeNumber
	case "string", "text", "varchar", "character varying", "char", "character", "clob", "uuid":
		return TypeString
	case "bool", "boolean":
		return TypeBoolean
	case "date":
		return TypeDate
	case "timestamp", "datetime", "timestamptz", "timestamp with time zone", "timestamp without time zone":
		return TypeTimestamp
	case "json", "jsonb":
		return TypeJSON
	}
	return TypeNative
}
