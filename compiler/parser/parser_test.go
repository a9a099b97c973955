package parser_test

import (
	"testing"

	"github.com/brimdata/semq/compiler/ast"
	"github.com/brimdata/semq/compiler/parser"
	"github.com/brimdata/semq/compiler/srcfiles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	doc, err := parser.ParseText(`
// flights
#@ persist
source: a is duckdb.table('flights') extend {
  dimension: one is 1, two is 2
    three is one + two
  measure:
    total is distance.sum() { grouped_by: carrier }
  join_one: c is duckdb.table('carriers') on carrier = c.code
  where: distance > 100
  primary_key: id
  view: by_one is { group_by: one } -> { select: one }
}
query: q is a -> by_one + { limit: 10 }
run: compose(a, a extend { except: two }) -> { group_by: one; aggregate: total }
import {b is a} from 'other.malloy'
sql: s is duckdb.sql("select 1 as x")
`)
	require.NoError(t, err)
	require.Len(t, doc.Decls, 5)

	src := doc.Decls[0].(*ast.SourceDecl)
	assert.Equal(t, "a", src.Name.Name)
	assert.True(t, ast.Persist(src.Annotations))
	ext := src.Source.(*ast.ExtendSource)
	table := ext.Base.(*ast.TableSource)
	assert.Equal(t, "flights", table.Table.Text)
	require.Len(t, ext.Props, 6)
	dims := ext.Props[0].(*ast.FieldDecls)
	assert.False(t, dims.Measure)
	assert.Len(t, dims.Fields, 3)
	measures := ext.Props[1].(*ast.FieldDecls)
	require.Len(t, measures.Fields, 1)
	assert.Equal(t, "carrier", measures.Fields[0].GroupedBy[0].String())
	agg := measures.Fields[0].Expr.(*ast.AggCall)
	assert.Equal(t, "distance", agg.Path.String())
	assert.Equal(t, "sum", agg.Func.Name)
	join := ext.Props[2].(*ast.JoinDecl)
	assert.Equal(t, "one", join.Relationship)
	assert.NotNil(t, join.On)
	view := ext.Props[5].(*ast.ViewDecl)
	assert.IsType(t, &ast.ViewArrow{}, view.View)

	q := doc.Decls[1].(*ast.QueryDecl)
	arrow := q.Query.(*ast.Arrow)
	assert.IsType(t, &ast.QueryRef{}, arrow.Base)
	refine := arrow.View.(*ast.ViewRefine)
	assert.Equal(t, "by_one", refine.Base.(*ast.ViewRef).Name.Name)

	run := doc.Decls[2].(*ast.RunDecl)
	from := run.Query.(*ast.Arrow).Base.(*ast.FromSource)
	compose := from.Source.(*ast.ComposeSource)
	assert.Len(t, compose.Sources, 2)

	imp := doc.Decls[3].(*ast.ImportDecl)
	assert.Equal(t, "other.malloy", imp.URL.Text)
	assert.Equal(t, "a", imp.Items[0].Name.Name)
	assert.Equal(t, "b", imp.Items[0].DestName())

	sql := doc.Decls[4].(*ast.SQLDecl)
	assert.Equal(t, "select 1 as x", sql.Select.Text)
}

func TestParseExprPrecedence(t *testing.T) {
	doc, err := parser.ParseText("run: a -> { where: not x = 1 and y > 2 or z; group_by: w }")
	require.NoError(t, err)
	view := doc.Decls[0].(*ast.RunDecl).Query.(*ast.Arrow).View.(*ast.SegmentView)
	filter := view.Props[0].(*ast.Filter)
	or := filter.Exprs[0].(*ast.BinaryExpr)
	assert.Equal(t, "or", or.Op)
	and := or.LHS.(*ast.BinaryExpr)
	assert.Equal(t, "and", and.Op)
	not := and.LHS.(*ast.UnaryExpr)
	assert.Equal(t, "not", not.Op)
	assert.Equal(t, "=", not.Operand.(*ast.BinaryExpr).Op)
}

func TestParseTimeLiteral(t *testing.T) {
	doc, err := parser.ParseText("run: a -> { where: t > @2024-01-02 10:00, d = @2024-01-02 }")
	require.NoError(t, err)
	filter := doc.Decls[0].(*ast.RunDecl).Query.(*ast.Arrow).View.(*ast.SegmentView).Props[0].(*ast.Filter)
	ts := filter.Exprs[0].(*ast.BinaryExpr).RHS.(*ast.Literal)
	assert.Equal(t, "timestamp", ts.Type)
	assert.Equal(t, "2024-01-02 10:00:00", ts.Value)
	date := filter.Exprs[1].(*ast.BinaryExpr).RHS.(*ast.Literal)
	assert.Equal(t, "date", date.Type)
	assert.Equal(t, "2024-01-02", date.Value)
}

func TestParseQuotedIdentifierIsNormalized(t *testing.T) {
	// "e" followed by a combining acute accent composes to U+00E9.
	doc, err := parser.ParseText("source: `café` is conn.table('t')")
	require.NoError(t, err)
	assert.Equal(t, "café", doc.Decls[0].(*ast.SourceDecl).Name.Name)
}

func TestParseError(t *testing.T) {
	files := srcfiles.NewList("file:///a.malloy", "source: a is conn.table('t')\nrun: a -> { group_by: }")
	_, err := parser.Parse(files)
	require.Error(t, err)
	diags := files.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, "syntax error: unexpected '}'", diags[0].Msg)
	start, _ := files.Span(diags[0].Pos, diags[0].End)
	assert.Equal(t, 2, start.Line)
	assert.Equal(t, 23, start.Column)
}

func TestUnnamedExpression(t *testing.T) {
	_, err := parser.ParseText("run: a -> { group_by: x + 1 }")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expression needs a name")
}
