package semantic

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/compiler/parser"
	"github.com/brimdata/semq/compiler/srcfiles"
	"github.com/brimdata/semq/pkg/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testResolver struct {
	imports map[string]*model.ModelDef
	tables  map[string]*model.TableSchema
}

func (r *testResolver) Import(url string) (*model.ModelDef, error) {
	if m, ok := r.imports[url]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("import failed: '%s not found'", url)
}

func (r *testResolver) Table(key string) (*model.TableSchema, error) {
	if s, ok := r.tables[key]; ok {
		return s, nil
	}
	return nil, errors.New("no such table")
}

func (r *testResolver) SQL(key string) (*model.TableSchema, error) {
	return r.Table(key)
}

func schema(cols ...string) *model.TableSchema {
	s := &model.TableSchema{}
	for k := 0; k < len(cols); k += 2 {
		s.Columns = append(s.Columns, model.Column{Name: cols[k], Type: model.DataType(cols[k+1])})
	}
	return s
}

var flights = &testResolver{
	tables: map[string]*model.TableSchema{
		"duckdb:flights":  schema("carrier", "string", "origin", "string", "distance", "number", "id", "number"),
		"duckdb:carriers": schema("code", "string", "nickname", "string"),
		"duckdb:a":        schema("x", "number"),
	},
}

func analyze(t *testing.T, r Resolver, text string) (*model.ModelDef, *srcfiles.List) {
	t.Helper()
	files := srcfiles.NewList("test.malloy", text)
	doc, err := parser.Parse(files)
	require.NoError(t, err)
	return Analyze(doc, "test.malloy", nil, r, files), files
}

func messages(files *srcfiles.List) []string {
	var out []string
	for _, e := range files.Diagnostics() {
		out = append(out, e.Msg)
	}
	return out
}

func requireClean(t *testing.T, files *srcfiles.List) {
	t.Helper()
	require.Empty(t, messages(files))
}

func TestCompositeUnsatisfiableUsage(t *testing.T) {
	_, files := analyze(t, flights, `
source: c is compose(
  duckdb.table('a') extend { dimension: one is 1, two is 2 },
  duckdb.table('a') extend { dimension: one is 1, three is 3 }
)
run: c -> { group_by: one, three; where: two = 2 }
`)
	assert.Equal(t, []string{
		"This operation uses field `two`, resulting in invalid usage of the composite source, " +
			"as there is no composite input source which defines all of `three` and `two` " +
			"(fields required in source: `two`, `one`, and `three`)",
	}, messages(files))
	errs := files.Diagnostics()
	require.Len(t, errs, 1)
	// The error is located at the use of the blocking field.
	assert.Equal(t, "two", files.Text[errs[0].Pos:errs[0].End])
}

func TestCompositeChoosesFirstSatisfyingCandidate(t *testing.T) {
	m, files := analyze(t, flights, `
source: c is compose(
  duckdb.table('a') extend { dimension: one is 1, two is 2 },
  duckdb.table('a') extend { dimension: one is 1, three is 3 }
)
run: c -> { group_by: one }
run: c -> { group_by: three }
`)
	requireClean(t, files)
	require.Len(t, m.QueryList, 2)
	first := m.QueryList[0].CompositeResolved
	require.NotNil(t, first)
	assert.NotNil(t, first.Field("two"))
	second := m.QueryList[1].CompositeResolved
	require.NotNil(t, second)
	assert.NotNil(t, second.Field("three"))
	assert.Nil(t, second.Field("two"))
}

func TestCompositeMissingMember(t *testing.T) {
	m, files := analyze(t, flights, `
source: c is compose(duckdb.table('a'), other.table('a'))
`)
	require.NotEmpty(t, files.Diagnostics())
	assert.Nil(t, m.Source("c"))
	assert.Equal(t, "failed to get schema for table 'other:a': no such table", messages(files)[0])
}

func TestRequiredGroupBy(t *testing.T) {
	_, files := analyze(t, flights, `
source: f is duckdb.table('flights') extend {
  measure: m is distance.sum() { grouped_by: carrier }
}
run: f -> { aggregate: m }
run: f -> { group_by: carrier; aggregate: m }
run: f -> { where: carrier = 'AA'; aggregate: m }
`)
	assert.Equal(t, []string{
		"Group by or single value filter of `carrier` is required but not present",
	}, messages(files))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		query string
		msg   string
	}{
		{
			"{ group_by: c is count() }",
			"Cannot use an aggregate field in a group_by operation, did you mean to use an aggregate operation instead?",
		},
		{
			"{ aggregate: o is origin }",
			"Cannot use a scalar field in an aggregate operation, did you mean to use a group_by or select operation instead?",
		},
		{
			"{ group_by: carrier; where: count() > 1 }",
			"Aggregate expressions are not allowed in `where:`; use `having:`",
		},
		{
			"{ group_by: carrier; select: origin }",
			"Cannot add select: to a reduce segment",
		},
		{
			"{ group_by: carrier; limit: 1; limit: 2 }",
			"Query operation already limited",
		},
		{
			"{ group_by: carrier; order_by: carrier; order_by: carrier }",
			"Query operation already sorted",
		},
		{
			"{ group_by: carrier; order_by: origin }",
			"Unknown field 'origin' in output space",
		},
		{
			"{ group_by: carrier, carrier }",
			"Cannot redefine 'carrier'",
		},
		{
			"{ where: carrier = 'AA' }",
			"Can't determine view type (`group_by` / `aggregate` / `nest`, `select`, `index`)",
		},
		{
			"{ aggregate: t is sum(count()) }",
			"Aggregate expression cannot be aggregate",
		},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			_, files := analyze(t, flights, "source: f is duckdb.table('flights')\nrun: f -> "+tc.query)
			assert.Equal(t, []string{tc.msg}, messages(files))
		})
	}
}

func TestMultiStageRefinement(t *testing.T) {
	m, files := analyze(t, flights, `
source: f is duckdb.table('flights')
query: q is f -> { group_by: carrier; aggregate: n is count() } -> { select: carrier, n }
run: q + { where: origin = 'SFO'; limit: 10; order_by: n desc }
`)
	requireClean(t, files)
	require.Len(t, m.QueryList, 1)
	pipeline := m.QueryList[0].Pipeline
	require.Len(t, pipeline, 2)
	first, last := pipeline[0].Base(), pipeline[1].Base()
	require.Len(t, first.Filters, 1)
	assert.Equal(t, "origin = 'SFO'", first.Filters[0].Code)
	assert.Equal(t, 0, first.Limit)
	assert.Empty(t, last.Filters)
	assert.Equal(t, 10, last.Limit)
	assert.Equal(t, []model.OrderBy{{Field: "n", Dir: "desc"}}, last.OrderBy)
	// The named query is unchanged.
	q := m.Contents["q"].(*model.Query)
	assert.Empty(t, q.Pipeline[0].Base().Filters)
	assert.Equal(t, 0, q.Pipeline[1].Base().Limit)
}

func TestRefinementErrors(t *testing.T) {
	tests := []struct {
		run string
		msg string
	}{
		{
			"q2 + { group_by: origin }",
			"Illegal in refinement of a query with more than one stage",
		},
		{
			"q1 + { group_by: carrier }",
			"overlapping fields in refinement: carrier",
		},
		{
			"q1 + { limit: 5 }",
			"refinement cannot override existing limit",
		},
		{
			"q1 + { order_by: n }",
			"refinement cannot override existing ordering",
		},
		{
			"q1 + { select: origin }",
			"cannot refine reduce view with project view",
		},
		{
			"f -> { group_by: origin } + two",
			"named refinement `two` must have exactly one stage",
		},
	}
	const prelude = `
source: f is duckdb.table('flights') extend {
  view: two is { group_by: carrier } -> { select: carrier }
}
query: q1 is f -> { group_by: carrier; aggregate: n is count(); limit: 3; order_by: carrier }
query: q2 is f -> { group_by: carrier } -> { select: carrier }
`
	for _, tc := range tests {
		t.Run(tc.run, func(t *testing.T) {
			_, files := analyze(t, flights, prelude+"run: "+tc.run+"\n")
			assert.Equal(t, []string{tc.msg}, messages(files))
		})
	}
}

func TestRefinementMerges(t *testing.T) {
	m, files := analyze(t, flights, `
source: f is duckdb.table('flights') extend {
  measure: n is count()
  view: by_carrier is { group_by: carrier }
}
run: f -> by_carrier + { aggregate: n; limit: 5 }
`)
	requireClean(t, files)
	seg := m.QueryList[0].Pipeline[0]
	require.IsType(t, &model.Reduce{}, seg)
	base := seg.Base()
	require.Len(t, base.Fields, 2)
	assert.Equal(t, "carrier", base.Fields[0].FieldName())
	assert.Equal(t, "n", base.Fields[1].FieldName())
	assert.Equal(t, 5, base.Limit)
	assert.Len(t, base.Output.Fields, 2)
}

func TestViewAsLens(t *testing.T) {
	m, files := analyze(t, flights, `
source: f is duckdb.table('flights') extend {
  measure: n is count()
}
run: f -> carrier + n
`)
	requireClean(t, files)
	base := m.QueryList[0].Pipeline[0].Base()
	require.Len(t, base.Fields, 2)
	assert.Equal(t, &model.FieldRef{Kind: "FieldRef", Path: field.Path{"carrier"}, At: base.Fields[0].(*model.FieldRef).At}, base.Fields[0])
}

func TestNestOutputIsJoin(t *testing.T) {
	m, files := analyze(t, flights, `
source: f is duckdb.table('flights') extend {
  view: by_origin is { group_by: origin; aggregate: n is count() }
}
run: f -> { group_by: carrier; nest: by_origin; nest: top is { group_by: id; limit: 1 } }
`)
	requireClean(t, files)
	out := m.QueryList[0].Output()
	require.Len(t, out.Fields, 3)
	j, ok := out.Fields[1].(*model.JoinField)
	require.True(t, ok)
	assert.Equal(t, "many", j.Relationship)
	assert.Equal(t, "by_origin", j.Source.Name)
	assert.NotNil(t, j.Source.Field("n"))
}

func TestExpandedFieldUsageThroughJoin(t *testing.T) {
	m, files := analyze(t, flights, `
source: f is duckdb.table('flights') extend {
  join_one: c is duckdb.table('carriers') on carrier = c.code
  dimension: nick is c.nickname
}
run: f -> { group_by: nick }
`)
	requireClean(t, files)
	r := m.QueryList[0].Pipeline[0].(*model.Reduce)
	var paths []string
	for _, u := range r.ExpandedFieldUsage {
		paths = append(paths, u.Path.String())
	}
	assert.Equal(t, []string{"nick", "c.nickname", "carrier", "c.code"}, paths)
}

func TestRedefinition(t *testing.T) {
	_, files := analyze(t, flights, `
source: f is duckdb.table('flights')
source: f is duckdb.table('flights')
source: count is duckdb.table('flights')
`)
	assert.Equal(t, []string{
		"Cannot redefine 'f'",
		"Cannot redefine 'count', which is in global namespace",
	}, messages(files))
}

func TestUndefinedSuggestsName(t *testing.T) {
	_, files := analyze(t, flights, `
source: f is duckdb.table('flights')
run: f -> { group_by: carier }
`)
	msgs := messages(files)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "'carier' is not defined")
	assert.Contains(t, msgs[0], "carrier")
}

func TestSourceDefinitionsSurviveSiblingErrors(t *testing.T) {
	m, files := analyze(t, flights, `
source: bad is duckdb.table('flights') extend { dimension: x is nope }
source: good is duckdb.table('flights')
`)
	assert.Len(t, files.Diagnostics(), 1)
	assert.Nil(t, m.Source("bad"))
	assert.NotNil(t, m.Source("good"))
}

func TestPersistentSourceRegistry(t *testing.T) {
	r := &testResolver{tables: map[string]*model.TableSchema{"duckdb:select 1": schema("x", "number")}}
	child, files := analyze(t, r, `
#@ persist
source: base is duckdb.sql("select 1")
source: derived is base extend { dimension: y is 2 }
`)
	requireClean(t, files)
	id := model.MakeSourceID("base", "test.malloy")
	assert.Equal(t, &model.RegistryValue{Reference: "base"}, child.SourceRegistry[id])
	assert.Equal(t, []string{id}, child.Source("derived").DependsOn)

	r.imports = map[string]*model.ModelDef{"child.malloy": child}
	parent, files := analyze(t, r, `
import { derived } from 'child.malloy'
`)
	requireClean(t, files)
	// base is not visible in the parent but stays resolvable.
	assert.Nil(t, parent.Source("base"))
	require.NotNil(t, parent.ResolveSourceID(id))
	assert.Equal(t, "base", parent.ResolveSourceID(id).Name)
}

func TestResolveURL(t *testing.T) {
	cases := []struct{ base, ref, expected string }{
		{"test.malloy", "lib.malloy", "lib.malloy"},
		{"models/root.malloy", "lib.malloy", "models/lib.malloy"},
		{"models/root.malloy", "../lib.malloy", "lib.malloy"},
		{"models/root.malloy", "/abs/lib.malloy", "/abs/lib.malloy"},
		{"file:///m/root.malloy", "lib/child.malloy", "file:///m/lib/child.malloy"},
		{"file:///m/root.malloy", "s3://bucket/lib.malloy", "s3://bucket/lib.malloy"},
		{"", "lib.malloy", "lib.malloy"},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, ResolveURL(c.base, c.ref), "%s + %s", c.base, c.ref)
	}
}

func TestImportErrors(t *testing.T) {
	_, files := analyze(t, flights, `
import 'missing.malloy'
`)
	assert.Equal(t, []string{"import failed: 'missing.malloy not found'"}, messages(files))
}

const twoOrThree = `
source: c is compose(
  duckdb.table('a') extend { dimension: one is 1, two is 2 },
  duckdb.table('a') extend { dimension: one is 1, three is 3 }
)
`

func TestCompositeInJoin(t *testing.T) {
	m, files := analyze(t, flights, twoOrThree+`
source: f is duckdb.table('flights') extend {
  join_one: j is c on distance = j.x
}
run: f -> { group_by: j.three }
`)
	requireClean(t, files)
	resolved := m.QueryList[0].CompositeResolved
	require.NotNil(t, resolved)
	j, ok := resolved.Field("j").(*model.JoinField)
	require.True(t, ok)
	assert.NotEqual(t, model.SourceComposite, j.Source.Type)
	assert.NotNil(t, j.Source.Field("three"))
	assert.Nil(t, j.Source.Field("two"))
}

func TestCompositeInJoinUnsatisfiable(t *testing.T) {
	_, files := analyze(t, flights, twoOrThree+`
source: f is duckdb.table('flights') extend {
  join_one: j is c on distance = j.x
}
run: f -> { group_by: j.two, j.three }
`)
	msgs := messages(files)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "This operation uses field `j.three`, resulting in invalid usage of the composite source, as there is no composite input source which defines all of `j.two` and `j.three`")
}

func TestNestedCompositeCandidate(t *testing.T) {
	m, files := analyze(t, flights, `
source: c is compose(
  compose(
    duckdb.table('a') extend { dimension: one is 1, two is 2 },
    duckdb.table('a') extend { dimension: one is 1, three is 3 }
  ),
  duckdb.table('a') extend { dimension: one is 1, four is 4 }
)
run: c -> { group_by: two }
run: c -> { group_by: three }
run: c -> { group_by: four }
`)
	requireClean(t, files)
	require.Len(t, m.QueryList, 3)
	for k, name := range []string{"two", "three", "four"} {
		resolved := m.QueryList[k].CompositeResolved
		require.NotNil(t, resolved, name)
		assert.NotEqual(t, model.SourceComposite, resolved.Type, name)
		assert.NotNil(t, resolved.Field(name), name)
	}
}

func TestCompositeCandidatesWithFailingJoins(t *testing.T) {
	_, files := analyze(t, flights, twoOrThree+`
source: g is compose(
  duckdb.table('flights') extend { join_one: j is c on distance = j.x },
  duckdb.table('flights') extend { join_one: j is c on distance = j.x; dimension: extra is 1 }
)
run: g -> { group_by: j.two, j.three }
`)
	msgs := messages(files)
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "This operation results in invalid usage of the composite source, as join"), msgs[0])
	assert.Contains(t, msgs[0], "could not be resolved")
}
