package describe_test

import (
	"encoding/json"
	"testing"

	"github.com/brimdata/semq/compiler"
	"github.com/brimdata/semq/compiler/describe"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/pkg/field"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func translate(t *testing.T, text string) *model.ModelDef {
	columns := []model.Column{
		{Name: "carrier", Type: model.TypeString},
		{Name: "distance", Type: model.TypeNumber},
	}
	resp := compiler.Translate("test.malloy", text, compiler.Update{
		Tables: map[string]*model.TableSchema{
			"duckdb:flights": {Columns: columns},
			"duckdb:a":       {Columns: columns},
		},
	})
	require.Empty(t, resp.Problems)
	require.NotNil(t, resp.Translated)
	return resp.Translated.ModelDef
}

func TestAnalyze(t *testing.T) {
	m := translate(t, `
source: f is duckdb.table('flights')
query: top is f -> { group_by: carrier; aggregate: n is count(); limit: 10 }
run: f -> { group_by: carrier }
`)
	info := describe.Analyze(m)
	require.Len(t, info.Queries, 2)

	top := info.Queries[0]
	assert.Equal(t, "top", top.Name)
	assert.Equal(t, &describe.Table{Kind: "Table", Connection: "duckdb", Path: "flights"}, top.Source)
	assert.Nil(t, top.Resolved)
	require.Len(t, top.Stages, 1)
	stage := top.Stages[0]
	assert.Equal(t, "reduce", stage.Kind)
	assert.Equal(t, field.List{field.New("carrier")}, stage.AggregationKeys)
	assert.True(t, stage.Usage.Has(field.New("carrier")))
	assert.Equal(t, 10, stage.Limit)

	assert.Equal(t, "", info.Queries[1].Name)
}

func TestAnalyzeComposite(t *testing.T) {
	m := translate(t, `
source: c is compose(
  duckdb.table('a') extend { dimension: one is 1 },
  duckdb.table('flights') extend { dimension: one is 1, two is 2 }
)
run: c -> { group_by: two }
`)
	info := describe.Analyze(m)
	require.Len(t, info.Queries, 1)
	q := info.Queries[0]
	composite, ok := q.Source.(*describe.Composite)
	require.True(t, ok)
	assert.Len(t, composite.Candidates, 2)
	assert.Equal(t, &describe.Table{Kind: "Table", Connection: "duckdb", Path: "flights"}, q.Resolved)
}

func TestAnalyzeQuerySource(t *testing.T) {
	m := translate(t, `
source: f is duckdb.table('flights')
query: by_carrier is f -> { group_by: carrier; aggregate: n is count() }
run: by_carrier -> { select: carrier, n }
`)
	info := describe.Analyze(m)
	require.Len(t, info.Queries, 2)
	// Running a named query with a refinement appends a stage to its
	// pipeline.
	q := info.Queries[1]
	assert.Equal(t, &describe.Table{Kind: "Table", Connection: "duckdb", Path: "flights"}, q.Source)
	require.Len(t, q.Stages, 2)
	assert.Equal(t, "reduce", q.Stages[0].Kind)
	require.Len(t, q.Stages[0].AggregationKeys, 1)
	assert.Equal(t, "carrier", q.Stages[0].AggregationKeys[0].String())
	assert.Equal(t, "project", q.Stages[1].Kind)
	assert.Nil(t, q.Stages[1].AggregationKeys)
}

func TestAnalyzeEmptyKeys(t *testing.T) {
	m := translate(t, "source: f is duckdb.table('flights')\nrun: f -> { aggregate: n is count() }\n")
	info := describe.Analyze(m)
	require.Len(t, info.Queries, 1)
	b, err := json.Marshal(info.Queries[0].Stages[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"aggregation_keys":[]`)
}
