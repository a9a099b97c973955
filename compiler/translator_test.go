package compiler

import (
	"strings"
	"testing"

	"github.com/brimdata/semq/compiler/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flightsSchema() *model.TableSchema {
	return &model.TableSchema{
		Connection: "duckdb",
		Columns: []model.Column{
			{Name: "carrier", Type: model.TypeString},
			{Name: "distance", Type: model.TypeNumber},
		},
	}
}

func messages(problems []Diagnostic) []string {
	var out []string
	for _, d := range problems {
		out = append(out, d.Message)
	}
	return out
}

func TestTranslatorNeedsRootText(t *testing.T) {
	tr := NewTranslator("file:///m/root.malloy")
	resp := tr.Step()
	require.NotNil(t, resp.Needs)
	assert.Equal(t, []string{"file:///m/root.malloy"}, resp.Needs.URLs)
	assert.False(t, resp.Final)
	assert.Equal(t, "awaiting", tr.state.String())
}

func TestTranslatorRounds(t *testing.T) {
	const root = "file:///m/root.malloy"
	tr := NewTranslator(root, WithText(`
import 'lib.malloy'
source: f2 is f extend { dimension: c2 is carrier }
run: f2 -> { group_by: c2 }
`))
	resp := tr.Step()
	require.NotNil(t, resp.Needs)
	assert.Equal(t, []string{"file:///m/lib.malloy"}, resp.Needs.URLs)
	assert.Empty(t, resp.Needs.Tables)

	tr.Update(Update{URLs: map[string]string{
		"file:///m/lib.malloy": "source: f is duckdb.table('flights')\n",
	}})
	resp = tr.Step()
	require.NotNil(t, resp.Needs)
	assert.Empty(t, resp.Needs.URLs)
	assert.Equal(t, []string{"duckdb:flights"}, resp.Needs.Tables)

	// Supplying the same values again is harmless.
	u := Update{Tables: map[string]*model.TableSchema{"duckdb:flights": flightsSchema()}}
	tr.Update(u)
	tr.Update(u)
	resp = tr.Step()
	require.True(t, resp.Final)
	require.Nil(t, resp.Needs)
	require.Empty(t, resp.Problems)
	require.NotNil(t, resp.Translated)
	assert.True(t, resp.ModelWasModified)
	m := resp.Translated.ModelDef
	assert.NotNil(t, m.Source("f"))
	assert.NotNil(t, m.Source("f2"))
	require.Len(t, resp.Translated.QueryList, 1)
	require.Len(t, m.Dependencies, 1)
	assert.Equal(t, "file:///m/lib.malloy", m.Dependencies[0].URL)

	// Later steps return the same response and updates are ignored.
	tr.Update(Update{Errors: Errors{Tables: map[string]string{"duckdb:flights": "gone"}}})
	assert.Same(t, resp, tr.Step())
}

func TestTranslateAllUpFront(t *testing.T) {
	resp := Translate("root.malloy", "source: f is duckdb.table('flights')\nrun: f -> { group_by: carrier }\n", Update{
		Tables: map[string]*model.TableSchema{"duckdb:flights": flightsSchema()},
	})
	require.True(t, resp.Final)
	require.NotNil(t, resp.Translated)
	assert.Len(t, resp.Translated.QueryList, 1)
}

func TestTranslatorRootMissing(t *testing.T) {
	tr := NewTranslator("root.malloy")
	tr.Update(Update{Errors: Errors{URLs: map[string]string{"root.malloy": "no such file"}}})
	resp := tr.Step()
	require.True(t, resp.Final)
	assert.Nil(t, resp.Translated)
	assert.Equal(t, []string{"Source for 'root.malloy' missing: no such file"}, messages(resp.Problems))
}

func TestTranslatorSchemaError(t *testing.T) {
	resp := Translate("root.malloy", "source: f is duckdb.table('flights')\n", Update{
		Errors: Errors{Tables: map[string]string{"duckdb:flights": "permission denied"}},
	})
	require.True(t, resp.Final)
	assert.Nil(t, resp.Translated)
	require.Len(t, resp.Problems, 1)
	d := resp.Problems[0]
	assert.Equal(t, "failed to get schema for table 'duckdb:flights': permission denied", d.Message)
	assert.Equal(t, "error", d.Severity)
	assert.Equal(t, "root.malloy", d.At.URL)
	assert.Equal(t, model.Position{Line: 0, Character: 13}, d.At.Range.Start)
	assert.Equal(t, "root.malloy:1:14: error: failed to get schema for table 'duckdb:flights': permission denied", d.String())
}

func TestTranslatorImportFailed(t *testing.T) {
	resp := Translate("root.malloy", "import 'lib.malloy'\n", Update{
		Errors: Errors{URLs: map[string]string{"lib.malloy": "not found"}},
	})
	require.True(t, resp.Final)
	assert.Equal(t, []string{"import failed: 'not found'"}, messages(resp.Problems))
}

func TestTranslatorCircularImport(t *testing.T) {
	resp := Translate("a.malloy", "import 'b.malloy'\n", Update{
		URLs: map[string]string{"b.malloy": "import 'a.malloy'\n"},
	})
	require.True(t, resp.Final)
	assert.Equal(t, []string{"Circular import of 'a.malloy'"}, messages(resp.Problems))
	// The problem is reported against the importing document.
	assert.Equal(t, "b.malloy", resp.Problems[0].At.URL)
}

func TestTranslatorProblemsInChildDocument(t *testing.T) {
	resp := Translate("root.malloy", "import 'lib.malloy'\nsource: g is duckdb.table('nope')\n", Update{
		URLs: map[string]string{"lib.malloy": "source: f is duckdb.table('nope')\n"},
		Errors: Errors{Tables: map[string]string{
			"duckdb:nope": "missing",
		}},
	})
	require.Len(t, resp.Problems, 2)
	// The root document comes first in the arena.
	assert.Equal(t, "root.malloy", resp.Problems[0].At.URL)
	assert.Equal(t, "lib.malloy", resp.Problems[1].At.URL)
}

func TestTranslatorPersistentSourceThroughImports(t *testing.T) {
	const (
		root  = "file:///m/root.malloy"
		child = "file:///m/child.malloy"
		grand = "file:///m/grand.malloy"
	)
	resp := Translate(root, `
import 'child.malloy'
source: top is mid extend { dimension: w is 4 }
`, Update{
		URLs: map[string]string{
			child: "import { derived } from 'grand.malloy'\nsource: mid is derived extend { dimension: z is 3 }\n",
			grand: "#@ persist\nsource: g is duckdb.sql(\"select 1\")\nsource: derived is g extend { dimension: y is 2 }\n",
		},
		CompileSQL: map[string]*model.TableSchema{
			"duckdb:select 1": {Connection: "duckdb", Columns: []model.Column{{Name: "x", Type: model.TypeNumber}}},
		},
	})
	require.True(t, resp.Final)
	require.Empty(t, messages(resp.Problems))
	require.NotNil(t, resp.Translated)
	m := resp.Translated.ModelDef
	id := model.MakeSourceID("g", grand)
	var ids []string
	for k := range m.SourceRegistry {
		ids = append(ids, k)
	}
	assert.Equal(t, []string{id}, ids)
	g := m.ResolveSourceID(id)
	require.NotNil(t, g)
	assert.Equal(t, "g", g.Name)
	// The persistent source is reachable only through the registry.
	assert.NotContains(t, m.Contents, "g")
	assert.NotContains(t, m.Contents, "derived")
	assert.Contains(t, m.Contents, "mid")
	assert.Contains(t, m.Contents, "top")
	assert.Equal(t, []string{id}, m.Source("top").DependsOn)
	assert.Equal(t, []string{root, child, grand}, m.Dependencies.Flatten(root))
}

func TestTranslatorSyntaxError(t *testing.T) {
	resp := Translate("root.malloy", "source: f is\n", Update{})
	require.True(t, resp.Final)
	assert.Nil(t, resp.Translated)
	require.NotEmpty(t, resp.Problems)
	assert.True(t, strings.HasPrefix(resp.Problems[0].Message, "syntax error"))
}

func TestTranslatorBaseModel(t *testing.T) {
	tables := Update{Tables: map[string]*model.TableSchema{"duckdb:flights": flightsSchema()}}
	first := Translate("root.malloy", "source: f is duckdb.table('flights')\n", tables)
	require.NotNil(t, first.Translated)
	base := first.Translated.ModelDef

	resp := Translate("root.malloy", "run: f -> { group_by: carrier }\n", Update{}, WithBaseModel(base))
	require.NotNil(t, resp.Translated)
	assert.False(t, resp.ModelWasModified)
	assert.Len(t, resp.Translated.QueryList, 1)

	resp = Translate("root.malloy", "source: g is f\n", Update{}, WithBaseModel(base))
	require.NotNil(t, resp.Translated)
	assert.True(t, resp.ModelWasModified)
}

func TestTranslatorWarningsDoNotFail(t *testing.T) {
	resp := Translate("root.malloy", "#@ persist\nsource: f is duckdb.table('flights')\n", Update{
		Tables: map[string]*model.TableSchema{"duckdb:flights": flightsSchema()},
	})
	require.NotNil(t, resp.Translated)
	require.Len(t, resp.Problems, 1)
	assert.Equal(t, "warn", resp.Problems[0].Severity)
}

func TestFormatProblems(t *testing.T) {
	problems := []Diagnostic{
		{Severity: "error", Message: "one"},
		{Severity: "warn", Message: "two", At: &model.Location{URL: "x", Range: model.Range{Start: model.Position{Line: 2, Character: 4}}}},
	}
	assert.Equal(t, "error: one\nx:3:5: warn: two\n", FormatProblems(problems))
}
