package outputflags

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/brimdata/semq/compiler"
	"github.com/brimdata/semq/compiler/model"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResponse(t *testing.T) {
	resp := compiler.Translate("m.malloy", "source: f is duckdb.table('t')\n", compiler.Update{
		Tables: map[string]*model.TableSchema{"duckdb:t": {Columns: []model.Column{{Name: "x", Type: model.TypeNumber}}}},
	})
	require.NotNil(t, resp.Translated)

	f := &Flags{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.SetFlags(fs)
	require.NoError(t, fs.Parse([]string{"-f", "text", "-o", filepath.Join(t.TempDir(), "out")}))
	require.NoError(t, f.Init())
	var buf bytes.Buffer
	require.NoError(t, f.WriteResponse(&buf, resp))
	assert.Equal(t, "source: f is duckdb.table('t')\n  x number\n", buf.String())

	f.Format = "json"
	f.indent = 0
	buf.Reset()
	require.NoError(t, f.WriteResponse(&buf, resp))
	assert.Contains(t, buf.String(), `"final":true`)
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	f := &Flags{Format: "csv"}
	assert.EqualError(t, f.Init(), `unknown output format "csv"`)
}
