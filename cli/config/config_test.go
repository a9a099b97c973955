package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/units"
	"github.com/brimdata/semq/connection"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaults(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Fetch.Concurrency)
	assert.Equal(t, "localhost:9867", c.Service.Addr)
	assert.Equal(t, []string{"*"}, c.Service.CORSOrigins)
	assert.Equal(t, 10*units.MiB, c.Runner().MaxImportSize)
	assert.Equal(t, 30*time.Second, c.Runner().CacheTTL)
}

func TestPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "semq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connections:
  duckdb:
    driver: static
    path: schemas.yaml
fetch:
  concurrency: 2
  max_rounds: 5
service:
  addr: ":80"
`), 0666))
	t.Setenv("SEMQ_FETCH__MAX_ROUNDS", "7")
	t.Setenv("SEMQ_SERVICE__ADDR", ":81")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	SetFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--addr", ":82"}))
	c, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, map[string]connection.Spec{"duckdb": {Driver: "static", Path: "schemas.yaml"}}, c.Connections)
	assert.Equal(t, 2, c.Fetch.Concurrency)
	assert.Equal(t, 7, c.Fetch.MaxRounds)
	assert.Equal(t, ":82", c.Service.Addr)
	// Unset flags leave the other sources alone.
	assert.Equal(t, "info", c.Log.Level)
}

func TestInvalid(t *testing.T) {
	t.Setenv("SEMQ_FETCH__MAX_IMPORT_SIZE", "lots")
	_, err := Load(nil)
	assert.ErrorContains(t, err, "fetch.max_import_size")
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "semq.log")
	logger, err := Log{Level: "debug", File: path, MaxSizeMB: 1}.NewLogger()
	require.NoError(t, err)
	logger.Debug("hello", zap.String("k", "v"))
	require.NoError(t, logger.Sync())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)

	_, err = Log{Level: "loud"}.NewLogger()
	assert.Error(t, err)
}
