package runner_test

import (
	"context"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/connection"
	"github.com/brimdata/semq/connection/mock"
	"github.com/brimdata/semq/pkg/storage"
	"github.com/brimdata/semq/runner"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var flights = &model.TableSchema{Columns: []model.Column{
	{Name: "carrier", Type: model.TypeString},
	{Name: "distance", Type: model.TypeNumber},
}}

func writeFiles(t *testing.T, files map[string]string) string {
	dir := t.TempDir()
	for name, text := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0666))
	}
	return dir
}

func rootURL(t *testing.T, path string) string {
	u, err := storage.ParseURI(path)
	require.NoError(t, err)
	return u.String()
}

func TestTranslateFetchesImportsAndSchemas(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"root.malloy": "import 'lib.malloy'\nrun: f -> { group_by: carrier }\n",
		"lib.malloy":  "source: f is duckdb.table('flights')\n",
	})
	ctrl := gomock.NewController(t)
	f := mock.NewMockFetcher(ctrl)
	// The second translation is answered from the cache.
	f.EXPECT().TableSchema(gomock.Any(), "flights").Return(flights, nil).Times(1)
	reg := connection.NewRegistry()
	reg.Add("duckdb", f)

	promReg := prometheus.NewRegistry()
	metrics := runner.NewMetrics(promReg)
	r, err := runner.New(storage.NewLocalEngine(), reg, runner.Config{}, runner.WithMetrics(metrics))
	require.NoError(t, err)

	url := rootURL(t, filepath.Join(dir, "root.malloy"))
	for range 2 {
		resp, err := r.Translate(t.Context(), url)
		require.NoError(t, err)
		require.Empty(t, resp.Problems)
		require.NotNil(t, resp.Translated)
		assert.Len(t, resp.Translated.QueryList, 1)
	}
	// Three rounds each: the root, the import, the table.
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.RoundsCounter()))
}

func TestTranslateReportsFetchErrors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"root.malloy": "import 'missing.malloy'\nsource: f is duckdb.table('flights')\n",
	})
	ctrl := gomock.NewController(t)
	f := mock.NewMockFetcher(ctrl)
	f.EXPECT().TableSchema(gomock.Any(), "flights").Return(nil, errors.New("permission denied"))
	reg := connection.NewRegistry()
	reg.Add("duckdb", f)
	r, err := runner.New(storage.NewLocalEngine(), reg, runner.Config{Concurrency: 1})
	require.NoError(t, err)

	resp, err := r.Translate(t.Context(), rootURL(t, filepath.Join(dir, "root.malloy")))
	require.NoError(t, err)
	require.True(t, resp.Final)
	assert.Nil(t, resp.Translated)
	var msgs []string
	for _, d := range resp.Problems {
		msgs = append(msgs, d.Message)
	}
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "import failed:")
	assert.Contains(t, msgs[0], "file does not exist")
	assert.Equal(t, "failed to get schema for table 'duckdb:flights': permission denied", msgs[1])
}

func TestTranslateTooManyRounds(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.malloy": "import 'b.malloy'\n",
		"b.malloy": "import 'c.malloy'\n",
		"c.malloy": "source: f is duckdb.table('flights')\n",
	})
	r, err := runner.New(storage.NewLocalEngine(), connection.NewRegistry(), runner.Config{MaxRounds: 2})
	require.NoError(t, err)
	_, err = r.Translate(t.Context(), rootURL(t, filepath.Join(dir, "a.malloy")))
	assert.ErrorIs(t, err, runner.ErrTooManyRounds)
}

func TestTranslateCanceled(t *testing.T) {
	r, err := runner.New(storage.NewLocalEngine(), connection.NewRegistry(), runner.Config{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = r.Translate(ctx, "file:///nowhere/root.malloy")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNeeds(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"root.malloy": "import 'lib.malloy'\nsource: f is duckdb.table('flights')\nsql: s is duckdb.sql(\"select 1\")\n",
	})
	r, err := runner.New(storage.NewLocalEngine(), connection.NewRegistry(), runner.Config{})
	require.NoError(t, err)
	needs, err := r.Needs(t.Context(), rootURL(t, filepath.Join(dir, "root.malloy")))
	require.NoError(t, err)
	assert.Equal(t, []string{rootURL(t, filepath.Join(dir, "lib.malloy"))}, needs.URLs)
	assert.Equal(t, []string{"duckdb:flights"}, needs.Tables)
	assert.Equal(t, []string{"duckdb:select 1"}, needs.CompileSQL)

	_, err = r.Needs(t.Context(), rootURL(t, filepath.Join(dir, "missing.malloy")))
	assert.Error(t, err)
}

func flightsRegistry() *connection.Registry {
	reg := connection.NewRegistry()
	reg.Add("duckdb", &connection.StaticFetcher{
		Tables: map[string][]model.Column{"flights": flights.Columns},
	})
	return reg
}

func TestVerifyDetectsChangedImport(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"root.malloy": "import 'lib.malloy'\nrun: g -> { group_by: carrier }\n",
		"lib.malloy":  "source: g is duckdb.table('flights')\n",
	})
	r, err := runner.New(storage.NewLocalEngine(), flightsRegistry(), runner.Config{})
	require.NoError(t, err)
	url := rootURL(t, filepath.Join(dir, "root.malloy"))
	resp, inputs, err := r.TranslateInputs(t.Context(), url)
	require.NoError(t, err)
	require.Empty(t, resp.Problems)
	assert.ElementsMatch(t, []string{
		"url:" + url,
		"url:" + rootURL(t, filepath.Join(dir, "lib.malloy")),
		"table:duckdb:flights",
	}, slices.Collect(maps.Keys(inputs)))

	fresh, err := r.Verify(t.Context(), inputs)
	require.NoError(t, err)
	assert.True(t, fresh)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.malloy"), []byte("source: h is duckdb.table('flights')\n"), 0666))
	fresh, err = r.Verify(t.Context(), inputs)
	require.NoError(t, err)
	assert.False(t, fresh)

	// Verify refreshed the cached import.
	resp, err = r.Translate(t.Context(), url)
	require.NoError(t, err)
	require.Len(t, resp.Problems, 1)
	assert.Contains(t, resp.Problems[0].Message, "'g' is not defined")
}

func TestCacheTTL(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"root.malloy": "source: f is duckdb.table('flights')\n",
	})
	r, err := runner.New(storage.NewLocalEngine(), flightsRegistry(), runner.Config{CacheTTL: time.Nanosecond})
	require.NoError(t, err)
	url := rootURL(t, filepath.Join(dir, "root.malloy"))
	resp, err := r.Translate(t.Context(), url)
	require.NoError(t, err)
	require.Empty(t, resp.Problems)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "root.malloy"), []byte("source: f is duckdb.table('nope')\n"), 0666))
	resp, err = r.Translate(t.Context(), url)
	require.NoError(t, err)
	assert.Len(t, resp.Problems, 1)
}

func TestARCPlanCache(t *testing.T) {
	c, err := runner.NewARCPlanCache(2)
	require.NoError(t, err)
	key := runner.PlanKey("a.malloy", "run: f -> x", "")
	assert.NotEqual(t, key, runner.PlanKey("a.malloy", "run: f -> x", "base"))
	_, ok, err := c.Get(t.Context(), key)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.Put(t.Context(), key, []byte(`{"final":true}`)))
	b, ok, err := c.Get(t.Context(), key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"final":true}`, string(b))
}

func TestRedisPlanCache(t *testing.T) {
	addr := os.Getenv("SEMQ_TEST_REDIS")
	if addr == "" {
		t.Skip("SEMQ_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	c := runner.NewRedisPlanCache(client, time.Minute)
	key := runner.PlanKey(t.Name(), time.Now().String(), "")
	_, ok, err := c.Get(t.Context(), key)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.Put(t.Context(), key, []byte("plan")))
	b, ok, err := c.Get(t.Context(), key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "plan", string(b))
}
