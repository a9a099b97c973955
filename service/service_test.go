package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brimdata/semq/api"
	"github.com/brimdata/semq/api/client"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/connection"
	"github.com/brimdata/semq/pkg/storage"
	"github.com/brimdata/semq/runner"
	"github.com/brimdata/semq/service"
	"github.com/golang-jwt/jwt/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const doc = `source: f is duckdb.table('flights')
query: by_carrier is f -> { group_by: carrier; aggregate: n is count() }
run: f -> { group_by: carrier }
`

type testService struct {
	*client.Connection
	url string
}

func newService(t *testing.T, conf service.Config) *testService {
	reg := connection.NewRegistry()
	reg.Add("duckdb", &connection.StaticFetcher{
		Tables: map[string][]model.Column{
			"flights": {
				{Name: "carrier", Type: model.TypeString},
				{Name: "distance", Type: model.TypeNumber},
			},
		},
	})
	promReg := prometheus.NewRegistry()
	r, err := runner.New(storage.NewLocalEngine(), reg, runner.Config{}, runner.WithMetrics(runner.NewMetrics(promReg)))
	require.NoError(t, err)
	plans, err := runner.NewARCPlanCache(16)
	require.NoError(t, err)
	conf.Logger = zaptest.NewLogger(t)
	conf.Version = "v1.2.3"
	core, err := service.NewCore(conf, r, plans, promReg)
	require.NoError(t, err)
	srv := httptest.NewServer(core)
	t.Cleanup(srv.Close)
	return &testService{Connection: client.NewConnectionTo(srv.URL), url: srv.URL}
}

func (s *testService) post(t *testing.T, path string, body any, header http.Header) *http.Response {
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, s.url+path, bytes.NewReader(b))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestVersion(t *testing.T) {
	s := newService(t, service.Config{})
	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)
}

func TestTranslate(t *testing.T) {
	s := newService(t, service.Config{})
	resp, err := s.Translate(context.Background(), api.TranslateRequest{
		URL:  "file:///m/root.malloy",
		Text: doc,
	})
	require.NoError(t, err)
	assert.True(t, resp.Final)
	assert.Empty(t, resp.Problems)
	assert.True(t, resp.ModelWasModified)
	require.NotEmpty(t, resp.Translated)
	var translated struct {
		QueryList []json.RawMessage `json:"query_list"`
	}
	require.NoError(t, json.Unmarshal(resp.Translated, &translated))
	assert.Len(t, translated.QueryList, 1)
}

func TestTranslateText(t *testing.T) {
	s := newService(t, service.Config{})
	out, err := s.TranslateText(context.Background(), api.TranslateRequest{
		URL:  "file:///m/root.malloy",
		Text: "source: f is duckdb.table('flights')\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "source: f is duckdb.table('flights')\n  carrier string\n  distance number\n", out)
}

func TestTranslateProblems(t *testing.T) {
	s := newService(t, service.Config{})
	resp, err := s.Translate(context.Background(), api.TranslateRequest{
		URL:  "file:///m/root.malloy",
		Text: "source: g is duckdb.table('nope')\n",
	})
	require.NoError(t, err)
	assert.True(t, resp.Final)
	assert.Empty(t, resp.Translated)
	require.Len(t, resp.Problems, 1)
	assert.Equal(t, "failed to get schema for table 'duckdb:nope': table nope not found", resp.Problems[0].Message)
}

func TestTranslateInlineImports(t *testing.T) {
	s := newService(t, service.Config{})
	resp, err := s.Translate(context.Background(), api.TranslateRequest{
		URL:  "file:///m/root.malloy",
		Text: "import 'lib.malloy'\nrun: f -> { group_by: carrier }\n",
		Imports: map[string]string{
			"file:///m/lib.malloy": "source: f is duckdb.table('flights')\n",
		},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Problems)
	assert.NotEmpty(t, resp.Translated)
}

func TestTranslateMissingURL(t *testing.T) {
	s := newService(t, service.Config{})
	_, err := s.Translate(context.Background(), api.TranslateRequest{Text: doc})
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid", apiErr.Type)
	assert.Equal(t, "url is required", apiErr.Message)
}

func TestPlanCache(t *testing.T) {
	s := newService(t, service.Config{})
	req := api.TranslateRequest{URL: "file:///m/root.malloy", Text: doc}
	first := s.post(t, "/translate", req, nil)
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "miss", first.Header.Get(api.PlanCacheHeader))
	b1, err := io.ReadAll(first.Body)
	require.NoError(t, err)

	second := s.post(t, "/translate", req, nil)
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, "hit", second.Header.Get(api.PlanCacheHeader))
	b2, err := io.ReadAll(second.Body)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)

	// Inline imports bypass the cache.
	req.Imports = map[string]string{"file:///m/x.malloy": ""}
	third := s.post(t, "/translate", req, nil)
	assert.Empty(t, third.Header.Get(api.PlanCacheHeader))
}

func TestPlanCacheImportEdited(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib.malloy")
	require.NoError(t, os.WriteFile(lib, []byte("source: g is duckdb.table('flights')\n"), 0666))
	s := newService(t, service.Config{})
	req := api.TranslateRequest{
		URL:  storage.MustParseURI(filepath.Join(dir, "root.malloy")).String(),
		Text: "import 'lib.malloy'\nrun: g -> { group_by: carrier }\n",
	}
	first := s.post(t, "/translate", req, nil)
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "miss", first.Header.Get(api.PlanCacheHeader))
	second := s.post(t, "/translate", req, nil)
	assert.Equal(t, "hit", second.Header.Get(api.PlanCacheHeader))

	require.NoError(t, os.WriteFile(lib, []byte("source: h is duckdb.table('flights')\n"), 0666))
	third := s.post(t, "/translate", req, nil)
	require.Equal(t, http.StatusOK, third.StatusCode)
	assert.Equal(t, "miss", third.Header.Get(api.PlanCacheHeader))
	var resp api.TranslateResponse
	require.NoError(t, json.NewDecoder(third.Body).Decode(&resp))
	assert.Empty(t, resp.Translated)
	require.Len(t, resp.Problems, 1)
	assert.Contains(t, resp.Problems[0].Message, "'g' is not defined")
}

func TestDescribe(t *testing.T) {
	s := newService(t, service.Config{})
	resp := s.post(t, "/describe", api.TranslateRequest{URL: "file:///m/root.malloy", Text: doc}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info struct {
		Queries []struct {
			Name   string `json:"name"`
			Stages []struct {
				Kind string `json:"kind"`
			} `json:"stages"`
		} `json:"queries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	require.Len(t, info.Queries, 2)
	assert.Equal(t, "by_carrier", info.Queries[0].Name)
	assert.Equal(t, "", info.Queries[1].Name)
	require.Len(t, info.Queries[0].Stages, 1)
	assert.Equal(t, "reduce", info.Queries[0].Stages[0].Kind)
}

func TestDescribeFailedTranslation(t *testing.T) {
	s := newService(t, service.Config{})
	resp := s.post(t, "/describe", api.TranslateRequest{URL: "file:///m/root.malloy", Text: "source: f is\n"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var apiErr api.Error
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.NotEmpty(t, apiErr.Problems)
}

func TestAuth(t *testing.T) {
	const secret = "sekret"
	s := newService(t, service.Config{Auth: service.AuthConfig{Secret: secret, Audience: "semq"}})
	req := api.TranslateRequest{URL: "file:///m/root.malloy", Text: doc}

	_, err := s.Translate(context.Background(), req)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "unauthorized", apiErr.Type)

	// Version is served without a token.
	_, err = s.Version(context.Background())
	require.NoError(t, err)

	sign := func(key, aud string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Audience: jwt.ClaimStrings{aud},
		})
		signed, err := token.SignedString([]byte(key))
		require.NoError(t, err)
		return signed
	}
	s.SetAuthToken(sign("wrong", "semq"))
	_, err = s.Translate(context.Background(), req)
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, strings.HasPrefix(apiErr.Message, "invalid token"))

	s.SetAuthToken(sign(secret, "other"))
	_, err = s.Translate(context.Background(), req)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid token audience", apiErr.Message)

	s.SetAuthToken(sign(secret, "semq"))
	resp, err := s.Translate(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Translated)
}

func TestRequestID(t *testing.T) {
	s := newService(t, service.Config{})
	resp := s.post(t, "/translate", api.TranslateRequest{URL: "file:///m/root.malloy", Text: doc}, http.Header{
		api.RequestIDHeader: {"abc"},
	})
	assert.Equal(t, "abc", resp.Header.Get(api.RequestIDHeader))
	resp = s.post(t, "/translate", api.TranslateRequest{URL: "file:///m/root.malloy", Text: doc}, nil)
	assert.Len(t, resp.Header.Get(api.RequestIDHeader), 27)
}

func TestMetrics(t *testing.T) {
	s := newService(t, service.Config{})
	_, err := s.Translate(context.Background(), api.TranslateRequest{URL: "file:///m/root.malloy", Text: doc})
	require.NoError(t, err)
	resp, err := http.Get(s.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), `semq_translations_total{outcome="translated"} 1`)
}

func TestNotFound(t *testing.T) {
	s := newService(t, service.Config{})
	resp, err := http.Get(s.url + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
