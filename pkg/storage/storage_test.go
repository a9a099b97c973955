package storage

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	u, err := ParseURI("s3://bucket/dir/model.malloy")
	require.NoError(t, err)
	assert.Equal(t, S3Scheme, u.SchemeOf())
	assert.Equal(t, "bucket", u.Bucket())
	assert.Equal(t, "dir/model.malloy", u.Key())

	u, err = ParseURI("relative/model.malloy")
	require.NoError(t, err)
	assert.Equal(t, FileScheme, u.SchemeOf())
	assert.True(t, filepath.IsAbs(u.Filepath()))

	_, err = ParseURI("")
	assert.Error(t, err)
}

func TestFileReadText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.malloy")
	require.NoError(t, os.WriteFile(path, []byte("source: s is duckdb.table('t')\n"), 0666))
	e := NewLocalEngine()
	u := MustParseURI(path)
	text, err := ReadText(t.Context(), e, u, 0)
	require.NoError(t, err)
	assert.Equal(t, "source: s is duckdb.table('t')\n", text)

	_, err = ReadText(t.Context(), e, u, 8)
	assert.ErrorIs(t, err, ErrTooLarge)

	ok, err := e.Exists(t.Context(), MustParseURI(filepath.Join(dir, "missing.malloy")))
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = ReadText(t.Context(), e, MustParseURI(filepath.Join(dir, "missing.malloy")), 0)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestUnsupportedScheme(t *testing.T) {
	_, err := NewLocalEngine().Get(t.Context(), MustParseURI("s3://b/k"))
	assert.ErrorContains(t, err, "unsupported URI scheme")
}

func TestStdinGetReturnsWorkingReaderAfterClose(t *testing.T) {
	e := NewStdioEngine()
	u := MustParseURI("stdio:stdin")
	r, err := e.Get(t.Context(), u)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	r, err = e.Get(t.Context(), u)
	require.NoError(t, err)
	_, err = r.Read(nil)
	require.NoError(t, err, "zero-length read should succeed")
}

func TestHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/m.malloy" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "run: s -> { group_by: x }\n")
	}))
	defer srv.Close()
	e := NewRemoteEngine()
	text, err := ReadText(t.Context(), e, MustParseURI(srv.URL+"/m.malloy"), 0)
	require.NoError(t, err)
	assert.Equal(t, "run: s -> { group_by: x }\n", text)

	ok, err := e.Exists(t.Context(), MustParseURI(srv.URL+"/other.malloy"))
	require.NoError(t, err)
	assert.False(t, ok)
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string]string
}

func (f *fakeS3) GetObjectWithContext(_ context.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(body))}, nil
}

func TestS3(t *testing.T) {
	e := NewRouter()
	e.Enable(S3Scheme, NewS3WithClient(&fakeS3{objects: map[string]string{"models/a.malloy": "import 'b.malloy'\n"}}))
	text, err := ReadText(t.Context(), e, MustParseURI("s3://models/a.malloy"), 0)
	require.NoError(t, err)
	assert.Equal(t, "import 'b.malloy'\n", text)

	_, err = ReadText(t.Context(), e, MustParseURI("s3://models/b.malloy"), 0)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
