// Package storage reads the text of imported documents from the file
// system, over HTTP, or from S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/alecthomas/units"
)

var ErrTooLarge = errors.New("document too large")

type Reader interface {
	io.ReadCloser
}

type Sizer interface {
	Size() (int64, error)
}

type Engine interface {
	Get(context.Context, *URI) (Reader, error)
	Exists(context.Context, *URI) (bool, error)
}

// Router dispatches to an engine by URI scheme.
type Router struct {
	engines map[Scheme]Engine
}

var _ Engine = (*Router)(nil)

func NewRouter() *Router {
	return &Router{engines: make(map[Scheme]Engine)}
}

// NewLocalEngine returns a router for the file and stdio schemes.
func NewLocalEngine() *Router {
	r := NewRouter()
	r.Enable(FileScheme, NewFileSystem())
	r.Enable(StdioScheme, NewStdioEngine())
	return r
}

// NewRemoteEngine returns a router for every scheme, including http(s)
// and s3.
func NewRemoteEngine() *Router {
	r := NewLocalEngine()
	h := NewHTTP(nil)
	r.Enable(HTTPScheme, h)
	r.Enable(HTTPSScheme, h)
	r.Enable(S3Scheme, NewS3())
	return r
}

func (r *Router) Enable(scheme Scheme, e Engine) {
	r.engines[scheme] = e
}

func (r *Router) lookup(u *URI) (Engine, error) {
	e, ok := r.engines[u.SchemeOf()]
	if !ok {
		return nil, fmt.Errorf("%s: unsupported URI scheme %q", u, u.SchemeOf())
	}
	return e, nil
}

func (r *Router) Get(ctx context.Context, u *URI) (Reader, error) {
	e, err := r.lookup(u)
	if err != nil {
		return nil, err
	}
	return e.Get(ctx, u)
}

func (r *Router) Exists(ctx context.Context, u *URI) (bool, error) {
	e, err := r.lookup(u)
	if err != nil {
		return false, err
	}
	return e.Exists(ctx, u)
}

// ReadText reads the document at u.  A limit greater than zero bounds the
// number of bytes read.
func ReadText(ctx context.Context, e Engine, u *URI, limit units.Base2Bytes) (string, error) {
	r, err := e.Get(ctx, u)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", u, fs.ErrNotExist)
		}
		return "", err
	}
	defer r.Close()
	var src io.Reader = r
	if limit > 0 {
		src = io.LimitReader(r, int64(limit)+1)
	}
	b, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	if limit > 0 && int64(len(b)) > int64(limit) {
		return "", fmt.Errorf("%s: %w (limit %s)", u, ErrTooLarge, limit)
	}
	return string(b), nil
}
