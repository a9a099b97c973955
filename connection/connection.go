// Package connection supplies table and SQL block schemas to a
// translation.  Each named connection is served by a Fetcher.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/brimdata/semq/compiler/model"
)

//go:generate go tool mockgen -destination=mock/mock_fetcher.go -package=mock . Fetcher

type Fetcher interface {
	// TableSchema returns the columns of the table at path.
	TableSchema(ctx context.Context, path string) (*model.TableSchema, error)
	// SQLSchema returns the columns that the select statement produces.
	SQLSchema(ctx context.Context, sql string) (*model.TableSchema, error)
	Close() error
}

var ErrUnknownConnection = errors.New("unknown connection")

// Spec configures one named connection.
type Spec struct {
	Driver string `koanf:"driver" yaml:"driver"`
	DSN    string `koanf:"dsn" yaml:"dsn"`
	Path   string `koanf:"path" yaml:"path"`
}

// Open creates the fetcher that spec describes.
func Open(spec Spec) (Fetcher, error) {
	switch spec.Driver {
	case "sqlite":
		return OpenSQLite(spec.DSN)
	case "postgres":
		return OpenPostgres(spec.DSN)
	case "static":
		return LoadStatic(spec.Path)
	}
	return nil, fmt.Errorf("unknown connection driver %q", spec.Driver)
}

// Registry maps connection names to fetchers.
type Registry struct {
	fetchers map[string]Fetcher
}

func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// OpenRegistry opens every connection in specs.  On error, connections
// opened so far are closed.
func OpenRegistry(specs map[string]Spec) (*Registry, error) {
	r := NewRegistry()
	for name, spec := range specs {
		f, err := Open(spec)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("connection %q: %w", name, err)
		}
		r.Add(name, f)
	}
	return r, nil
}

func (r *Registry) Add(name string, f Fetcher) {
	r.fetchers[name] = f
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.fetchers))
	for name := range r.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table fetches the schema for a key made with semantic.TableKey.
func (r *Registry) Table(ctx context.Context, key string) (*model.TableSchema, error) {
	f, conn, path, err := r.lookup(key)
	if err != nil {
		return nil, err
	}
	schema, err := f.TableSchema(ctx, path)
	if err != nil {
		return nil, err
	}
	schema.Connection = conn
	return schema, nil
}

// SQL fetches the schema for a key made with semantic.SQLKey.
func (r *Registry) SQL(ctx context.Context, key string) (*model.TableSchema, error) {
	f, conn, sql, err := r.lookup(key)
	if err != nil {
		return nil, err
	}
	schema, err := f.SQLSchema(ctx, sql)
	if err != nil {
		return nil, err
	}
	schema.Connection = conn
	return schema, nil
}

func (r *Registry) lookup(key string) (Fetcher, string, string, error) {
	conn, rest, ok := strings.Cut(key, ":")
	if !ok {
		return nil, "", "", fmt.Errorf("malformed schema key %q", key)
	}
	f, ok := r.fetchers[conn]
	if !ok {
		return nil, "", "", fmt.Errorf("%w '%s'", ErrUnknownConnection, conn)
	}
	return f, conn, rest, nil
}

func (r *Registry) Close() error {
	var errs []error
	for _, f := range r.fetchers {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}
