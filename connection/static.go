package connection

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/brimdata/semq/compiler/model"
	"gopkg.in/yaml.v3"
)

// StaticFetcher serves schemas listed in a YAML file:
//
//	tables:
//	  flights:
//	    - {name: carrier, type: string}
//	sql:
//	  select 1 as x:
//	    - {name: x, type: number}
type StaticFetcher struct {
	Tables map[string][]model.Column `yaml:"tables"`
	SQL    map[string][]model.Column `yaml:"sql"`
}

var _ Fetcher = (*StaticFetcher)(nil)

func LoadStatic(path string) (*StaticFetcher, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseStatic(b)
}

func ParseStatic(b []byte) (*StaticFetcher, error) {
	var s StaticFetcher
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("static schemas: %w", err)
	}
	return &s, nil
}

func (s *StaticFetcher) TableSchema(_ context.Context, path string) (*model.TableSchema, error) {
	columns, ok := s.Tables[path]
	if !ok {
		return nil, fmt.Errorf("table %s not found", path)
	}
	return &model.TableSchema{Columns: slices.Clone(columns)}, nil
}

func (s *StaticFetcher) SQLSchema(_ context.Context, sql string) (*model.TableSchema, error) {
	columns, ok := s.SQL[sql]
	if !ok {
		return nil, fmt.Errorf("no schema for sql %q", sql)
	}
	return &model.TableSchema{Columns: slices.Clone(columns)}, nil
}

func (*StaticFetcher) Close() error {
	return nil
}
