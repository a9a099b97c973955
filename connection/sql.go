package connection

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/brimdata/semq/compiler/model"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// SQLFetcher reads schemas from a database/sql handle.  Table schemas come
// from the catalog query of the dialect and SQL block schemas from the
// column types of a zero-row query.
type SQLFetcher struct {
	db      *sql.DB
	dialect dialect
}

var _ Fetcher = (*SQLFetcher)(nil)

type dialect interface {
	tableColumns(ctx context.Context, db *sql.DB, path string) ([]model.Column, error)
}

func OpenSQLite(dsn string) (*SQLFetcher, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return NewSQLite(db), nil
}

func NewSQLite(db *sql.DB) *SQLFetcher {
	return &SQLFetcher{db: db, dialect: sqlite{}}
}

func OpenPostgres(dsn string) (*SQLFetcher, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	return NewPostgres(db), nil
}

func NewPostgres(db *sql.DB) *SQLFetcher {
	return &SQLFetcher{db: db, dialect: postgres{}}
}

func (s *SQLFetcher) TableSchema(ctx context.Context, path string) (*model.TableSchema, error) {
	columns, err := s.dialect.tableColumns(ctx, s.db, path)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", path)
	}
	return &model.TableSchema{Columns: columns}, nil
}

func (s *SQLFetcher) SQLSchema(ctx context.Context, query string) (*model.TableSchema, error) {
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT 0", query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	columns := make([]model.Column, 0, len(types))
	for _, t := range types {
		columns = append(columns, model.Column{Name: t.Name(), Type: model.ParseDataType(t.DatabaseTypeName())})
	}
	return &model.TableSchema{Columns: columns}, rows.Err()
}

func (s *SQLFetcher) Close() error {
	return s.db.Close()
}

type sqlite struct{}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqlite) tableColumns(ctx context.Context, db *sql.DB, path string) ([]model.Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(path)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var columns []model.Column
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		columns = append(columns, model.Column{Name: name, Type: model.ParseDataType(typ)})
	}
	return columns, rows.Err()
}

type postgres struct{}

const postgresColumns = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

func (postgres) tableColumns(ctx context.Context, db *sql.DB, path string) ([]model.Column, error) {
	schema, table := "public", path
	if before, after, ok := strings.Cut(path, "."); ok {
		schema, table = before, after
	}
	rows, err := db.QueryContext(ctx, postgresColumns, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer rows.Close()
	var columns []model.Column
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		columns = append(columns, model.Column{Name: name, Type: model.ParseDataType(typ)})
	}
	return columns, rows.Err()
}
