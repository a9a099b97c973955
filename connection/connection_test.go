package connection_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brimdata/semq/compiler/model"
	"github.com/brimdata/semq/connection"
	"github.com/brimdata/semq/connection/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRegistryDispatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := mock.NewMockFetcher(ctrl)
	f.EXPECT().TableSchema(gomock.Any(), "flights").Return(&model.TableSchema{
		Columns: []model.Column{{Name: "carrier", Type: model.TypeString}},
	}, nil)
	f.EXPECT().SQLSchema(gomock.Any(), "select a:b from t").Return(nil, errors.New("bad sql"))
	f.EXPECT().Close().Return(nil)

	r := connection.NewRegistry()
	r.Add("duckdb", f)
	schema, err := r.Table(t.Context(), "duckdb:flights")
	require.NoError(t, err)
	assert.Equal(t, "duckdb", schema.Connection)
	assert.Len(t, schema.Columns, 1)

	// Only the first colon separates the connection name.
	_, err = r.SQL(t.Context(), "duckdb:select a:b from t")
	assert.EqualError(t, err, "bad sql")

	_, err = r.Table(t.Context(), "bigquery:flights")
	assert.ErrorIs(t, err, connection.ErrUnknownConnection)
	assert.EqualError(t, err, "unknown connection 'bigquery'")

	require.NoError(t, r.Close())
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flights.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "CREATE TABLE flights (carrier TEXT, distance INTEGER, dep_time DATETIME, ok BOOLEAN, blob BLOB)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := connection.OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	schema, err := s.TableSchema(ctx, "flights")
	require.NoError(t, err)
	assert.Equal(t, []model.Column{
		{Name: "carrier", Type: model.TypeString},
		{Name: "distance", Type: model.TypeNumber},
		{Name: "dep_time", Type: model.TypeTimestamp},
		{Name: "ok", Type: model.TypeBoolean},
		{Name: "blob", Type: model.TypeNative},
	}, schema.Columns)

	schema, err = s.SQLSchema(ctx, "select carrier, distance from flights;")
	require.NoError(t, err)
	assert.Equal(t, []model.Column{
		{Name: "carrier", Type: model.TypeString},
		{Name: "distance", Type: model.TypeNumber},
	}, schema.Columns)

	_, err = s.TableSchema(ctx, "nope")
	assert.EqualError(t, err, "table nope not found")
}

func TestPostgresTableSchema(t *testing.T) {
	db, m, err := sqlmock.New()
	require.NoError(t, err)
	m.ExpectQuery("SELECT column_name, data_type FROM information_schema.columns").
		WithArgs("analytics", "flights").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("carrier", "character varying").
			AddRow("distance", "double precision").
			AddRow("dep", "timestamp with time zone").
			AddRow("extra", "jsonb"))
	m.ExpectClose()

	f := connection.NewPostgres(db)
	schema, err := f.TableSchema(t.Context(), "analytics.flights")
	require.NoError(t, err)
	assert.Equal(t, []model.Column{
		{Name: "carrier", Type: model.TypeString},
		{Name: "distance", Type: model.TypeNumber},
		{Name: "dep", Type: model.TypeTimestamp},
		{Name: "extra", Type: model.TypeJSON},
	}, schema.Columns)
	require.NoError(t, f.Close())
	require.NoError(t, m.ExpectationsWereMet())
}

func TestPostgresSQLSchema(t *testing.T) {
	db, m, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	m.ExpectQuery("SELECT * FROM (select 1 as x, 'a' as y) AS q LIMIT 0").
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("x").OfType("INT4", int64(0)),
			sqlmock.NewColumn("y").OfType("TEXT", ""),
		))

	f := connection.NewPostgres(db)
	schema, err := f.SQLSchema(t.Context(), "select 1 as x, 'a' as y")
	require.NoError(t, err)
	assert.Equal(t, []model.Column{
		{Name: "x", Type: model.TypeNumber},
		{Name: "y", Type: model.TypeString},
	}, schema.Columns)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestStatic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tables:
  flights:
    - {name: carrier, type: string}
sql:
  select 1 as x:
    - {name: x, type: number}
`), 0666))
	r, err := connection.OpenRegistry(map[string]connection.Spec{
		"duckdb": {Driver: "static", Path: path},
	})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, []string{"duckdb"}, r.Names())

	schema, err := r.Table(t.Context(), "duckdb:flights")
	require.NoError(t, err)
	assert.Equal(t, &model.TableSchema{
		Connection: "duckdb",
		Columns:    []model.Column{{Name: "carrier", Type: model.TypeString}},
	}, schema)
	schema, err = r.SQL(t.Context(), "duckdb:select 1 as x")
	require.NoError(t, err)
	assert.Equal(t, model.TypeNumber, schema.Columns[0].Type)

	_, err = connection.OpenRegistry(map[string]connection.Spec{"x": {Driver: "oracle"}})
	assert.EqualError(t, err, `connection "x": unknown connection driver "oracle"`)
}
