package schema

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/sqlpilot/sqlpilot/internal/dbexec"
)

func TestExtractPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(informationSchemaColumnsQuery)).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable"}).
			AddRow("orders", "id", "integer", "NO").
			AddRow("orders", "total", "numeric", "YES").
			AddRow("users", "id", "integer", "NO").
			AddRow("users", "name", "text", "NO"))
	mock.ExpectQuery(regexp.QuoteMeta(informationSchemaPrimaryKeysQuery)).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("orders", "id").
			AddRow("users", "id"))

	got, err := Extract(context.Background(), db, dbexec.DialectPostgres)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "Table: orders\n" +
		"- id (INTEGER NOT NULL PRIMARY KEY)\n" +
		"- total (NUMERIC)\n" +
		"\n" +
		"Table: users\n" +
		"- id (INTEGER NOT NULL PRIMARY KEY)\n" +
		"- name (TEXT NOT NULL)"
	if got != want {
		t.Fatalf("Extract() =\n%s\nwant:\n%s", got, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestExtractMySQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(mysqlColumnsQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable", "column_key"}).
			AddRow("orders", "id", "int", "NO", "PRI").
			AddRow("orders", "total", "decimal", "YES", ""))

	got, err := Extract(context.Background(), db, dbexec.DialectMySQL)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "Table: orders\n" +
		"- id (INT NOT NULL PRIMARY KEY)\n" +
		"- total (DECIMAL)"
	if got != want {
		t.Fatalf("Extract() =\n%s\nwant:\n%s", got, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestExtractSQLite(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(sqliteTablesQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("orders"))
	mock.ExpectQuery(regexp.QuoteMeta(sqliteColumnsQuery)).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "notnull", "pk"}).
			AddRow("id", "INTEGER", 1, 1).
			AddRow("total", "REAL", 0, 0))

	got, err := Extract(context.Background(), db, dbexec.DialectSQLite)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "Table: orders\n" +
		"- id (INTEGER NOT NULL PRIMARY KEY)\n" +
		"- total (REAL)"
	if got != want {
		t.Fatalf("Extract() =\n%s\nwant:\n%s", got, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestExtractEmptyDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(informationSchemaColumnsQuery)).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable"}))
	mock.ExpectQuery(regexp.QuoteMeta(informationSchemaPrimaryKeysQuery)).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}))

	if _, err := Extract(context.Background(), db, dbexec.DialectPostgres); err == nil {
		t.Fatal("expected error for empty database")
	}
}

func TestExtractUnsupportedDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := Extract(context.Background(), db, dbexec.DialectUnknown); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.txt")
	if err := os.WriteFile(path, []byte("Table: orders\n- id (INTEGER)\n"), 0o600); err != nil {
		t.Fatalf("write schema file: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got != "Table: orders\n- id (INTEGER)" {
		t.Fatalf("LoadFile() = %q", got)
	}
}

func TestLoadFileMissingOrEmpty(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("write schema file: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for empty file")
	}
}
