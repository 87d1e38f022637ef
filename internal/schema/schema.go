// Package schema produces the plain-text database description embedded in
// generation prompts. The blob either comes from a file on disk or is
// reflected from the connected database at startup.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/dbexec"
)

type column struct {
	Name       string
	DataType   string
	NotNull    bool
	PrimaryKey bool
}

type table struct {
	Name    string
	Columns []column
}

// LoadFile reads a pre-written schema description from disk.
func LoadFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read schema file: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("schema file %q is empty", path)
	}
	return text, nil
}

// Extract reflects tables, columns, and primary keys from the connected
// database into the textual form the prompts embed.
func Extract(ctx context.Context, db *sql.DB, dialect dbexec.Dialect) (string, error) {
	if db == nil {
		return "", fmt.Errorf("database connection is required")
	}

	var (
		tables []table
		err    error
	)
	switch dialect {
	case dbexec.DialectPostgres:
		tables, err = extractInformationSchema(ctx, db, "public")
	case dbexec.DialectDuckDB:
		tables, err = extractInformationSchema(ctx, db, "main")
	case dbexec.DialectMySQL:
		tables, err = extractMySQL(ctx, db)
	case dbexec.DialectSQLite:
		tables, err = extractSQLite(ctx, db)
	default:
		return "", fmt.Errorf("schema extraction is not supported for dialect %q", dialect)
	}
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("no tables found to describe")
	}
	return render(tables), nil
}

const informationSchemaColumnsQuery = `
SELECT table_name, column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

const informationSchemaPrimaryKeysQuery = `
SELECT kc.table_name, kc.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kc ON tc.constraint_name = kc.constraint_name
WHERE tc.table_schema = $1 AND tc.constraint_type = 'PRIMARY KEY'`

func extractInformationSchema(ctx context.Context, db *sql.DB, schemaName string) ([]table, error) {
	rows, err := db.QueryContext(ctx, informationSchemaColumnsQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byName := map[string]*table{}
	var order []string
	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		entry, ok := byName[tableName]
		if !ok {
			entry = &table{Name: tableName}
			byName[tableName] = entry
			order = append(order, tableName)
		}
		entry.Columns = append(entry.Columns, column{
			Name:     columnName,
			DataType: strings.ToUpper(dataType),
			NotNull:  strings.EqualFold(isNullable, "NO"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	pkRows, err := db.QueryContext(ctx, informationSchemaPrimaryKeysQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("list primary keys: %w", err)
	}
	defer func() { _ = pkRows.Close() }()

	for pkRows.Next() {
		var tableName, columnName string
		if err := pkRows.Scan(&tableName, &columnName); err != nil {
			return nil, fmt.Errorf("scan primary key: %w", err)
		}
		entry, ok := byName[tableName]
		if !ok {
			continue
		}
		for i := range entry.Columns {
			if entry.Columns[i].Name == columnName {
				entry.Columns[i].PrimaryKey = true
			}
		}
	}
	if err := pkRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate primary keys: %w", err)
	}

	return collect(byName, order), nil
}

const mysqlColumnsQuery = `
SELECT table_name, column_name, data_type, is_nullable, column_key
FROM information_schema.columns
WHERE table_schema = DATABASE()
ORDER BY table_name, ordinal_position`

func extractMySQL(ctx context.Context, db *sql.DB) ([]table, error) {
	rows, err := db.QueryContext(ctx, mysqlColumnsQuery)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byName := map[string]*table{}
	var order []string
	for rows.Next() {
		var tableName, columnName, dataType, isNullable, columnKey string
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable, &columnKey); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		entry, ok := byName[tableName]
		if !ok {
			entry = &table{Name: tableName}
			byName[tableName] = entry
			order = append(order, tableName)
		}
		entry.Columns = append(entry.Columns, column{
			Name:       columnName,
			DataType:   strings.ToUpper(dataType),
			NotNull:    strings.EqualFold(isNullable, "NO"),
			PrimaryKey: strings.EqualFold(columnKey, "PRI"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return collect(byName, order), nil
}

const sqliteTablesQuery = `
SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`

const sqliteColumnsQuery = `SELECT name, type, "notnull", pk FROM pragma_table_info(?)`

func extractSQLite(ctx context.Context, db *sql.DB) ([]table, error) {
	rows, err := db.QueryContext(ctx, sqliteTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	_ = rows.Close()

	tables := make([]table, 0, len(names))
	for _, name := range names {
		columnRows, err := db.QueryContext(ctx, sqliteColumnsQuery, name)
		if err != nil {
			return nil, fmt.Errorf("describe table %q: %w", name, err)
		}

		entry := table{Name: name}
		for columnRows.Next() {
			var (
				columnName, dataType string
				notNull, pk          int
			)
			if err := columnRows.Scan(&columnName, &dataType, &notNull, &pk); err != nil {
				_ = columnRows.Close()
				return nil, fmt.Errorf("scan column: %w", err)
			}
			entry.Columns = append(entry.Columns, column{
				Name:       columnName,
				DataType:   strings.ToUpper(dataType),
				NotNull:    notNull != 0,
				PrimaryKey: pk != 0,
			})
		}
		if err := columnRows.Err(); err != nil {
			_ = columnRows.Close()
			return nil, fmt.Errorf("iterate columns: %w", err)
		}
		_ = columnRows.Close()
		tables = append(tables, entry)
	}

	return tables, nil
}

func collect(byName map[string]*table, order []string) []table {
	tables := make([]table, 0, len(order))
	for _, name := range order {
		tables = append(tables, *byName[name])
	}
	return tables
}

func render(tables []table) string {
	var builder strings.Builder
	for i, entry := range tables {
		if i > 0 {
			builder.WriteString("\n")
		}
		fmt.Fprintf(&builder, "Table: %s\n", entry.Name)
		for _, col := range entry.Columns {
			constraints := make([]string, 0, 3)
			constraints = append(constraints, col.DataType)
			if col.NotNull {
				constraints = append(constraints, "NOT NULL")
			}
			if col.PrimaryKey {
				constraints = append(constraints, "PRIMARY KEY")
			}
			fmt.Fprintf(&builder, "- %s (%s)\n", col.Name, strings.Join(constraints, " "))
		}
	}
	return strings.TrimRight(builder.String(), "\n")
}
