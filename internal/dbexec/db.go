// Package dbexec opens relational databases by URL and runs read queries
// against them, reporting execution faults as data instead of errors so a
// caller can feed them back into a repair cycle.
package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgresql"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
	DialectDuckDB   Dialect = "duckdb"
	DialectUnknown  Dialect = ""
)

type DBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// DetectDialect maps a database URL scheme to its dialect tag. The tag is
// embedded in prompts so the model targets the right SQL flavor.
func DetectDialect(rawURL string) Dialect {
	scheme, _, found := strings.Cut(rawURL, "://")
	if !found {
		return DialectUnknown
	}
	switch strings.ToLower(scheme) {
	case "postgres", "postgresql":
		return DialectPostgres
	case "mysql":
		return DialectMySQL
	case "sqlite":
		return DialectSQLite
	case "duckdb":
		return DialectDuckDB
	default:
		return DialectUnknown
	}
}

// Open connects to the database named by cfg.URL, choosing the driver from
// the URL scheme, and verifies the connection with a bounded ping.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, Dialect, error) {
	if cfg.URL == "" {
		return nil, DialectUnknown, fmt.Errorf("database url is required")
	}

	dialect := DetectDialect(cfg.URL)
	driver, dsn, err := driverDSN(dialect, cfg.URL)
	if err != nil {
		return nil, DialectUnknown, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, DialectUnknown, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, DialectUnknown, fmt.Errorf("ping database: %w", err)
	}

	return db, dialect, nil
}

func driverDSN(dialect Dialect, rawURL string) (driver, dsn string, err error) {
	switch dialect {
	case DialectPostgres:
		return "pgx", rawURL, nil
	case DialectMySQL:
		dsn, err := mysqlDSN(rawURL)
		if err != nil {
			return "", "", err
		}
		return "mysql", dsn, nil
	case DialectSQLite:
		return "sqlite", filePath(rawURL, "sqlite://"), nil
	case DialectDuckDB:
		return "duckdb", filePath(rawURL, "duckdb://"), nil
	default:
		return "", "", fmt.Errorf("unsupported database url %q", rawURL)
	}
}

// mysqlDSN rewrites a mysql:// URL into the go-sql-driver DSN form
// user:pass@tcp(host:port)/dbname?params.
func mysqlDSN(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse mysql url: %w", err)
	}
	host := parsed.Host
	if host == "" {
		return "", fmt.Errorf("mysql url %q has no host", rawURL)
	}
	if parsed.Port() == "" {
		host += ":3306"
	}
	dbName := strings.TrimPrefix(parsed.Path, "/")

	var builder strings.Builder
	if parsed.User != nil {
		builder.WriteString(parsed.User.Username())
		if password, ok := parsed.User.Password(); ok {
			builder.WriteString(":")
			builder.WriteString(password)
		}
		builder.WriteString("@")
	}
	fmt.Fprintf(&builder, "tcp(%s)/%s", host, dbName)
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}

// filePath strips the scheme from file-backed database URLs. One leading
// slash separates the authority from the path, so scheme:///name.db is a
// relative path and scheme:////data/name.db an absolute one.
func filePath(rawURL, prefix string) string {
	rest := strings.TrimPrefix(rawURL, prefix)
	if strings.HasPrefix(rest, "/") {
		return rest[1:]
	}
	return rest
}
