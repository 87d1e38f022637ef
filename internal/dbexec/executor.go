package dbexec

import (
	"context"
	"database/sql"
)

// Result is the outcome of one execution attempt. Exactly one side is
// populated: rows with their ordered column names, or the database's error
// text. Faults stay data so the retry loop can branch on them.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Err     string   `json:"error,omitempty"`
}

func (r Result) Failed() bool {
	return r.Err != ""
}

type Executor struct {
	db *sql.DB
}

func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// Execute runs one SQL statement on a dedicated connection, acquired for the
// duration of the call and released on every exit path. Execution faults are
// converted to Result.Err, never returned as a Go error.
func (e *Executor) Execute(ctx context.Context, sqlText string) Result {
	if e == nil || e.db == nil {
		return Result{Err: "no database connection is configured"}
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return Result{Err: err.Error()}
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{Err: err.Error()}
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{Err: err.Error()}
	}

	collected := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{Err: err.Error()}
		}
		collected = append(collected, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{Err: err.Error()}
	}

	return Result{Columns: columns, Rows: collected}
}

// normalizeValues converts driver byte slices to strings so results marshal
// to readable JSON instead of base64.
func normalizeValues(values []any) []any {
	for i, value := range values {
		if raw, ok := value.([]byte); ok {
			values[i] = string(raw)
		}
	}
	return values
}
