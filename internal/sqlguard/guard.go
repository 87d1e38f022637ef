// Package sqlguard validates model-generated SQL before it reaches a
// database. The gate is deliberately a single-keyword check: only the first
// statement is kept and it must be a SELECT. Anything stronger belongs to the
// database's own parser.
package sqlguard

import (
	"errors"
	"fmt"
	"strings"
)

// promptEchoMarker is a stray sequence some chat models leak from their
// prompt template into completions.
const promptEchoMarker = ">>>"

type UnsafeQueryError struct {
	Query string
}

func (e *UnsafeQueryError) Error() string {
	return fmt.Sprintf("generated query is not a single read-only SELECT statement: %q", e.Query)
}

func IsUnsafe(err error) bool {
	var unsafeErr *UnsafeQueryError
	return errors.As(err, &unsafeErr)
}

// Clean strips formatting artifacts from raw model output: fenced code block
// markers and prompt-echo sequences. Remaining lines keep their relative
// order. Clean is idempotent.
func Clean(raw string) string {
	raw = strings.ReplaceAll(raw, promptEchoMarker, "")
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// EnsureSelect keeps only the text before the first statement terminator,
// trims it, and accepts it when it starts with the SELECT keyword. A string
// without a terminator counts as a single statement. On rejection the
// returned error is an *UnsafeQueryError naming the offending query.
func EnsureSelect(query string) (string, error) {
	statement, _, _ := strings.Cut(query, ";")
	statement = strings.TrimSpace(statement)
	if strings.HasPrefix(strings.ToUpper(statement), "SELECT") {
		return statement, nil
	}
	return "", &UnsafeQueryError{Query: statement}
}
