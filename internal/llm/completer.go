// Package llm abstracts the text-generation backend behind a small chat
// completion capability so the query agent can be exercised against a
// deterministic stub in tests.
package llm

import "context"

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer sends one synchronous chat exchange to a text-generation backend
// and returns the raw completion text. Implementations may return empty text;
// callers are expected to validate the result.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	ModelID() string
}
