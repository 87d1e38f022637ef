// Package agent turns natural-language questions into executed read-only SQL
// queries. The heart is a bounded generate, execute, repair loop: one
// generation attempt, then up to MaxRetries execution attempts where every
// database fault is fed back to the model for a corrected query.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/sqlpilot/sqlpilot/internal/dbexec"
	"github.com/sqlpilot/sqlpilot/internal/llm"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/sqlguard"
)

const DefaultMaxRetries = 3

// Executor runs one SQL statement and reports faults inside the result, not
// as a Go error. dbexec.Executor is the production implementation.
type Executor interface {
	Execute(ctx context.Context, sqlText string) dbexec.Result
}

type Options struct {
	Completer  llm.Completer
	Executor   Executor
	SchemaText string
	Dialect    string
	Logger     *slog.Logger
}

// Agent owns one query session: the immutable schema description plus the
// last question asked and the last query generated, which repair falls back
// to when no explicit context is supplied. An Agent is single-owner state;
// concurrent callers need external synchronization or one Agent each.
type Agent struct {
	completer  llm.Completer
	executor   Executor
	logger     *slog.Logger
	schemaText string
	dialect    string

	lastQuestion string
	lastQuery    string
}

func New(opts Options) (*Agent, error) {
	if opts.Completer == nil {
		return nil, &ConfigurationError{Reason: "a completion backend is required"}
	}
	if opts.SchemaText == "" {
		return nil, &ConfigurationError{Reason: "a schema description is required"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	executor := opts.Executor
	if executor == nil {
		// A disconnected executor reports the missing connection as error
		// text, the same way a lost connection mid-session would.
		executor = dbexec.NewExecutor(nil)
	}
	return &Agent{
		completer:  opts.Completer,
		executor:   executor,
		logger:     logger,
		schemaText: opts.SchemaText,
		dialect:    opts.Dialect,
	}, nil
}

// SchemaText returns the schema description embedded in prompts.
func (a *Agent) SchemaText() string {
	return a.schemaText
}

// Dialect returns the declared database dialect tag, possibly empty.
func (a *Agent) Dialect() string {
	return a.dialect
}

// GenerateQuery asks the backend for a SQL query answering the question,
// cleans the completion, and gates it to a single SELECT statement. The
// question and the gated query are recorded in the session for later repair
// calls.
func (a *Agent) GenerateQuery(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", &MissingContextError{Field: "question"}
	}
	a.lastQuestion = question

	completion, err := a.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: generateSystemPrompt(a.dialect)},
		{Role: llm.RoleUser, Content: generateUserPrompt(time.Now(), a.schemaText, question)},
	})
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}

	safeQuery, err := a.gate(ctx, completion)
	if err != nil {
		return "", err
	}
	a.lastQuery = safeQuery
	a.logger.DebugContext(ctx, "generated sql", slog.String("query", safeQuery))
	return safeQuery, nil
}

// RepairQuery asks the backend to fix a failing query given the database's
// error text. Question and query default to the session's last recorded
// values when not supplied explicitly.
func (a *Agent) RepairQuery(ctx context.Context, errText, question, sqlQuery string) (string, error) {
	if errText == "" {
		return "", &MissingContextError{Field: "error text"}
	}
	if sqlQuery == "" {
		if a.lastQuery == "" {
			return "", &MissingContextError{Field: "sql query"}
		}
		sqlQuery = a.lastQuery
	}
	if question == "" {
		if a.lastQuestion == "" {
			return "", &MissingContextError{Field: "question"}
		}
		question = a.lastQuestion
	}

	completion, err := a.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: repairSystemPrompt(a.dialect)},
		{Role: llm.RoleUser, Content: repairUserPrompt(time.Now(), a.schemaText, question, errText, sqlQuery)},
	})
	if err != nil {
		return "", fmt.Errorf("repair query: %w", err)
	}

	fixedQuery, err := a.gate(ctx, completion)
	if err != nil {
		return "", err
	}
	a.lastQuery = fixedQuery
	a.logger.DebugContext(ctx, "repaired sql", slog.String("query", fixedQuery))
	return fixedQuery, nil
}

type AskOptions struct {
	// MaxRetries bounds the execute-then-repair cycles. Zero means
	// DefaultMaxRetries.
	MaxRetries int
	// HumanAnswer requests a natural-language phrasing of the results as a
	// final backend exchange.
	HumanAnswer bool
}

// Response is the terminal output of one Ask invocation.
type Response struct {
	Query                string  `json:"query"`
	Results              any     `json:"results"`
	Answer               string  `json:"answer,omitempty"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	Retries              int     `json:"retries"`
}

// Ask drives the full cycle: generate once, then execute and repair until the
// query succeeds, repair gives up, or the retry budget is exhausted.
// Generation failures abort immediately without consuming any execution
// attempt. When the k-th execution succeeds, exactly k-1 repairs happened and
// Retries reports k-1.
func (a *Agent) Ask(ctx context.Context, question string, opts AskOptions) (Response, error) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	start := time.Now()
	sqlQuery, err := a.GenerateQuery(ctx, question)
	if err != nil {
		observability.ObserveAsk("generation_failed", -1, time.Since(start))
		return Response{}, fmt.Errorf("failed to generate a valid SQL query: %w", err)
	}

	var result dbexec.Result
	retries := 0
	for retries < maxRetries {
		result = a.executor.Execute(ctx, sqlQuery)
		observability.ObserveExecutionAttempt(!result.Failed())
		if !result.Failed() {
			break
		}

		a.logger.WarnContext(ctx, "query failed",
			slog.Int("attempt", retries+1),
			slog.String("query", sqlQuery),
			slog.String("error", result.Err),
		)
		fixedQuery, repairErr := a.RepairQuery(ctx, result.Err, "", "")
		observability.ObserveRepairAttempt(repairErr == nil)
		if repairErr != nil {
			// Give up gracefully: no further attempts, answer from
			// whatever state is in hand.
			a.logger.ErrorContext(ctx, "failed to repair query", slog.Any("error", repairErr))
			break
		}
		sqlQuery = fixedQuery
		retries++
	}

	if retries == maxRetries && result.Failed() {
		observability.ObserveAsk("retries_exhausted", retries, time.Since(start))
		exhaustedErr := &RetryExhaustedError{
			Attempts:  maxRetries,
			LastQuery: sqlQuery,
			LastError: result.Err,
		}
		a.logger.ErrorContext(ctx, "retries exhausted",
			slog.Int("attempts", maxRetries),
			slog.String("query", sqlQuery),
			slog.String("error", result.Err),
		)
		return Response{}, exhaustedErr
	}

	executionTime := roundSeconds(time.Since(start))
	results := FormatResults(result.Rows, result.Columns)

	a.logger.InfoContext(ctx, "question answered",
		slog.String("question", question),
		slog.String("query", sqlQuery),
		slog.Int("retries", retries),
		slog.Float64("execution_time_seconds", executionTime),
	)
	observability.ObserveAsk("ok", retries, time.Since(start))

	response := Response{
		Query:                sqlQuery,
		Results:              results,
		ExecutionTimeSeconds: executionTime,
		Retries:              retries,
	}
	if opts.HumanAnswer {
		answer, err := a.HumanAnswer(ctx, stringifyResults(results), "")
		if err != nil {
			return Response{}, fmt.Errorf("generate human answer: %w", err)
		}
		response.Answer = answer
	}
	return response, nil
}

// HumanAnswer asks the backend to phrase the formatted results as a concise
// natural-language answer. The completion is returned unmodified: free text
// is expected here, so neither cleaning nor gating applies.
func (a *Agent) HumanAnswer(ctx context.Context, results, question string) (string, error) {
	if question == "" {
		if a.lastQuestion == "" {
			return "", &MissingContextError{Field: "question"}
		}
		question = a.lastQuestion
	}

	answer, err := a.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: answerSystemPrompt(a.dialect)},
		{Role: llm.RoleUser, Content: answerUserPrompt(a.schemaText, question, a.lastQuery, results)},
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

// gate cleans a raw completion and enforces the read-only safety check,
// logging and counting rejections.
func (a *Agent) gate(ctx context.Context, completion string) (string, error) {
	cleaned := sqlguard.Clean(completion)
	safeQuery, err := sqlguard.EnsureSelect(cleaned)
	if err != nil {
		observability.ObserveUnsafeQuery()
		a.logger.WarnContext(ctx, "query rejected by safety gate", slog.String("query", cleaned))
		return "", err
	}
	return safeQuery, nil
}

func stringifyResults(results any) string {
	encoded, err := json.Marshal(results)
	if err != nil {
		return fmt.Sprintf("%v", results)
	}
	return string(encoded)
}

func roundSeconds(elapsed time.Duration) float64 {
	return math.Round(elapsed.Seconds()*100) / 100
}
