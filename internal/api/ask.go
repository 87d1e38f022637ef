package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/agent"
	"github.com/sqlpilot/sqlpilot/internal/sqlguard"
)

type askRequest struct {
	Question    string `json:"question"`
	MaxRetries  int    `json:"max_retries,omitempty"`
	HumanAnswer bool   `json:"human_answer,omitempty"`
}

type generateRequest struct {
	Question string `json:"question"`
}

type repairRequest struct {
	Error    string `json:"error"`
	Question string `json:"question,omitempty"`
	Query    string `json:"query,omitempty"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Agent == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AGENT_NOT_CONFIGURED", "query agent is not configured", false, nil)
		return
	}

	var req askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	if req.MaxRetries < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_RETRIES", "max_retries must be >= 0", false, nil)
		return
	}

	retries := req.MaxRetries
	if retries == 0 {
		retries = deps.DefaultRetries
	}

	response, err := deps.Agent.Ask(r.Context(), req.Question, agent.AskOptions{
		MaxRetries:  retries,
		HumanAnswer: req.HumanAnswer,
	})
	if err != nil {
		writeAskError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func handleGenerate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Agent == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AGENT_NOT_CONFIGURED", "query agent is not configured", false, nil)
		return
	}

	var req generateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid generate request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	query, err := deps.Agent.GenerateQuery(r.Context(), req.Question)
	if err != nil {
		writeAskError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"query": query})
}

func handleRepair(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Agent == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AGENT_NOT_CONFIGURED", "query agent is not configured", false, nil)
		return
	}

	var req repairRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid repair request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Error) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "ERROR_REQUIRED", "error is required", false, nil)
		return
	}

	query, err := deps.Agent.RepairQuery(r.Context(), req.Error, req.Question, req.Query)
	if err != nil {
		writeAskError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"query": query})
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Agent == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AGENT_NOT_CONFIGURED", "query agent is not configured", false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schema":  deps.Agent.SchemaText(),
		"dialect": deps.Agent.Dialect(),
	})
}

func writeAskError(ctx context.Context, w http.ResponseWriter, err error) {
	var exhausted *agent.RetryExhaustedError
	switch {
	case agent.IsMissingContext(err):
		writeError(ctx, w, http.StatusBadRequest, "MISSING_CONTEXT", err.Error(), false, nil)
	case sqlguard.IsUnsafe(err):
		writeError(ctx, w, http.StatusBadRequest, "UNSAFE_QUERY", err.Error(), false, nil)
	case errors.As(err, &exhausted):
		writeError(ctx, w, http.StatusUnprocessableEntity, "RETRIES_EXHAUSTED", exhausted.Error(), false, map[string]any{
			"attempts":   exhausted.Attempts,
			"last_query": exhausted.LastQuery,
			"last_error": exhausted.LastError,
		})
	default:
		writeError(ctx, w, http.StatusBadGateway, "BACKEND_FAILED", err.Error(), true, nil)
	}
}
