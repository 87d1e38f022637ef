package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sqlpilot/sqlpilot/internal/agent"
	"github.com/sqlpilot/sqlpilot/internal/export"
)

type exportRequest struct {
	Question   string `json:"question"`
	MaxRetries int    `json:"max_retries,omitempty"`
}

func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Agent == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AGENT_NOT_CONFIGURED", "query agent is not configured", false, nil)
		return
	}
	if deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "result export is not configured", false, nil)
		return
	}

	var req exportRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
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

	response, err := deps.Agent.Ask(r.Context(), req.Question, agent.AskOptions{MaxRetries: retries})
	if err != nil {
		writeAskError(r.Context(), w, err)
		return
	}

	records, ok := response.Results.([]agent.Record)
	if !ok || len(records) == 0 {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "NO_RESULTS", "the query returned no rows to export", false, map[string]any{
			"query": response.Query,
		})
		return
	}

	receipt, err := deps.Exporter.Export(r.Context(), export.Request{
		Question: req.Question,
		Query:    response.Query,
		Records:  records,
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_FAILED", err.Error(), true, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"key":     receipt.Key,
		"rows":    receipt.Records,
		"size":    receipt.Size,
		"query":   response.Query,
		"retries": response.Retries,
	})
}
