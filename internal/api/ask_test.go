package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sqlpilot/sqlpilot/internal/agent"
	"github.com/sqlpilot/sqlpilot/internal/sqlguard"
)

var errUnreachable = errors.New("model endpoint unreachable")

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rr, req)
	return rr
}

func TestAskEndpoint(t *testing.T) {
	service := &stubService{
		askResponse: agent.Response{
			Query:                "SELECT total FROM orders WHERE id=5",
			Results:              []agent.Record{{"total": 42.0}},
			ExecutionTimeSeconds: 0.12,
			Retries:              1,
		},
	}
	handler := NewHandler(testConfig(), Dependencies{Agent: service})

	rr := postJSON(handler, "/v1/ask", `{"question":"total of order 5?","max_retries":5,"human_answer":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["query"] != "SELECT total FROM orders WHERE id=5" {
		t.Fatalf("query = %v", body["query"])
	}
	if body["retries"] != float64(1) {
		t.Fatalf("retries = %v", body["retries"])
	}
	if len(service.askOpts) != 1 || service.askOpts[0].MaxRetries != 5 || !service.askOpts[0].HumanAnswer {
		t.Fatalf("forwarded options = %+v", service.askOpts)
	}
}

func TestAskEndpointAppliesDefaultRetries(t *testing.T) {
	service := &stubService{askResponse: agent.Response{Query: "SELECT 1", Results: agent.NoResultsSentinel}}
	handler := NewHandler(testConfig(), Dependencies{Agent: service, DefaultRetries: 7})

	rr := postJSON(handler, "/v1/ask", `{"question":"q"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(service.askOpts) != 1 || service.askOpts[0].MaxRetries != 7 {
		t.Fatalf("forwarded options = %+v", service.askOpts)
	}
}

func TestAskEndpointValidation(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{Agent: &stubService{}})

	rr := postJSON(handler, "/v1/ask", `{"question":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty question status = %d", rr.Code)
	}
	if decodeBody(t, rr)["error_code"] != "QUESTION_REQUIRED" {
		t.Fatalf("body = %s", rr.Body.String())
	}

	rr = postJSON(handler, "/v1/ask", `{"question":"q","max_retries":-1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("negative retries status = %d", rr.Code)
	}

	rr = postJSON(handler, "/v1/ask", `{"question":"q","unknown_field":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rr.Code)
	}
	if decodeBody(t, rr)["error_code"] != "INVALID_JSON" {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestAskEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unsafe query",
			err:        &sqlguard.UnsafeQueryError{Query: "DROP TABLE orders"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "UNSAFE_QUERY",
		},
		{
			name:       "retries exhausted",
			err:        &agent.RetryExhaustedError{Attempts: 3, LastQuery: "SELECT x", LastError: "boom"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "RETRIES_EXHAUSTED",
		},
		{
			name:       "missing context",
			err:        &agent.MissingContextError{Field: "question"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_CONTEXT",
		},
		{
			name:       "backend fault",
			err:        errUnreachable,
			wantStatus: http.StatusBadGateway,
			wantCode:   "BACKEND_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(testConfig(), Dependencies{Agent: &stubService{askErr: tt.err}})
			rr := postJSON(handler, "/v1/ask", `{"question":"q"}`)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if decodeBody(t, rr)["error_code"] != tt.wantCode {
				t.Fatalf("body = %s", rr.Body.String())
			}
		})
	}
}

func TestAskEndpointRetryExhaustedContext(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{Agent: &stubService{
		askErr: &agent.RetryExhaustedError{Attempts: 3, LastQuery: "SELECT x FROM y", LastError: "no such table"},
	}})

	rr := postJSON(handler, "/v1/ask", `{"question":"q"}`)
	body := decodeBody(t, rr)
	extra, ok := body["context"].(map[string]any)
	if !ok {
		t.Fatalf("context missing: %s", rr.Body.String())
	}
	if extra["attempts"] != float64(3) || extra["last_query"] != "SELECT x FROM y" || extra["last_error"] != "no such table" {
		t.Fatalf("context = %v", extra)
	}
}

func TestGenerateEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{Agent: &stubService{generated: "SELECT 1"}})

	rr := postJSON(handler, "/v1/generate", `{"question":"q"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if decodeBody(t, rr)["query"] != "SELECT 1" {
		t.Fatalf("body = %s", rr.Body.String())
	}

	rr = postJSON(handler, "/v1/generate", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing question status = %d", rr.Code)
	}
}

func TestRepairEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{Agent: &stubService{repaired: "SELECT fixed"}})

	rr := postJSON(handler, "/v1/repair", `{"error":"no such column","query":"SELECT broken"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if decodeBody(t, rr)["query"] != "SELECT fixed" {
		t.Fatalf("body = %s", rr.Body.String())
	}

	rr = postJSON(handler, "/v1/repair", `{"query":"SELECT broken"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing error status = %d", rr.Code)
	}
	if decodeBody(t, rr)["error_code"] != "ERROR_REQUIRED" {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestSchemaEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{Agent: &stubService{
		schemaText: "Table: orders\n- id (INTEGER)",
		dialect:    "postgresql",
	}})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["dialect"] != "postgresql" || !strings.Contains(body["schema"].(string), "Table: orders") {
		t.Fatalf("body = %v", body)
	}
}

func TestEndpointsWithoutAgent(t *testing.T) {
	handler := NewHandler(testConfig(), Dependencies{})
	rr := postJSON(handler, "/v1/ask", `{"question":"q"}`)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}
