package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:analyst, k2:dashboard")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.Principal != "analyst" {
		t.Fatalf("Principal = %q", identity.Principal)
	}
	if _, ok := validator.Validate(context.Background(), "k3"); ok {
		t.Fatal("unknown key should not validate")
	}
}

func TestStaticAPIKeyValidatorRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{"invalid", "k1:", ":analyst"} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("NewStaticAPIKeyValidator(%q) succeeded, want error", spec)
		}
	}
}

func newAuthHandler(t *testing.T) http.Handler {
	t.Helper()
	validator, err := NewStaticAPIKeyValidator("k1:analyst")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok || identity.Principal != "analyst" {
			t.Errorf("identity missing from request context: %+v ok=%v", identity, ok)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestMiddlewareRequiresKey(t *testing.T) {
	handler := newAuthHandler(t)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
	req.Header.Set("X-API-Key", "wrong")
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status with wrong key = %d", rr.Code)
	}
}

func TestMiddlewareAcceptsHeaderAndBearer(t *testing.T) {
	handler := newAuthHandler(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
	req.Header.Set("X-API-Key", "k1")
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status with X-API-Key = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
	req.Header.Set("Authorization", "Bearer k1")
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status with bearer token = %d", rr.Code)
	}
}
