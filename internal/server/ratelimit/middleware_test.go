package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWriteHeaders(t *testing.T) {
	tests := []struct {
		name       string
		result     Result
		retryAfter string
	}{
		{"allowed", Result{Allowed: true, Limit: 60, Remaining: 45, ResetAt: time.Unix(1706012345, 0)}, ""},
		{"limited", Result{Limit: 60, ResetAt: time.Unix(1706012345, 0), RetryAfter: 30 * time.Second}, "30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteHeaders(w, tt.result)
			if got := w.Header().Get("X-RateLimit-Limit"); got != "60" {
				t.Errorf("X-RateLimit-Limit = %s", got)
			}
			if got := w.Header().Get("X-RateLimit-Reset"); got != "1706012345" {
				t.Errorf("X-RateLimit-Reset = %s", got)
			}
			if got := w.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(1, 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	reject := func(w http.ResponseWriter, _ *http.Request, _ Result) {
		w.WriteHeader(http.StatusTooManyRequests)
	}
	h := Middleware(l, reject, next)

	do := func(method, ip string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(method, "/api/v1/customers", nil)
		r.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	if w := do(http.MethodPost, "10.0.0.1"); w.Code != http.StatusNoContent {
		t.Fatalf("first write: %d", w.Code)
	}
	w := do(http.MethodPut, "10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if w := do(http.MethodGet, "10.0.0.1"); w.Code != http.StatusNoContent {
		t.Errorf("reads must not be limited: %d", w.Code)
	}
	if w := do(http.MethodPost, "10.0.0.2"); w.Code != http.StatusNoContent {
		t.Errorf("other client: %d", w.Code)
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if h := Middleware(nil, nil, next); h == nil {
		t.Fatal("nil handler")
	}
}
