package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"techdispatch/internal/config"
	"techdispatch/internal/obs"
	"techdispatch/internal/opt"
)

func TestRateLimitPerTenant(t *testing.T) {
	s, err := NewServer(config.Config{RateRPS: 0.001, RateBurst: 1}, opt.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	call := func(path, tenant string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Tenant-Id", tenant)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}
	if rr := call("/v1/dispatch/history", "a"); rr.Code != http.StatusOK {
		t.Fatalf("first request: %d", rr.Code)
	}
	rr := call("/v1/dispatch/history", "a")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if rr := call("/v1/dispatch/history", "b"); rr.Code != http.StatusOK {
		t.Fatalf("other tenant: %d", rr.Code)
	}
	if rr := call("/healthz", "a"); rr.Code != http.StatusOK {
		t.Fatalf("health is not rate limited: %d", rr.Code)
	}
}

func TestRequestID(t *testing.T) {
	s, _ := NewServer(config.Config{}, opt.DefaultConfig())
	var seen string
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = obs.RequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if seen == "" || rr.Header().Get("X-Request-Id") != seen {
		t.Fatalf("generated id %q, header %q", seen, rr.Header().Get("X-Request-Id"))
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc" {
		t.Fatalf("incoming id not kept: %q", seen)
	}
}

func TestStatusWriterKeepsFlusher(t *testing.T) {
	var sw http.ResponseWriter = &statusWriter{ResponseWriter: httptest.NewRecorder(), status: 200}
	if _, ok := sw.(http.Flusher); !ok {
		t.Fatal("statusWriter must implement http.Flusher for SSE")
	}
	sw.WriteHeader(http.StatusTeapot)
	sw.WriteHeader(http.StatusOK)
	if got := sw.(*statusWriter).status; got != http.StatusTeapot {
		t.Fatalf("status = %d", got)
	}
}

func TestProblemType(t *testing.T) {
	cases := map[string]string{
		"":                   "about:blank",
		"Invalid snapshot":   "urn:techdispatch:problem:invalid-snapshot",
		"Too  Many Requests": "urn:techdispatch:problem:too-many-requests",
	}
	for in, want := range cases {
		if got := problemType(in); got != want {
			t.Errorf("problemType(%q) = %q, want %q", in, got, want)
		}
	}
}
