package api

import (
	"bufio"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"techdispatch/internal/metrics"
	"techdispatch/internal/obs"
)

// TenantLimiter hands out one token bucket per tenant.
type TenantLimiter struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func NewTenantLimiter(rps float64, burst int) *TenantLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &TenantLimiter{rps: rate.Limit(rps), burst: burst, limiters: map[string]*rate.Limiter{}}
}

func (l *TenantLimiter) Allow(tenant string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[tenant]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[tenant] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware wraps the API mux with request ids, logging, metrics and per-tenant
// rate limiting, in that order.
func (s *Server) Middleware(next http.Handler) http.Handler {
	return requestID(observe(s.rateLimit(next)))
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(obs.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Limiter == nil || !strings.HasPrefix(r.URL.Path, "/v1/") {
			next.ServeHTTP(w, r)
			return
		}
		tenant := s.getPrincipal(r).Tenant
		if !s.Limiter.Allow(tenant) {
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded for tenant "+tenant, r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		dur := time.Since(start)

		// ServeMux records the matched pattern on the request; raw paths would
		// explode label cardinality.
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(sw.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
		log.Printf("req_id=%s remote=%s method=%s path=%s status=%d dur=%dms",
			obs.RequestID(r.Context()), r.RemoteAddr, r.Method, r.URL.Path, sw.status, dur.Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Flush and Hijack keep SSE and websocket handlers working behind the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
