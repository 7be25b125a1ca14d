package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// RequestIDHeader carries the request id to the backend.
	RequestIDHeader = "X-Request-Id"
)

// Transport stamps every outgoing backend request with a request id and
// tracks call metrics. Requests whose context already carries an id reuse it,
// so the calls of one user action share it.
type Transport struct {
	next    http.RoundTripper
	metrics *Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	FailedRequests      int64
	AverageResponseTime int64 // in microseconds
}

// NewTransport wraps next, or http.DefaultTransport when nil.
func NewTransport(next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next, metrics: &Metrics{}}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	requestID := GetRequestID(r.Context())
	if requestID == "" {
		requestID = GenerateRequestID()
	}
	r = r.Clone(WithRequestID(r.Context(), requestID))
	r.Header.Set(RequestIDHeader, requestID)

	total := atomic.AddInt64(&t.metrics.TotalRequests, 1)
	resp, err := t.next.RoundTrip(r)

	elapsed := time.Since(start).Microseconds()
	// Running mean over every request seen so far.
	for {
		avg := atomic.LoadInt64(&t.metrics.AverageResponseTime)
		next := avg + (elapsed-avg)/total
		if atomic.CompareAndSwapInt64(&t.metrics.AverageResponseTime, avg, next) {
			break
		}
	}

	if err != nil || resp.StatusCode >= 500 {
		atomic.AddInt64(&t.metrics.FailedRequests, 1)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		slog.WarnContext(r.Context(), "Backend request unsuccessful",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", status,
			"duration_ms", elapsed/1000,
			"error", err)
	}
	return resp, err
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// WithRequestID returns a context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (t *Transport) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:       atomic.LoadInt64(&t.metrics.TotalRequests),
		FailedRequests:      atomic.LoadInt64(&t.metrics.FailedRequests),
		AverageResponseTime: atomic.LoadInt64(&t.metrics.AverageResponseTime),
	}
}
