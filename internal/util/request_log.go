package util

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type responseTap struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (t *responseTap) WriteHeader(statusCode int) {
	if t.status == 0 {
		t.status = statusCode
	}
	t.ResponseWriter.WriteHeader(statusCode)
}

func (t *responseTap) Write(p []byte) (int, error) {
	if t.status == 0 {
		t.status = http.StatusOK
	}
	n, err := t.ResponseWriter.Write(p)
	t.bytes += n
	return n, err
}

// WithRequestLog emits one structured line per request, carrying the
// request id so lines correlate across services.
func WithRequestLog(service string, next http.Handler) http.Handler {
	if strings.TrimSpace(service) == "" {
		service = "unknown"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		tap := &responseTap{ResponseWriter: w}
		next.ServeHTTP(tap, r)
		if tap.status == 0 {
			tap.status = http.StatusOK
		}
		slog.Info("http_request",
			"service", service,
			"method", r.Method,
			"path", r.URL.Path,
			"status", tap.status,
			"bytes", tap.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestIDFromRequest(r),
		)
	})
}
