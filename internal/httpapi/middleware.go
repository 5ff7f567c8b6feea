package httpapi

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/derailed-dash/rickbot/internal/auth"
	"github.com/derailed-dash/rickbot/internal/ratelimit"
)

// responseWriter captures the status code for logging and metrics.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush passes through so SSE handlers keep working behind the
// logging wrapper.
func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// loggingMiddleware logs each request and feeds the request counter.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.metrics.RequestCounter.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)).Inc()
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// rateLimitMiddleware rejects requests over the limiter's window with
// 429 and a Retry-After hint.
func (s *Server) rateLimitMiddleware(limiter *ratelimit.Limiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter := limiter.Allow(rateKey(r))
			if !ok {
				s.metrics.RateLimited.WithLabelValues(scope).Inc()
				writeRateLimited(w, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateKey identifies the caller: the authenticated identity when
// present, the client IP otherwise. An authenticated user keeps one
// budget across devices; anonymous clients share per address.
func rateKey(r *http.Request) string {
	if user, ok := auth.UserFromContext(r.Context()); ok {
		return user.Key()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
