package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDMiddleware tags each request with an ID (reusing X-Request-ID when the client
// sends one) and logs its completion
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		wrapped := &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		start := time.Now()
		DebugContext(ctx, "request started", "method", r.Method, "path", r.URL.Path, "remoteAddr", r.RemoteAddr)

		next.ServeHTTP(wrapped, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.Status,
			"durationMs", time.Since(start).Milliseconds(),
		}
		switch {
		case wrapped.Status >= 500:
			ErrorContext(ctx, "request failed", args...)
		case wrapped.Status >= 400:
			WarnContext(ctx, "request rejected", args...)
		default:
			InfoContext(ctx, "request completed", args...)
		}
	})
}

// StatusRecorder captures the status code written by a handler
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (rw *StatusRecorder) WriteHeader(code int) {
	rw.Status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper
func (rw *StatusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
