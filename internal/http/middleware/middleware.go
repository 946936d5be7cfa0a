// Package middleware holds the HTTP middleware the server wraps around
// every route.
//
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler that does something extra before/after calling the original:
//
//	handler = middleware.RequestID(middleware.Logger(log)(router))
//
// The request flows through the wrappers outside-in: RequestID first,
// then Logger, then the actual route handler.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// requestIDHeader is both read from the request (so callers can supply
// their own correlation id) and written to the response.
const requestIDHeader = "X-Request-Id"

// RequestID tags every request with a unique id. If the client already
// sent one we keep it — that lets a caller correlate its own logs with
// ours — otherwise we mint a fresh UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		// Set the header before calling next: once the handler writes the
		// status line, headers are locked.
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// Logger returns a middleware that writes one structured log line per
// completed request: method, path, status, request id, and duration.
//
// It takes the logger as a parameter (instead of using slog's default)
// so the whole chain shares the handler configured at startup.
func Logger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// http.ResponseWriter gives us no way to read back the status
			// code a handler wrote, so we wrap it and remember the code
			// as it passes through.
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.Info("request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.String("request_id", w.Header().Get(requestIDHeader)),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusRecorder embeds the real ResponseWriter and intercepts only
// WriteHeader. Handlers that never call WriteHeader implicitly send 200,
// which is why the field starts at StatusOK.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
