package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"nammabody/internal/adapters/http/perf"
)

type noteKey struct{}

// requestNote carries what a handler attaches to its timing record.
type requestNote struct {
	reason string
}

// NoteReason attaches a failure reason to the current request's timing
// record. Outside Timing it does nothing.
func NoteReason(ctx context.Context, reason string) {
	if n, ok := ctx.Value(noteKey{}).(*requestNote); ok {
		n.reason = reason
	}
}

// recorder captures the first status code the handler writes.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

// WriteHeader records code and delegates to the wrapped writer.
// PRE: code is a valid HTTP status code
// POST: status holds the first code written
func (rw *recorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write implies a 200 when no header was written first.
func (rw *recorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.status = http.StatusOK
		rw.wroteHeader = true
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rw *recorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Timing returns middleware that logs each request with its status, duration
// and any reason noted by the handler. Health checks are excluded.
// Requests at or over slow log at WARN, the rest at DEBUG.
// If collector is non-nil, entries are recorded for the perf snapshot.
func Timing(collector *perf.Collector, slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			note := &requestNote{}
			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), noteKey{}, note)))
			elapsed := time.Since(start)
			durationMs := float64(elapsed.Microseconds()) / 1000.0

			attrs := []any{"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration_ms", durationMs}
			if note.reason != "" {
				attrs = append(attrs, "reason", note.reason)
			}
			if elapsed >= slow {
				slog.Warn("slow_request", attrs...)
			} else {
				slog.Debug("request", attrs...)
			}

			if collector != nil {
				collector.Record(perf.Entry{
					Kind:       perf.KindRequest,
					Path:       r.Method + " " + r.URL.Path,
					StatusCode: rec.status,
					Reason:     note.reason,
					DurationMs: durationMs,
					Timestamp:  start,
				})
			}
		})
	}
}
