package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"hris/internal/domain/auth"
)

type StatusRecorder interface {
	Record(status int, duration time.Duration)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logger writes one structured line per request and feeds the outcome to rec
// when it is non-nil.
func Logger(rec StatusRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			caller := &auth.UserContext{}
			ctx := context.WithValue(r.Context(), ctxKeyLogUser, caller)
			next.ServeHTTP(recorder, r.WithContext(ctx))
			elapsed := time.Since(start)

			if rec != nil {
				rec.Record(recorder.status, elapsed)
			}
			level := slog.LevelInfo
			if recorder.status >= 500 {
				level = slog.LevelError
			}
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"durationMs", elapsed.Milliseconds(),
				"requestId", GetRequestID(r.Context()),
			}
			if caller.UserID != "" {
				attrs = append(attrs, "tenantId", caller.TenantID, "userId", caller.UserID)
			}
			slog.Log(r.Context(), level, "http request", attrs...)
		})
	}
}
