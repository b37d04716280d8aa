// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/track"
)

// TraceHeader is the response header carrying the request's trace ID, so a
// client error report can be matched to server logs.
const TraceHeader = "X-Trace-Id"

// TraceMiddleware stamps every request with a fresh trace ID, attaches a
// request-scoped logger carrying it, and echoes the ID back in the response
// headers. It runs first in the chain; jobs admitted during the request
// inherit the ID, so one trace spans the HTTP call and the background
// pipeline work it started.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := track.SetTraceID(r.Context())
		traceID := track.GetTraceID(ctx)

		log := slog.With(slog.String("trace_id", traceID))
		ctx = logger.WithContext(ctx, log)

		w.Header().Set(TraceHeader, traceID)
		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
