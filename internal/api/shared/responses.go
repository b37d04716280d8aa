package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/echoscribe/echoscribe-api/internal/redact"
	"github.com/echoscribe/echoscribe-api/internal/track"
)

// ErrorResponse is the JSON body every failed request returns. Code is kept
// for logging only and never serialized.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"-"`
	TraceID string `json:"trace_id,omitempty"`
}

// RespondWithJSON writes data as a JSON response with the given status code.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes a JSON error body carrying message and the request's
// trace ID. The message must already be safe for clients.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondError(w, r, status, message, nil)
}

// RespondWithErrorAndLog behaves like RespondWithError and additionally logs
// the underlying error, redacted. The client sees only userMessage; err goes
// to the logs.
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	userMessage string,
	err error,
) {
	respondError(w, r, status, userMessage, err)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	traceID := track.GetTraceID(r.Context())

	attrs := []slog.Attr{
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("message", message),
	}
	if err != nil {
		// The raw error may carry connection strings or key material; only
		// the redacted form is logged, and none of it reaches the body.
		attrs = append(attrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}

	slog.LogAttrs(r.Context(), errorLogLevel(status), "request failed", attrs...)

	RespondWithJSON(w, r, status, ErrorResponse{
		Error:   message,
		Code:    status,
		TraceID: traceID,
	})
}

// errorLogLevel keeps client mistakes quiet and operational problems loud:
// 5xx at error, rate limiting at warn, remaining 4xx at debug.
func errorLogLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusTooManyRequests:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}
