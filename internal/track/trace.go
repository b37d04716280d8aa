package track

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// contextKey scopes context values to this package.
type contextKey string

const traceIDKey contextKey = "trace_id"

// SetTraceID stamps ctx with a freshly generated trace ID.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// WithTraceID attaches an existing trace ID to ctx. Workers use this to adopt
// the trace ID a job was submitted under, so one trace spans the HTTP request
// and the background processing it triggered.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace ID on ctx, or an empty string when there is
// none.
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey).(string)
	return traceID
}

// NewTraceID returns 32 hex characters of randomness. UUID generation is the
// entropy source; the dashes are dropped to keep log fields compact.
func NewTraceID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		slog.Error("failed to generate random trace ID", "error", err)
		return fallbackTraceID()
	}
	return hex.EncodeToString(id[:])
}

// fallbackTraceID derives an ID from the clock and process ID when the
// entropy source fails. Collisions are likelier than with random IDs; a
// constant would be worse.
func fallbackTraceID() string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], uint64(time.Now().UnixNano()))
	binary.BigEndian.PutUint32(b[8:12], uint32(os.Getpid()))
	binary.BigEndian.PutUint32(b[12:], uint32(time.Now().Nanosecond()))
	return hex.EncodeToString(b[:])
}
