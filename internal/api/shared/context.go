package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ContextKey is the type of request context keys set by this package.
type ContextKey string

const (
	// ReviewerIDContextKey holds the reviewer id taken from X-Reviewer-ID.
	ReviewerIDContextKey ContextKey = "reviewerID"
	// TraceIDKey holds the trace id of the request.
	TraceIDKey ContextKey = "traceID"
	// TraceIDLength is the number of random bytes in a trace id.
	TraceIDLength = 16
)

// SetTraceID adds a new trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// SetReviewerID stores the reviewer id in the context.
func SetReviewerID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ReviewerIDContextKey, id)
}

// GetReviewerID returns the reviewer id stored by SetReviewerID.
func GetReviewerID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ReviewerIDContextKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// generateTraceID returns 32 hex characters. If crypto/rand fails it falls
// back to a time based id rather than a static value.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if n, err := rand.Read(b); err != nil || n != TraceIDLength {
		slog.Error("failed to generate secure random trace ID",
			"error", err,
			"bytes_read", n,
			"fallback", "time-based generation")
		return generateFallbackTraceID()
	}
	return hex.EncodeToString(b)
}

func generateFallbackTraceID() string {
	b := make([]byte, TraceIDLength)
	now := time.Now()
	binary.BigEndian.PutUint64(b[:8], uint64(now.UnixNano()))
	binary.BigEndian.PutUint32(b[8:12], uint32(now.Nanosecond()))
	binary.BigEndian.PutUint32(b[12:16], uint32(now.Unix()))
	return hex.EncodeToString(b)
}
