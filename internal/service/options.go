package service

import (
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/phrazzld/quizgen-api/internal/platform/tracing"
)

// Option configures a service.
type Option func(*settings)

type settings struct {
	now     func() time.Time
	signTTL time.Duration
}

// defaultSignTTL is how long page and PDF links stay valid unless
// WithSignTTL says otherwise.
const defaultSignTTL = 24 * time.Hour

// WithClock replaces time.Now. Tests use it to pin timestamps and job ids.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithSignTTL sets the lifetime of object links handed to clients.
func WithSignTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.signTTL = ttl
		}
	}
}

func applyOptions(opts []Option) settings {
	s := settings{
		now:     func() time.Time { return time.Now().UTC() },
		signTTL: defaultSignTTL,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

var tracer = tracing.Tracer("service")

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
