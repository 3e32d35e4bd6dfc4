// Package backoff computes retry delays for failed generation attempts.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before re-running after attempt n (1-indexed) failed.
type Strategy interface {
	Delay(attempt int) time.Duration
}

// Table looks the base delay up by attempt number, clamping to the last
// entry, and adds a uniform jitter in [0, Jitter).
type Table struct {
	Delays []time.Duration
	Jitter time.Duration

	// Rand returns a value in [0, 1). Nil means math/rand/v2.
	Rand func() float64
}

// DefaultDelays is the base delay table for generation retries.
var DefaultDelays = []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}

// DefaultJitter bounds the random delay added to every retry.
const DefaultJitter = time.Second

// NewTable creates a table strategy using math/rand/v2.
func NewTable(delays []time.Duration, jitter time.Duration) *Table {
	return &Table{Delays: delays, Jitter: jitter}
}

var _ Strategy = (*Table)(nil)

// Base returns the table entry for attempt without jitter.
func (t *Table) Base(attempt int) time.Duration {
	if len(t.Delays) == 0 {
		return 0
	}
	idx := min(max(attempt-1, 0), len(t.Delays)-1)
	return t.Delays[idx]
}

// Delay returns Base(attempt) plus jitter. With Jitter of one second and a
// random draw of 0.2 the jitter is exactly 200ms.
func (t *Table) Delay(attempt int) time.Duration {
	return t.Base(attempt) + t.jitter()
}

func (t *Table) jitter() time.Duration {
	if t.Jitter <= 0 {
		return 0
	}
	r := rand.Float64
	if t.Rand != nil {
		r = t.Rand
	}
	ms := math.Floor(r() * float64(t.Jitter.Milliseconds()))
	return time.Duration(ms) * time.Millisecond
}
