package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/quizgen-api/internal/events"
)

// RecordingHandler implements events.EventHandler by collecting every event.
type RecordingHandler struct {
	// Err, when set, is returned from HandleEvent after the event is recorded.
	Err error

	mu     sync.Mutex
	events []*events.Event
}

var _ events.EventHandler = (*RecordingHandler)(nil)

// HandleEvent implements events.EventHandler.
func (h *RecordingHandler) HandleEvent(_ context.Context, e *events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return h.Err
}

// Events returns the recorded events in emission order.
func (h *RecordingHandler) Events() []*events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*events.Event(nil), h.events...)
}

// Types returns the type of every recorded event.
func (h *RecordingHandler) Types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

// Last returns the most recent event, or nil.
func (h *RecordingHandler) Last() *events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return nil
	}
	return h.events[len(h.events)-1]
}
