package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Pipeline event types.
const (
	// PageCompleted fires after a successful attempt replaced a page's questions.
	PageCompleted = "page.completed"

	// AttemptFailed fires when an attempt failed and a retry was scheduled.
	AttemptFailed = "attempt.failed"

	// PageFailed fires when a page exhausted its attempts and is terminally failed.
	PageFailed = "page.failed"

	// AttemptSuperseded fires when an attempt finished after the page had
	// already moved on, so its output was discarded.
	AttemptSuperseded = "attempt.superseded"

	// QuestionsPublished fires after questions were copied into the bank.
	QuestionsPublished = "questions.published"
)

// Event is something that happened in the pipeline. Events are emitted
// after the unit of work that caused them has committed.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the pipeline event types
	Type string `json:"type"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType string, payload any) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// PagePayload identifies the page and attempt an event is about.
type PagePayload struct {
	PageID     uuid.UUID `json:"pageId"`
	UploadID   uuid.UUID `json:"uploadId"`
	PageNumber int       `json:"pageNumber"`
	AttemptNo  int       `json:"attemptNo"`

	// Error is the attempt's error message, set on failure events.
	Error string `json:"error,omitempty"`

	// RetryInMS is the delay before the next attempt, set on AttemptFailed.
	RetryInMS int64 `json:"retryInMs,omitempty"`

	// QuestionCount is set on PageCompleted.
	QuestionCount int `json:"questionCount,omitempty"`
}

// PublishedPayload lists what a publish call put into the bank.
type PublishedPayload struct {
	ReviewerID   uuid.UUID   `json:"reviewerId"`
	QuestionIDs  []uuid.UUID `json:"questionIds"`
	BankEntryIDs []uuid.UUID `json:"bankEntryIds"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}
