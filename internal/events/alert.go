package events

import (
	"context"
	"log/slog"
)

// AlertHandler logs pipeline events that need an operator's attention.
// Terminal page failures are logged at error level, scheduled retries at
// warn level and everything else at debug.
type AlertHandler struct {
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(logger *slog.Logger) *AlertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertHandler{logger: logger.With("component", "ops_alert")}
}

var _ EventHandler = (*AlertHandler)(nil)

// HandleEvent implements EventHandler.
func (h *AlertHandler) HandleEvent(ctx context.Context, event *Event) error {
	switch event.Type {
	case PageFailed, AttemptFailed, AttemptSuperseded:
		var p PagePayload
		if err := event.UnmarshalPayload(&p); err != nil {
			return err
		}
		attrs := []any{
			"event_id", event.ID,
			"event_type", event.Type,
			"page_id", p.PageID,
			"upload_id", p.UploadID,
			"page_number", p.PageNumber,
			"attempt_no", p.AttemptNo,
			"reason", p.Error,
		}
		switch event.Type {
		case PageFailed:
			h.logger.ErrorContext(ctx, "page generation failed permanently", attrs...)
		case AttemptFailed:
			h.logger.WarnContext(ctx, "generation attempt failed, retry scheduled",
				append(attrs, "retry_in_ms", p.RetryInMS)...)
		default:
			h.logger.InfoContext(ctx, "generation attempt superseded", attrs...)
		}
	case QuestionsPublished:
		var p PublishedPayload
		if err := event.UnmarshalPayload(&p); err != nil {
			return err
		}
		h.logger.InfoContext(ctx, "questions published",
			"event_id", event.ID,
			"reviewer_id", p.ReviewerID,
			"count", len(p.QuestionIDs))
	default:
		h.logger.DebugContext(ctx, "pipeline event", "event_id", event.ID, "event_type", event.Type)
	}
	return nil
}
