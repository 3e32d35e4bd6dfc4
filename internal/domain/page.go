package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PageStatus is the pipeline stage of a page. It is the single source of
// truth for where a page is in generation.
type PageStatus string

// Possible page status values.
const (
	PageStatusPending    PageStatus = "pending"
	PageStatusQueued     PageStatus = "queued"
	PageStatusGenerating PageStatus = "generating"
	PageStatusComplete   PageStatus = "complete"
	PageStatusFailed     PageStatus = "failed"
)

// PageStatuses lists every page status in pipeline order.
var PageStatuses = []PageStatus{
	PageStatusPending,
	PageStatusQueued,
	PageStatusGenerating,
	PageStatusComplete,
	PageStatusFailed,
}

// Valid reports whether s is one of the five page statuses.
func (s PageStatus) Valid() bool {
	switch s {
	case PageStatusPending, PageStatusQueued, PageStatusGenerating,
		PageStatusComplete, PageStatusFailed:
		return true
	default:
		return false
	}
}

// PageEvent is something that happens to a page and may move its status.
type PageEvent string

// Page events.
const (
	PageEventStart           PageEvent = "start_generation"
	PageEventPicked          PageEvent = "attempt_started"
	PageEventSucceeded       PageEvent = "attempt_succeeded"
	PageEventFailedRetryable PageEvent = "attempt_failed_retryable"
	PageEventFailedTerminal  PageEvent = "attempt_failed_terminal"
	PageEventRetry           PageEvent = "retry_failed_page"
	PageEventRegenerate      PageEvent = "regenerate_page"
)

// PageEvents lists every page event.
var PageEvents = []PageEvent{
	PageEventStart,
	PageEventPicked,
	PageEventSucceeded,
	PageEventFailedRetryable,
	PageEventFailedTerminal,
	PageEventRetry,
	PageEventRegenerate,
}

// NextPageStatus returns the status a page moves to when ev happens in
// status from. Pairs not in the transition table return ErrIllegalTransition.
//
// Regenerate is accepted from every status; whether the page holds a
// locked question is checked by the caller.
func NextPageStatus(from PageStatus, ev PageEvent) (PageStatus, error) {
	if !from.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, from)
	}

	switch ev {
	case PageEventStart:
		if from == PageStatusPending {
			return PageStatusQueued, nil
		}
	case PageEventPicked:
		if from == PageStatusQueued {
			return PageStatusGenerating, nil
		}
	case PageEventSucceeded:
		if from == PageStatusGenerating {
			return PageStatusComplete, nil
		}
	case PageEventFailedRetryable:
		if from == PageStatusGenerating {
			return PageStatusQueued, nil
		}
	case PageEventFailedTerminal:
		if from == PageStatusGenerating {
			return PageStatusFailed, nil
		}
	case PageEventRetry:
		if from == PageStatusFailed {
			return PageStatusQueued, nil
		}
	case PageEventRegenerate:
		return PageStatusQueued, nil
	default:
		return "", fmt.Errorf("%w: unknown event %q", ErrIllegalTransition, ev)
	}

	return "", fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
}

// Page is one rasterized image of one PDF page and the unit of generation work.
type Page struct {
	ID              uuid.UUID  `json:"id"`
	UploadID        uuid.UUID  `json:"upload_id"`
	PageNumber      int        `json:"page_number"`
	Status          PageStatus `json:"status"`
	Language        *Language  `json:"language,omitempty"`
	LastGeneratedAt *time.Time `json:"last_generated_at,omitempty"`
	PNGKey          string     `json:"png_key"`
	ThumbKey        string     `json:"thumb_key"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Apply moves the page through ev, updating UpdatedAt on success.
func (p *Page) Apply(ev PageEvent, now time.Time) error {
	next, err := NextPageStatus(p.Status, ev)
	if err != nil {
		return err
	}
	p.Status = next
	p.UpdatedAt = now
	return nil
}

// PageAssetKeys returns the object keys for a page's rendered PNG and thumbnail.
func PageAssetKeys(uploadID uuid.UUID, pageNumber int) (pngKey, thumbKey string) {
	base := fmt.Sprintf("uploads/%s/pages/%04d", uploadID, pageNumber)
	return base + ".png", base + "_thumb.jpg"
}

// SourcePDFKey returns the object key of an upload's source PDF.
func SourcePDFKey(uploadID uuid.UUID) string {
	return fmt.Sprintf("uploads/%s/source.pdf", uploadID)
}
