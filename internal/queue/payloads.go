package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerationPayload is the body of a generation job.
type GenerationPayload struct {
	PageID uuid.UUID `json:"pageId"`
	// QueuedAt is when the page entered queued for this job. A page queued
	// again after this time has a newer job, and this one is stale.
	QueuedAt time.Time `json:"queuedAt,omitzero"`
}

// RasterizationPayload is the body of a rasterization job, consumed by the
// external page renderer.
type RasterizationPayload struct {
	UploadID   uuid.UUID `json:"uploadId"`
	PageID     uuid.UUID `json:"pageId"`
	PageNumber int       `json:"pageNumber"`
	Bucket     string    `json:"bucket"`
	PDFKey     string    `json:"pdfKey"`
	PNGKey     string    `json:"pngKey"`
	ThumbKey   string    `json:"thumbKey"`
}

// PageJobID is the idempotency key for one generation request of a page.
// The nonce keeps two requests made in the same millisecond apart, so a
// retry is never swallowed by the job whose attempt it follows.
func PageJobID(pageID uuid.UUID, at time.Time, nonce uuid.UUID) string {
	return fmt.Sprintf("page:%s:%d:%s", pageID, at.UnixMilli(), nonce)
}

// RasterJobID is the idempotency key for rendering a page. A page is
// rendered once, so the key does not vary.
func RasterJobID(pageID uuid.UUID) string {
	return fmt.Sprintf("raster:%s", pageID)
}

// GenerationJob builds the generation job for a page queued at at.
func GenerationJob(pageID uuid.UUID, at time.Time, delay time.Duration) (Job, error) {
	payload := GenerationPayload{PageID: pageID, QueuedAt: at}
	return NewJob(Generation, PageJobID(pageID, at, uuid.New()), payload, delay)
}
