package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxPagesPerUpload caps the number of pages accepted in one PDF.
const MaxPagesPerUpload = 100

// Classification places an upload in the curriculum taxonomy.
type Classification struct {
	ClassID   int       `json:"class_id"`
	SubjectID uuid.UUID `json:"subject_id"`
	ChapterID uuid.UUID `json:"chapter_id"`
}

// Upload is a source PDF whose pages feed generation. It is immutable after
// creation; its pages carry all pipeline state.
type Upload struct {
	ID               uuid.UUID      `json:"id"`
	Classification   Classification `json:"classification"`
	UploadedBy       *uuid.UUID     `json:"uploaded_by,omitempty"`
	OriginalFilename string         `json:"original_filename"`
	MimeType         string         `json:"mime_type"`
	Bucket           string         `json:"bucket"`
	PDFKey           string         `json:"pdf_key"`
	PageCount        int            `json:"page_count"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Chapter is the taxonomy leaf an upload is filed under.
type Chapter struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`
	ClassID   int       `json:"class_id"`
	Name      string    `json:"name"`
}

// Subject groups chapters and scopes bank sequence numbers.
type Subject struct {
	ID      uuid.UUID `json:"id"`
	ClassID int       `json:"class_id"`
	Code    string    `json:"code"`
	Name    string    `json:"name"`
}

// Matches reports whether the chapter belongs to the classification's
// subject and class.
func (c Chapter) Matches(cl Classification) bool {
	return c.ID == cl.ChapterID && c.SubjectID == cl.SubjectID && c.ClassID == cl.ClassID
}
