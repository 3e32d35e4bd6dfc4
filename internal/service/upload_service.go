package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/objectstore"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/phrazzld/quizgen-api/internal/queue"
	"github.com/phrazzld/quizgen-api/internal/store"
)

const (
	opCreateUpload = "create_upload"
	opGetUpload    = "get_upload"
	opListUploads  = "list_uploads"
)

// uploadListLimit bounds a chapter's upload listing.
const uploadListLimit = 10

const pdfMimeType = "application/pdf"

// pageObject matches a page dictionary in a PDF body. The word boundary
// keeps /Pages tree nodes out of the count.
var pageObject = regexp.MustCompile(`/Type\s*/Page\b`)

// CountPDFPages estimates the number of pages in a PDF by counting page
// dictionaries. It does not parse the document structure.
func CountPDFPages(data []byte) int {
	return len(pageObject.FindAllIndex(data, -1))
}

// CreateUploadInput is a PDF submitted for generation.
type CreateUploadInput struct {
	Classification domain.Classification
	UploadedBy     *uuid.UUID
	Filename       string
	ContentType    string
	Data           []byte
}

// PageView is a page with signed links to its rendered images.
type PageView struct {
	Page     *domain.Page
	ImageURL string
	ThumbURL string
}

// UploadDetail is an upload with its pages in page number order.
type UploadDetail struct {
	Upload *domain.Upload
	PDFURL string
	Pages  []PageView
}

// UploadSummary is one row of a chapter's upload listing.
type UploadSummary struct {
	Upload         *domain.Upload
	PDFURL         string
	CompletedPages int
}

// UploadService accepts source PDFs and seeds their pages.
type UploadService struct {
	tx      store.Transactor
	queue   queue.Queue
	objects objectstore.Store
	signTTL time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewUploadService creates an UploadService.
func NewUploadService(
	tx store.Transactor,
	q queue.Queue,
	objects objectstore.Store,
	logger *slog.Logger,
	opts ...Option,
) (*UploadService, error) {
	const op = "create_upload_service"
	switch {
	case tx == nil:
		return nil, missingDependency(op, "transactor")
	case q == nil:
		return nil, missingDependency(op, "queue")
	case objects == nil:
		return nil, missingDependency(op, "object store")
	case logger == nil:
		return nil, missingDependency(op, "logger")
	}
	set := applyOptions(opts)
	return &UploadService{
		tx:      tx,
		queue:   q,
		objects: objects,
		signTTL: set.signTTL,
		now:     set.now,
		logger:  logger.With("component", "upload_service"),
	}, nil
}

// CreateUpload stores the PDF, records the upload with one pending page per
// PDF page, and enqueues a rasterization job for every page.
func (s *UploadService) CreateUpload(ctx context.Context, in CreateUploadInput) (upload *domain.Upload, err error) {
	ctx, span := tracer.Start(ctx, "upload.create",
		trace.WithAttributes(attribute.Int("upload.bytes", len(in.Data))))
	defer func() { endSpan(span, err) }()

	if !isPDF(in) {
		return nil, fmt.Errorf("%w: only PDF files are accepted", domain.ErrInvalidDocument)
	}
	pageCount := CountPDFPages(in.Data)
	switch {
	case pageCount == 0:
		return nil, fmt.Errorf("%w: no pages found", domain.ErrInvalidDocument)
	case pageCount > domain.MaxPagesPerUpload:
		return nil, fmt.Errorf("%w: %d pages exceeds the limit of %d",
			domain.ErrInvalidDocument, pageCount, domain.MaxPagesPerUpload)
	}

	chapter, err := s.tx.Stores().Uploads.GetChapter(ctx, in.Classification.ChapterID)
	if err != nil {
		return nil, NewServiceError(opCreateUpload, "failed to load chapter", err)
	}
	if !chapter.Matches(in.Classification) {
		return nil, domain.ErrClassificationMismatch
	}

	now := s.now()
	id := uuid.New()
	upload = &domain.Upload{
		ID:               id,
		Classification:   in.Classification,
		UploadedBy:       in.UploadedBy,
		OriginalFilename: path.Base(in.Filename),
		MimeType:         pdfMimeType,
		Bucket:           s.objects.Bucket(),
		PDFKey:           domain.SourcePDFKey(id),
		PageCount:        pageCount,
		CreatedAt:        now,
	}
	if err := s.objects.Put(ctx, upload.PDFKey, pdfMimeType, bytes.NewReader(in.Data)); err != nil {
		return nil, NewServiceError(opCreateUpload, "failed to store pdf", err)
	}

	pages := make([]*domain.Page, 0, pageCount)
	jobs := make([]queue.Job, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		pngKey, thumbKey := domain.PageAssetKeys(id, n)
		page := &domain.Page{
			ID:         uuid.New(),
			UploadID:   id,
			PageNumber: n,
			Status:     domain.PageStatusPending,
			PNGKey:     pngKey,
			ThumbKey:   thumbKey,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		job, err := queue.NewJob(queue.Rasterization, queue.RasterJobID(page.ID), queue.RasterizationPayload{
			UploadID:   id,
			PageID:     page.ID,
			PageNumber: n,
			Bucket:     upload.Bucket,
			PDFKey:     upload.PDFKey,
			PNGKey:     pngKey,
			ThumbKey:   thumbKey,
		}, 0)
		if err != nil {
			return nil, NewServiceError(opCreateUpload, "failed to build rasterization job", err)
		}
		pages = append(pages, page)
		jobs = append(jobs, job)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		if err := st.Uploads.Create(ctx, upload); err != nil {
			return err
		}
		if err := st.Pages.CreateBatch(ctx, pages); err != nil {
			return err
		}
		return s.queue.Enqueue(ctx, jobs...)
	})
	if err != nil {
		return nil, NewServiceError(opCreateUpload, "failed to record upload", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("upload created",
		"upload_id", id, "pages", pageCount, "chapter_id", chapter.ID)
	return upload, nil
}

// GetUpload returns the upload with its pages and signed links.
func (s *UploadService) GetUpload(ctx context.Context, id uuid.UUID) (*UploadDetail, error) {
	st := s.tx.Stores()
	upload, err := st.Uploads.GetByID(ctx, id)
	if err != nil {
		return nil, NewServiceError(opGetUpload, "failed to load upload", err)
	}
	pages, err := st.Pages.ListByUpload(ctx, id)
	if err != nil {
		return nil, NewServiceError(opGetUpload, "failed to load pages", err)
	}

	pdfURL, err := s.objects.SignedURL(ctx, upload.PDFKey, s.signTTL)
	if err != nil {
		return nil, NewServiceError(opGetUpload, "failed to sign pdf link", err)
	}
	detail := &UploadDetail{Upload: upload, PDFURL: pdfURL, Pages: make([]PageView, 0, len(pages))}
	for _, page := range pages {
		view := PageView{Page: page}
		if view.ImageURL, err = s.objects.SignedURL(ctx, page.PNGKey, s.signTTL); err != nil {
			return nil, NewServiceError(opGetUpload, "failed to sign page link", err)
		}
		if view.ThumbURL, err = s.objects.SignedURL(ctx, page.ThumbKey, s.signTTL); err != nil {
			return nil, NewServiceError(opGetUpload, "failed to sign page link", err)
		}
		detail.Pages = append(detail.Pages, view)
	}
	return detail, nil
}

// ListUploads returns the chapter's most recent uploads, newest first,
// with how many of their pages have finished generating.
func (s *UploadService) ListUploads(ctx context.Context, chapterID uuid.UUID) ([]UploadSummary, error) {
	if chapterID == uuid.Nil {
		return nil, fmt.Errorf("%w: chapter id is required", domain.ErrValidation)
	}
	st := s.tx.Stores()
	if _, err := st.Uploads.GetChapter(ctx, chapterID); err != nil {
		return nil, NewServiceError(opListUploads, "failed to load chapter", err)
	}
	uploads, err := st.Uploads.ListByChapter(ctx, chapterID, uploadListLimit)
	if err != nil {
		return nil, NewServiceError(opListUploads, "failed to list uploads", err)
	}

	out := make([]UploadSummary, 0, len(uploads))
	for _, upload := range uploads {
		pages, err := st.Pages.ListByUpload(ctx, upload.ID)
		if err != nil {
			return nil, NewServiceError(opListUploads, "failed to load pages", err)
		}
		summary := UploadSummary{Upload: upload}
		for _, page := range pages {
			if page.Status == domain.PageStatusComplete {
				summary.CompletedPages++
			}
		}
		if summary.PDFURL, err = s.objects.SignedURL(ctx, upload.PDFKey, s.signTTL); err != nil {
			return nil, NewServiceError(opListUploads, "failed to sign pdf link", err)
		}
		out = append(out, summary)
	}
	return out, nil
}

func isPDF(in CreateUploadInput) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(in.ContentType, ";")[0]))
	if ct == pdfMimeType {
		return true
	}
	return strings.EqualFold(path.Ext(in.Filename), ".pdf")
}
