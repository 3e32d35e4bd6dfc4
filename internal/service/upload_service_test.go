package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/queue"
	"github.com/phrazzld/quizgen-api/internal/store"
)

// fakePDF builds a body with n page dictionaries under one page tree.
func fakePDF(n int) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n1 0 obj << /Type /Pages /Count ")
	fmt.Fprintf(&b, "%d >> endobj\n", n)
	for i := range n {
		if i%2 == 0 {
			fmt.Fprintf(&b, "%d 0 obj << /Type /Page /Parent 1 0 R >> endobj\n", i+2)
		} else {
			fmt.Fprintf(&b, "%d 0 obj <</Type/Page/Parent 1 0 R>> endobj\n", i+2)
		}
	}
	b.WriteString("%%EOF\n")
	return []byte(b.String())
}

func TestCountPDFPages(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want int
	}{
		{"empty", nil, 0},
		{"page tree only", []byte("<< /Type /Pages /Kids [] >>"), 0},
		{"three pages", fakePDF(3), 3},
		{"no whitespace", []byte("<</Type/Page>><</Type/Page>>"), 2},
		{"page label is not a page", []byte("<< /Type /PageLabel >>"), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CountPDFPages(tc.data))
		})
	}
}

func newUploadService(t *testing.T, f *fixture) *UploadService {
	t.Helper()
	svc, err := NewUploadService(f.store, f.queue, f.objects, discardLogger(),
		WithClock(f.clock.Now), WithSignTTL(time.Hour))
	require.NoError(t, err)
	return svc
}

func TestCreateUpload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	svc := newUploadService(t, f)
	uploader := uuid.New()
	data := fakePDF(3)

	upload, err := svc.CreateUpload(ctx, CreateUploadInput{
		Classification: f.classification(),
		UploadedBy:     &uploader,
		Filename:       "../books/Physics Ch1.pdf",
		ContentType:    "application/pdf",
		Data:           data,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, upload.PageCount)
	assert.Equal(t, "Physics Ch1.pdf", upload.OriginalFilename)
	assert.Equal(t, "test-bucket", upload.Bucket)
	assert.Equal(t, fmt.Sprintf("uploads/%s/source.pdf", upload.ID), upload.PDFKey)

	stored, contentType, err := f.objects.Get(upload.PDFKey)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
	assert.Equal(t, "application/pdf", contentType)

	pages, err := f.store.Stores().Pages.ListByUpload(ctx, upload.ID)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i+1, p.PageNumber)
		assert.Equal(t, domain.PageStatusPending, p.Status)
		assert.Equal(t, fmt.Sprintf("uploads/%s/pages/%04d.png", upload.ID, i+1), p.PNGKey)
		assert.Equal(t, fmt.Sprintf("uploads/%s/pages/%04d_thumb.jpg", upload.ID, i+1), p.ThumbKey)
	}

	jobs := f.queue.Jobs()
	require.Len(t, jobs, 3)
	for i, job := range jobs {
		assert.Equal(t, queue.Rasterization, job.Queue)
		assert.Equal(t, "raster:"+pages[i].ID.String(), job.ID)
		var payload queue.RasterizationPayload
		require.NoError(t, (&queue.Delivery{Job: job}).Decode(&payload))
		assert.Equal(t, queue.RasterizationPayload{
			UploadID:   upload.ID,
			PageID:     pages[i].ID,
			PageNumber: i + 1,
			Bucket:     "test-bucket",
			PDFKey:     upload.PDFKey,
			PNGKey:     pages[i].PNGKey,
			ThumbKey:   pages[i].ThumbKey,
		}, payload)
	}

	n, err := f.svc.StartGeneration(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "new uploads are ready for generation")
}

func TestCreateUploadRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(f *fixture, in *CreateUploadInput)
		wantErr error
	}{
		{
			name: "not a pdf",
			mutate: func(_ *fixture, in *CreateUploadInput) {
				in.Filename, in.ContentType = "notes.docx", "application/msword"
			},
			wantErr: domain.ErrInvalidDocument,
		},
		{
			name:    "no pages",
			mutate:  func(_ *fixture, in *CreateUploadInput) { in.Data = []byte("%PDF-1.4\n%%EOF") },
			wantErr: domain.ErrInvalidDocument,
		},
		{
			name:    "too many pages",
			mutate:  func(_ *fixture, in *CreateUploadInput) { in.Data = fakePDF(domain.MaxPagesPerUpload + 1) },
			wantErr: domain.ErrInvalidDocument,
		},
		{
			name:    "unknown chapter",
			mutate:  func(_ *fixture, in *CreateUploadInput) { in.Classification.ChapterID = uuid.New() },
			wantErr: store.ErrChapterNotFound,
		},
		{
			name:    "chapter from another class",
			mutate:  func(_ *fixture, in *CreateUploadInput) { in.Classification.ClassID = 10 },
			wantErr: domain.ErrClassificationMismatch,
		},
		{
			name:    "chapter from another subject",
			mutate:  func(_ *fixture, in *CreateUploadInput) { in.Classification.SubjectID = uuid.New() },
			wantErr: domain.ErrClassificationMismatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			svc := newUploadService(t, f)
			in := CreateUploadInput{
				Classification: f.classification(),
				Filename:       "book.pdf",
				ContentType:    "application/pdf",
				Data:           fakePDF(2),
			}
			tc.mutate(f, &in)

			_, err := svc.CreateUpload(context.Background(), in)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, f.queue.Jobs())
		})
	}
}

func TestCreateUploadAcceptsPDFByExtension(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := newUploadService(t, f)

	upload, err := svc.CreateUpload(context.Background(), CreateUploadInput{
		Classification: f.classification(),
		Filename:       "SCAN.PDF",
		ContentType:    "application/octet-stream",
		Data:           fakePDF(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", upload.MimeType)
}

func TestGetUpload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	svc := newUploadService(t, f)
	upload, pages := f.seedUpload(3)

	detail, err := svc.GetUpload(ctx, upload.ID)
	require.NoError(t, err)
	assert.Equal(t, upload.ID, detail.Upload.ID)
	assert.Contains(t, detail.PDFURL, upload.PDFKey)
	require.Len(t, detail.Pages, 3)
	for i, view := range detail.Pages {
		assert.Equal(t, pages[i].ID, view.Page.ID)
		assert.Equal(t, i+1, view.Page.PageNumber)
		assert.Contains(t, view.ImageURL, pages[i].PNGKey)
		assert.Contains(t, view.ThumbURL, pages[i].ThumbKey)
	}

	_, err = svc.GetUpload(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrUploadNotFound)
}

func TestListUploads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	svc := newUploadService(t, f)

	var newest *domain.Upload
	for range uploadListLimit + 2 {
		newest, _ = f.seedUpload(1)
	}
	_, pages := f.seedUpload(3)
	for _, p := range pages[:2] {
		p.Status = domain.PageStatusComplete
		require.NoError(t, f.store.Stores().Pages.Update(ctx, p))
	}

	summaries, err := svc.ListUploads(ctx, f.chapter.ID)
	require.NoError(t, err)
	require.Len(t, summaries, uploadListLimit)
	assert.Equal(t, pages[0].UploadID, summaries[0].Upload.ID, "newest first")
	assert.Equal(t, 2, summaries[0].CompletedPages)
	assert.Contains(t, summaries[0].PDFURL, summaries[0].Upload.PDFKey)
	assert.Equal(t, newest.ID, summaries[1].Upload.ID)
	assert.Zero(t, summaries[1].CompletedPages)

	_, err = svc.ListUploads(ctx, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.ListUploads(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrChapterNotFound)
}
