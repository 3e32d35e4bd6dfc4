package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/phrazzld/quizgen-api/internal/api/shared"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/phrazzld/quizgen-api/internal/service"
)

// DefaultMaxUploadBytes bounds the size of an uploaded PDF unless the
// handler is given another limit.
const DefaultMaxUploadBytes = 50 << 20

// UploadManager accepts source PDFs and reports on them.
type UploadManager interface {
	CreateUpload(ctx context.Context, in service.CreateUploadInput) (*domain.Upload, error)
	GetUpload(ctx context.Context, id uuid.UUID) (*service.UploadDetail, error)
	ListUploads(ctx context.Context, chapterID uuid.UUID) ([]service.UploadSummary, error)
}

// UploadHandler serves PDF intake and upload lookups.
type UploadHandler struct {
	uploads  UploadManager
	maxBytes int64
	logger   *slog.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(uploads UploadManager, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for UploadHandler")
	}
	return &UploadHandler{
		uploads:  uploads,
		maxBytes: DefaultMaxUploadBytes,
		logger:   logger.With(slog.String("component", "upload_handler")),
	}
}

// WithMaxBytes sets the largest accepted PDF. Non-positive values keep the default.
func (h *UploadHandler) WithMaxBytes(n int64) *UploadHandler {
	if n > 0 {
		h.maxBytes = n
	}
	return h
}

// CreateUpload handles POST /api/uploads. The multipart form carries the
// PDF in "file" and the taxonomy in classId, subjectId and chapterId.
func (h *UploadHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "Upload is too large")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	classification, err := parseClassification(r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid classification", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "A PDF file is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read upload")
		return
	}
	if int64(len(data)) > h.maxBytes {
		shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "Upload is too large")
		return
	}

	in := service.CreateUploadInput{
		Classification: classification,
		Filename:       header.Filename,
		ContentType:    header.Header.Get("Content-Type"),
		Data:           data,
	}
	if reviewer, ok := shared.GetReviewerID(r.Context()); ok {
		in.UploadedBy = &reviewer
	}

	upload, err := h.uploads.CreateUpload(r.Context(), in)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create upload")
		return
	}

	log.Info("upload created", "upload_id", upload.ID, "page_count", upload.PageCount)
	shared.RespondWithJSON(w, r, http.StatusCreated, uploadToResponse(upload))
}

// GetUpload handles GET /api/uploads/{uploadId}
func (h *UploadHandler) GetUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, "uploadId")
	if !ok {
		return
	}
	detail, err := h.uploads.GetUpload(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get upload")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, uploadDetailToResponse(detail))
}

// ListUploads handles GET /api/uploads?chapterId=. It returns the
// chapter's most recent uploads, newest first.
func (h *UploadHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	chapterID, err := queryUUID(r, "chapterId")
	if err != nil || chapterID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "chapterId is required")
		return
	}
	summaries, err := h.uploads.ListUploads(r.Context(), chapterID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list uploads")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, uploadSummariesToResponse(summaries))
}

func parseClassification(r *http.Request) (domain.Classification, error) {
	var cl domain.Classification
	classID, err := strconv.Atoi(r.FormValue("classId"))
	if err != nil || classID <= 0 {
		return cl, errors.New("classId must be a positive integer")
	}
	subjectID, err := uuid.Parse(r.FormValue("subjectId"))
	if err != nil {
		return cl, errors.New("subjectId must be a uuid")
	}
	chapterID, err := uuid.Parse(r.FormValue("chapterId"))
	if err != nil {
		return cl, errors.New("chapterId must be a uuid")
	}
	cl.ClassID = classID
	cl.SubjectID = subjectID
	cl.ChapterID = chapterID
	return cl, nil
}
