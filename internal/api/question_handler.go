package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/quizgen-api/internal/api/shared"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/phrazzld/quizgen-api/internal/service"
	"github.com/phrazzld/quizgen-api/internal/store"
)

// QuestionReviewer lists and changes the review pool.
type QuestionReviewer interface {
	List(ctx context.Context, f store.QuestionFilter) (*service.QuestionList, error)
	Update(ctx context.Context, id uuid.UUID, edit service.QuestionEdit, reviewerID uuid.UUID) (*domain.Question, error)
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status domain.QuestionStatus, reviewerID uuid.UUID) (int, error)
	BulkDelete(ctx context.Context, ids []uuid.UUID) (int, error)
}

// QuestionPublisher copies approved questions into the bank.
type QuestionPublisher interface {
	BulkPublish(ctx context.Context, ids []uuid.UUID, reviewerID uuid.UUID) (*service.PublishResult, error)
}

// QuestionHandler serves the review pool, bulk review and publish.
type QuestionHandler struct {
	reviewer  QuestionReviewer
	publisher QuestionPublisher
	logger    *slog.Logger
}

// NewQuestionHandler creates a new QuestionHandler
func NewQuestionHandler(reviewer QuestionReviewer, publisher QuestionPublisher, logger *slog.Logger) *QuestionHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for QuestionHandler")
	}
	return &QuestionHandler{
		reviewer:  reviewer,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "question_handler")),
	}
}

// ListQuestions handles GET /api/questions. classId, subjectId, chapterId
// and pageId narrow the listing and status selects one review status, with
// "all" or no value meaning every status.
func (h *QuestionHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	f, err := parseQuestionFilter(r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid question filter", err)
		return
	}

	list, err := h.reviewer.List(r.Context(), f)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list questions")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, questionListToResponse(list))
}

// UpdateQuestion handles PATCH /api/questions/{questionId}
func (h *QuestionHandler) UpdateQuestion(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := handleReviewerID(w, r)
	if !ok {
		return
	}
	id, ok := handlePathUUID(w, r, "questionId")
	if !ok {
		return
	}
	var req UpdateQuestionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	q, err := h.reviewer.Update(r.Context(), id, req.edit(), reviewerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update question")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, questionToResponse(q))
}

func parseQuestionFilter(r *http.Request) (store.QuestionFilter, error) {
	var f store.QuestionFilter
	var err error
	if f.ClassID, err = queryInt(r, "classId"); err != nil {
		return f, err
	}
	if f.SubjectID, err = queryUUID(r, "subjectId"); err != nil {
		return f, err
	}
	if f.ChapterID, err = queryUUID(r, "chapterId"); err != nil {
		return f, err
	}
	if f.PageID, err = queryUUID(r, "pageId"); err != nil {
		return f, err
	}
	switch status := r.URL.Query().Get("status"); status {
	case "", "all":
	default:
		f.Status = domain.QuestionStatus(status)
		if !f.Status.Valid() {
			return f, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
		}
	}
	return f, nil
}

// BulkUpdateStatus handles POST /api/questions/bulk/status
func (h *QuestionHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	reviewerID, ok := handleReviewerID(w, r)
	if !ok {
		return
	}
	var req BulkStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	n, err := h.reviewer.BulkUpdateStatus(r.Context(), req.QuestionIDs, domain.QuestionStatus(req.Status), reviewerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update questions")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, BulkUpdateResponse{Updated: n})
}

// BulkDelete handles POST /api/questions/bulk/delete
func (h *QuestionHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := handleReviewerID(w, r); !ok {
		return
	}
	var req BulkIDsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	n, err := h.reviewer.BulkDelete(r.Context(), req.QuestionIDs)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to delete questions")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, BulkDeleteResponse{Deleted: n})
}

// BulkPublish handles POST /api/questions/bulk/publish. Publishing is all
// or nothing and the response names why a rejected call failed.
func (h *QuestionHandler) BulkPublish(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	reviewerID, ok := handleReviewerID(w, r)
	if !ok {
		return
	}
	var req BulkIDsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.publisher.BulkPublish(r.Context(), req.QuestionIDs, reviewerID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to publish questions")
		return
	}

	log.Info("questions published", "count", len(res.QuestionIDs))
	shared.RespondWithJSON(w, r, http.StatusOK, PublishResponse{
		PublishedIDs: res.QuestionIDs,
		BankEntryIDs: res.BankEntryIDs,
	})
}
