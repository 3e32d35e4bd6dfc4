package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/quizgen-api/internal/api/shared"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
	"github.com/phrazzld/quizgen-api/internal/service"
)

// GenerationController is the part of the generation service the HTTP
// surface drives.
type GenerationController interface {
	StartGeneration(ctx context.Context, uploadID uuid.UUID) (int, error)
	RetryFailedPage(ctx context.Context, pageID uuid.UUID) error
	RegeneratePage(ctx context.Context, pageID uuid.UUID) error
	GetUploadOverview(ctx context.Context, uploadID uuid.UUID) (*service.UploadOverview, error)
}

// GenerationHandler serves the operator generation endpoints.
type GenerationHandler struct {
	generation GenerationController
	logger     *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler
func NewGenerationHandler(generation GenerationController, logger *slog.Logger) *GenerationHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for GenerationHandler")
	}
	return &GenerationHandler{
		generation: generation,
		logger:     logger.With(slog.String("component", "generation_handler")),
	}
}

// GetOverview handles GET /api/generation/uploads/{uploadId}
func (h *GenerationHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	uploadID, ok := handlePathUUID(w, r, "uploadId")
	if !ok {
		return
	}

	ov, err := h.generation.GetUploadOverview(r.Context(), uploadID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load generation overview")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, overviewToResponse(ov))
}

// StartGeneration handles POST /api/generation/uploads/{uploadId}/start
func (h *GenerationHandler) StartGeneration(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	uploadID, ok := handlePathUUID(w, r, "uploadId")
	if !ok {
		return
	}

	n, err := h.generation.StartGeneration(r.Context(), uploadID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to start generation")
		return
	}

	log.Info("generation started", "upload_id", uploadID, "queued_pages", n)
	shared.RespondWithJSON(w, r, http.StatusAccepted, StartGenerationResponse{QueuedPages: n})
}

// RetryPage handles POST /api/generation/pages/{pageId}/retry
func (h *GenerationHandler) RetryPage(w http.ResponseWriter, r *http.Request) {
	h.queuePage(w, r, "retry", h.generation.RetryFailedPage)
}

// RegeneratePage handles POST /api/generation/pages/{pageId}/regenerate
func (h *GenerationHandler) RegeneratePage(w http.ResponseWriter, r *http.Request) {
	h.queuePage(w, r, "regenerate", h.generation.RegeneratePage)
}

func (h *GenerationHandler) queuePage(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	fn func(context.Context, uuid.UUID) error,
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	pageID, ok := handlePathUUID(w, r, "pageId")
	if !ok {
		return
	}

	if err := fn(r.Context(), pageID); err != nil {
		HandleAPIError(w, r, err, "Failed to "+action+" page")
		return
	}

	log.Info("page queued", "action", action, "page_id", pageID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, PageActionResponse{
		PageID: pageID,
		Status: string(domain.PageStatusQueued),
	})
}
