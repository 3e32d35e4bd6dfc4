package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/quizgen-api/internal/api/shared"
	"github.com/phrazzld/quizgen-api/internal/domain"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
)

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}
	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrValidation, paramName)
	}
	return id, nil
}

// handlePathUUID is getPathUUID that writes the error response itself.
// It reports false when a response was written.
func handlePathUUID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, bool) {
	id, err := getPathUUID(r, paramName)
	if err != nil {
		logger.FromContext(r.Context()).Warn("invalid "+paramName,
			"param_name", paramName,
			"value", chi.URLParam(r, paramName))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid "+paramName)
		return uuid.Nil, false
	}
	return id, true
}

// handleReviewerID returns the reviewer placed in the context by
// middleware.RequireReviewer.
func handleReviewerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := shared.GetReviewerID(r.Context())
	if !ok {
		logger.FromContext(r.Context()).Warn("reviewer ID not found in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Reviewer identity required")
		return uuid.Nil, false
	}
	return id, true
}

// decodeAndValidate reads a JSON body into v and validates it, writing a
// 400 response on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}

// queryInt parses an optional positive integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", domain.ErrValidation, name)
	}
	return n, nil
}

// queryUUID parses an optional uuid query parameter.
func queryUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrValidation, name)
	}
	return id, nil
}
