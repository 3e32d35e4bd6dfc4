package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/quizgen-api/internal/api/shared"
	"github.com/phrazzld/quizgen-api/internal/platform/logger"
)

// ReviewerHeader carries the reviewer id set by the fronting gateway.
const ReviewerHeader = "X-Reviewer-ID"

// RequireReviewer rejects requests without a valid reviewer id and stores
// the id in the request context.
func RequireReviewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(ReviewerHeader)
		if raw == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Reviewer identity required")
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			logger.FromContext(r.Context()).Warn("invalid reviewer header", "header", ReviewerHeader)
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid reviewer identity")
			return
		}

		ctx := shared.SetReviewerID(r.Context(), id)
		ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("reviewer_id", id.String()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
