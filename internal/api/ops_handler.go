package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/quizgen-api/internal/api/shared"
	"github.com/phrazzld/quizgen-api/internal/service"
)

// OpsReporter builds the operator overview.
type OpsReporter interface {
	GetOverview(ctx context.Context, windowHours int) (*service.OpsOverview, error)
}

// OpsHandler serves the operator overview.
type OpsHandler struct {
	ops    OpsReporter
	logger *slog.Logger
}

// NewOpsHandler creates a new OpsHandler
func NewOpsHandler(ops OpsReporter, logger *slog.Logger) *OpsHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for OpsHandler")
	}
	return &OpsHandler{ops: ops, logger: logger.With(slog.String("component", "ops_handler"))}
}

// GetOverview handles GET /api/ops/overview?windowHours=N
func (h *OpsHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "windowHours")
	if err != nil || window > service.MaxWindowHours {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			fmt.Sprintf("windowHours must be a positive integer no greater than %d", service.MaxWindowHours))
		return
	}

	ov, err := h.ops.GetOverview(r.Context(), window)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load ops overview")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, opsToResponse(ov))
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
