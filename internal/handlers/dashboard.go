// internal/handlers/dashboard.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/binwise/binwise-be/internal/core/services"
)

// DashboardHandler serves the cached stock summary.
type DashboardHandler struct {
	inventory *services.InventoryService
	logger    *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(inventory *services.InventoryService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		inventory: inventory,
		logger:    logger.With(slog.String("handler", "dashboard")),
	}
}

// GetDashboard handles GET /api/v1/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := organizationID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing or invalid organization ID")
		return
	}

	summary, err := h.inventory.Dashboard(ctx, orgID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load dashboard",
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to load dashboard")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
