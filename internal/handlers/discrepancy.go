// internal/handlers/discrepancy.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
	"github.com/binwise/binwise-be/internal/core/services"
)

// DiscrepancyHandler exposes the cycle-count reconciliation surface.
type DiscrepancyHandler struct {
	service *services.DiscrepancyService
	logger  *slog.Logger
}

// NewDiscrepancyHandler creates a new discrepancy handler
func NewDiscrepancyHandler(service *services.DiscrepancyService, logger *slog.Logger) *DiscrepancyHandler {
	return &DiscrepancyHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "discrepancy")),
	}
}

// ReportCount handles POST /api/v1/discrepancies/report-count
func (h *DiscrepancyHandler) ReportCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.ReportCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ItemID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "item_id is required")
		return
	}

	result, err := h.service.ReportCount(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to report count",
			slog.String("item_id", req.ItemID.String()),
			slog.String("error", err.Error()))

		// The record may already be persisted even though the ledger write
		// failed. Surface it so the caller can follow up.
		if result != nil && result.Created {
			respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error":       "Discrepancy recorded but stock update failed",
				"discrepancy": result.Discrepancy,
			})
			return
		}
		respondDomainError(w, err, "Failed to report count")
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, result)
}

// Resolve handles POST /api/v1/discrepancies/{id}/resolve
func (h *DiscrepancyHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := r.PathValue("id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid discrepancy ID format")
		return
	}

	if err := h.service.Resolve(ctx, id); err != nil {
		h.logger.ErrorContext(ctx, "failed to resolve discrepancy",
			slog.String("discrepancy_id", idStr),
			slog.String("error", err.Error()))
		respondDomainError(w, err, "Failed to resolve discrepancy")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"id":     idStr,
		"status": string(domain.DiscrepancyResolved),
	})
}

// List handles GET /api/v1/discrepancies
func (h *DiscrepancyHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := organizationID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing or invalid organization ID")
		return
	}

	params := ports.DiscrepancyListParams{
		OrganizationID: orgID,
		Status:         domain.DiscrepancyStatus(r.URL.Query().Get("status")),
		Page:           1,
		PageSize:       50,
	}

	if itemID := r.URL.Query().Get("item_id"); itemID != "" {
		id, err := uuid.Parse(itemID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid item_id format")
			return
		}
		params.ItemID = id
	}
	if page := r.URL.Query().Get("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			params.Page = p
		}
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 && l <= 200 {
			params.PageSize = l
		}
	}

	recs, total, err := h.service.List(ctx, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list discrepancies",
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to list discrepancies")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"discrepancies": recs,
		"total_count":   total,
		"page":          params.Page,
		"page_size":     params.PageSize,
	})
}
