// internal/handlers/inventory.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
	"github.com/binwise/binwise-be/internal/core/services"
)

// InventoryHandler handles inventory-related HTTP requests
type InventoryHandler struct {
	service *services.InventoryService
	logger  *slog.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(service *services.InventoryService, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "inventory")),
	}
}

// GetItem handles GET /api/v1/inventory/{id}
func (h *InventoryHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := r.PathValue("id")

	itemID, err := uuid.Parse(idStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid inventory ID format")
		return
	}

	item, err := h.service.Get(ctx, itemID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get inventory item",
			slog.String("item_id", idStr),
			slog.String("error", err.Error()))
		respondDomainError(w, err, "Failed to retrieve inventory item")
		return
	}

	respondJSON(w, http.StatusOK, itemResponse(item))
}

// ListItems handles GET /api/v1/inventory
func (h *InventoryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := organizationID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing or invalid organization ID")
		return
	}

	params := h.parseListParams(r)
	params.OrganizationID = orgID

	result, err := h.service.List(ctx, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list inventory items",
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to list inventory items")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// CreateItem handles POST /api/v1/inventory
func (h *InventoryHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := organizationID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing or invalid organization ID")
		return
	}

	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item := req.ToDomain(orgID)
	if err := item.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Create(ctx, item); err != nil {
		h.logger.ErrorContext(ctx, "failed to create inventory item",
			slog.String("sku", item.SKU),
			slog.String("error", err.Error()))
		respondDomainError(w, err, "Failed to create inventory item")
		return
	}

	h.logger.InfoContext(ctx, "inventory item created",
		slog.String("item_id", item.ID.String()),
		slog.String("sku", item.SKU))

	respondJSON(w, http.StatusCreated, itemResponse(item))
}

// GetMovements handles GET /api/v1/inventory/{id}/movements
func (h *InventoryHandler) GetMovements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idStr := r.PathValue("id")

	itemID, err := uuid.Parse(idStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid inventory ID format")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}

	movements, err := h.service.Movements(ctx, itemID, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load stock movements",
			slog.String("item_id", idStr),
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to load stock movements")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"item_id":   itemID,
		"movements": movements,
	})
}

// parseListParams parses query parameters for listing inventory
func (h *InventoryHandler) parseListParams(r *http.Request) ports.ItemListParams {
	params := ports.ItemListParams{
		Page:      1,
		PageSize:  50,
		SortBy:    "created_at",
		SortOrder: "desc",
	}

	if page := r.URL.Query().Get("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			params.Page = p
		}
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			params.PageSize = l
		}
	}

	params.Search = r.URL.Query().Get("search")
	params.Category = r.URL.Query().Get("category")
	params.Location = r.URL.Query().Get("location")
	params.Status = domain.ItemStatus(r.URL.Query().Get("status"))

	if sortBy := r.URL.Query().Get("sort"); sortBy != "" {
		params.SortBy = sortBy
	}
	if order := r.URL.Query().Get("order"); order == "asc" || order == "desc" {
		params.SortOrder = order
	}

	return params
}

// ItemResponse decorates an inventory item with its derived fields.
type ItemResponse struct {
	*domain.InventoryItem
	TotalQuantity int               `json:"total_quantity"`
	Status        domain.ItemStatus `json:"status"`
}

func itemResponse(item *domain.InventoryItem) ItemResponse {
	return ItemResponse{
		InventoryItem: item,
		TotalQuantity: item.TotalQuantity(),
		Status:        item.Status(),
	}
}

// Request/Response DTOs

// CreateItemRequest represents the request body for creating inventory
type CreateItemRequest struct {
	SKU                 string          `json:"sku"`
	Name                string          `json:"name"`
	Description         string          `json:"description,omitempty"`
	Category            string          `json:"category,omitempty"`
	PickingBinQuantity  int             `json:"picking_bin_quantity"`
	OverstockQuantity   int             `json:"overstock_quantity"`
	ReorderLevel        int             `json:"reorder_level"`
	PickingReorderLevel int             `json:"picking_reorder_level"`
	AutoReorderEnabled  bool            `json:"auto_reorder_enabled,omitempty"`
	AutoReorderQuantity int             `json:"auto_reorder_quantity,omitempty"`
	UnitCost            decimal.Decimal `json:"unit_cost"`
	RetailPrice         decimal.Decimal `json:"retail_price"`
	Location            string          `json:"location,omitempty"`
	PickingBinLocation  string          `json:"picking_bin_location,omitempty"`
	VendorID            string          `json:"vendor_id,omitempty"`
	BarcodeURL          string          `json:"barcode_url,omitempty"`
}

// ToDomain converts the request to a domain model
func (r *CreateItemRequest) ToDomain(orgID uuid.UUID) *domain.InventoryItem {
	return &domain.InventoryItem{
		ID:                  uuid.New(),
		OrganizationID:      orgID,
		SKU:                 r.SKU,
		Name:                r.Name,
		Description:         r.Description,
		Category:            r.Category,
		PickingBinQuantity:  r.PickingBinQuantity,
		OverstockQuantity:   r.OverstockQuantity,
		ReorderLevel:        r.ReorderLevel,
		PickingReorderLevel: r.PickingReorderLevel,
		AutoReorderEnabled:  r.AutoReorderEnabled,
		AutoReorderQuantity: r.AutoReorderQuantity,
		UnitCost:            r.UnitCost,
		RetailPrice:         r.RetailPrice,
		Location:            r.Location,
		PickingBinLocation:  r.PickingBinLocation,
		VendorID:            r.VendorID,
		BarcodeURL:          r.BarcodeURL,
	}
}
