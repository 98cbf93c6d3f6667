// internal/handlers/rules.go
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

// RuleHandler manages automation rule definitions. Evaluation happens in the
// worker; this surface only creates and lists rules.
type RuleHandler struct {
	rules  ports.RuleRepository
	logger *slog.Logger
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(rules ports.RuleRepository, logger *slog.Logger) *RuleHandler {
	return &RuleHandler{
		rules:  rules,
		logger: logger.With(slog.String("handler", "rules")),
	}
}

// CreateRuleRequest represents the request body for creating a rule
type CreateRuleRequest struct {
	Name      string                `json:"name"`
	IsActive  *bool                 `json:"is_active,omitempty"`
	Trigger   domain.TriggerType    `json:"trigger_type"`
	Condition *domain.RuleCondition `json:"condition,omitempty"`
	Action    domain.RuleAction     `json:"action"`
}

// Validate validates the create rule request
func (r *CreateRuleRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if r.Trigger != domain.TriggerStockLevelChange {
		return fmt.Errorf("unsupported trigger_type %q", r.Trigger)
	}
	if r.Action.Type != domain.ActionSendNotification {
		return fmt.Errorf("unsupported action type %q", r.Action.Type)
	}
	if strings.TrimSpace(r.Action.Message) == "" {
		return fmt.Errorf("action message is required")
	}
	if r.Condition != nil {
		if r.Condition.Field != "quantity" {
			return fmt.Errorf("unsupported condition field %q", r.Condition.Field)
		}
		if r.Condition.Operator != domain.OperatorLessThan {
			return fmt.Errorf("unsupported condition operator %q", r.Condition.Operator)
		}
	}
	return nil
}

// CreateRule handles POST /api/v1/rules
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := organizationID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing or invalid organization ID")
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	rule := &domain.AutomationRule{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           req.Name,
		IsActive:       true,
		Trigger:        req.Trigger,
		Condition:      req.Condition,
		Action:         req.Action,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := h.rules.Insert(ctx, rule); err != nil {
		h.logger.ErrorContext(ctx, "failed to create automation rule",
			slog.String("error", err.Error()))
		respondDomainError(w, err, "Failed to create automation rule")
		return
	}

	h.logger.InfoContext(ctx, "automation rule created",
		slog.String("rule_id", rule.ID.String()),
		slog.String("name", rule.Name))

	respondJSON(w, http.StatusCreated, rule)
}

// ListRules handles GET /api/v1/rules
func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, err := organizationID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing or invalid organization ID")
		return
	}

	rules, err := h.rules.FindActiveByOrganization(ctx, orgID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list automation rules",
			slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "Failed to list automation rules")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

// GetRule handles GET /api/v1/rules/{id}
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid rule ID format")
		return
	}

	rule, err := h.rules.FindByID(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load automation rule")
		return
	}
	if rule == nil {
		respondError(w, http.StatusNotFound, "Automation rule not found")
		return
	}

	respondJSON(w, http.StatusOK, rule)
}
