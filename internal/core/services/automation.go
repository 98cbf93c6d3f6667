// internal/core/services/automation.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

// AutomationService evaluates stock change events against the owning
// organization's active automation rules.
type AutomationService struct {
	rules    ports.RuleRepository
	notifier ports.NotificationPublisher
	logger   *slog.Logger
}

// NewAutomationService creates a new automation service.
func NewAutomationService(rules ports.RuleRepository, notifier ports.NotificationPublisher, logger *slog.Logger) *AutomationService {
	return &AutomationService{
		rules:    rules,
		notifier: notifier,
		logger:   logger.With(slog.String("service", "automation")),
	}
}

// Evaluate runs every active rule of the event's organization through the
// trigger -> condition -> action pipeline. Each rule is evaluated in
// isolation: a panicking or failing rule is recorded as failed and the pass
// continues with the remaining rules.
func (s *AutomationService) Evaluate(ctx context.Context, event domain.StockChangeEvent) ([]domain.RuleOutcome, error) {
	rules, err := s.rules.FindActiveByOrganization(ctx, event.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules for organization %s: %w", event.OrganizationID, err)
	}

	outcomes := make([]domain.RuleOutcome, 0, len(rules))
	for _, rule := range rules {
		outcomes = append(outcomes, s.evaluateOne(ctx, rule, event))
	}

	s.logger.DebugContext(ctx, "automation pass complete",
		slog.String("item_id", event.ItemID.String()),
		slog.Int("rules", len(rules)),
		slog.Int("fired", countFired(outcomes)))

	return outcomes, nil
}

func (s *AutomationService) evaluateOne(ctx context.Context, rule *domain.AutomationRule, event domain.StockChangeEvent) (outcome domain.RuleOutcome) {
	outcome = domain.RuleOutcome{RuleID: rule.ID, Status: domain.RuleSkipped}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = domain.RuleFailed
			outcome.Error = fmt.Sprintf("panic: %v", r)
			s.logger.ErrorContext(ctx, "rule evaluation panicked",
				slog.String("rule_id", rule.ID.String()),
				slog.Any("panic", r))
		}
	}()

	if !rule.Triggered(&event.Old, &event.New) {
		return outcome
	}
	if !rule.Condition.Matches(&event.New) {
		return outcome
	}

	if err := s.execute(ctx, rule, event); err != nil {
		outcome.Status = domain.RuleFailed
		outcome.Error = err.Error()
		s.logger.WarnContext(ctx, "rule action failed",
			slog.String("rule_id", rule.ID.String()),
			slog.String("item_id", event.ItemID.String()),
			slog.String("error", err.Error()))
		return outcome
	}

	outcome.Status = domain.RuleFired
	s.logger.InfoContext(ctx, "automation rule fired",
		slog.String("rule_id", rule.ID.String()),
		slog.String("rule_name", rule.Name),
		slog.String("item_id", event.ItemID.String()))
	return outcome
}

func (s *AutomationService) execute(ctx context.Context, rule *domain.AutomationRule, event domain.StockChangeEvent) error {
	switch rule.Action.Type {
	case domain.ActionSendNotification:
		message := rule.RenderMessage(&event.Old, &event.New)
		return s.notifier.PublishNotification(ctx, domain.NotificationEvent{
			OrganizationID: event.OrganizationID,
			ActivityType:   domain.ActivityAutomationTriggered,
			Description:    message,
			Details: map[string]any{
				"rule_id":      rule.ID.String(),
				"rule_name":    rule.Name,
				"item_id":      event.ItemID.String(),
				"sku":          event.New.SKU,
				"old_quantity": event.Old.TotalQuantity(),
				"new_quantity": event.New.TotalQuantity(),
			},
		})
	default:
		return fmt.Errorf("unsupported action type %q", rule.Action.Type)
	}
}

func countFired(outcomes []domain.RuleOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Status == domain.RuleFired {
			n++
		}
	}
	return n
}
