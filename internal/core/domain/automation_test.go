// internal/core/domain/automation_test.go
package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/binwise/binwise-be/internal/core/domain"
)

func snapshot(pickingBin, overstock int) domain.ItemSnapshot {
	return domain.ItemSnapshot{
		SKU:                "CAB-750-001",
		Name:               "Cabernet Sauvignon 750ml",
		PickingBinQuantity: pickingBin,
		OverstockQuantity:  overstock,
		Location:           "Warehouse A",
	}
}

func TestRuleCondition_Matches(t *testing.T) {
	tests := []struct {
		name      string
		condition *domain.RuleCondition
		item      domain.ItemSnapshot
		expected  bool
	}{
		{
			name:      "nil_condition_always_matches",
			condition: nil,
			item:      snapshot(100, 100),
			expected:  true,
		},
		{
			name:      "less_than_matches_below_threshold",
			condition: &domain.RuleCondition{Field: "quantity", Operator: domain.OperatorLessThan, Value: 10},
			item:      snapshot(4, 5),
			expected:  true,
		},
		{
			name:      "less_than_rejects_at_threshold",
			condition: &domain.RuleCondition{Field: "quantity", Operator: domain.OperatorLessThan, Value: 10},
			item:      snapshot(5, 5),
			expected:  false,
		},
		{
			name:      "less_than_rejects_above_threshold",
			condition: &domain.RuleCondition{Field: "quantity", Operator: domain.OperatorLessThan, Value: 10},
			item:      snapshot(10, 5),
			expected:  false,
		},
		{
			name:      "unknown_field_never_matches",
			condition: &domain.RuleCondition{Field: "price", Operator: domain.OperatorLessThan, Value: 1000},
			item:      snapshot(0, 0),
			expected:  false,
		},
		{
			name:      "unknown_operator_never_matches",
			condition: &domain.RuleCondition{Field: "quantity", Operator: "gte", Value: 0},
			item:      snapshot(5, 5),
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.condition.Matches(&tt.item))
		})
	}
}

func TestAutomationRule_Triggered(t *testing.T) {
	rule := domain.AutomationRule{Trigger: domain.TriggerStockLevelChange}

	t.Run("total_change_triggers", func(t *testing.T) {
		old := snapshot(10, 40)
		updated := snapshot(8, 40)
		assert.True(t, rule.Triggered(&old, &updated))
	})

	t.Run("unchanged_total_does_not_trigger", func(t *testing.T) {
		// A transfer between locations leaves the total alone.
		old := snapshot(10, 40)
		updated := snapshot(15, 35)
		assert.False(t, rule.Triggered(&old, &updated))
	})

	t.Run("unknown_trigger_never_fires", func(t *testing.T) {
		unknown := domain.AutomationRule{Trigger: "ON_PRICE_CHANGE"}
		old := snapshot(10, 40)
		updated := snapshot(0, 0)
		assert.False(t, unknown.Triggered(&old, &updated))
	})
}

func TestAutomationRule_RenderMessage(t *testing.T) {
	old := snapshot(10, 40)
	updated := snapshot(3, 5)

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "all_placeholders_substituted",
			template: "{itemName} ({sku}) is low: {quantity} left at {location}",
			expected: "Cabernet Sauvignon 750ml (CAB-750-001) is low: 8 left at Warehouse A",
		},
		{
			name:     "old_quantity_placeholder",
			template: "moved from {oldQuantity} to {quantity}",
			expected: "moved from 50 to 8",
		},
		{
			name:     "unrecognized_placeholder_left_verbatim",
			template: "alert for {vendorEmail}: {quantity} left",
			expected: "alert for {vendorEmail}: 8 left",
		},
		{
			name:     "placeholder_like_values_are_not_reexpanded",
			template: "{itemName}",
			expected: "Cabernet Sauvignon 750ml",
		},
		{
			name:     "no_placeholders",
			template: "plain message",
			expected: "plain message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := domain.AutomationRule{
				Action: domain.RuleAction{Type: domain.ActionSendNotification, Message: tt.template},
			}
			assert.Equal(t, tt.expected, rule.RenderMessage(&old, &updated))
		})
	}
}

func TestAutomationRule_RenderMessage_TemplateInjection(t *testing.T) {
	// An item name containing placeholder syntax must come through as data,
	// not get expanded a second time.
	old := snapshot(10, 0)
	updated := snapshot(5, 0)
	updated.Name = "{sku} trap"

	rule := domain.AutomationRule{
		Action: domain.RuleAction{Type: domain.ActionSendNotification, Message: "{itemName}"},
	}
	assert.Equal(t, "{sku} trap", rule.RenderMessage(&old, &updated))
}
