// internal/core/domain/automation.go
package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TriggerType enumerates the events an automation rule can react to.
type TriggerType string

const (
	TriggerStockLevelChange TriggerType = "ON_STOCK_LEVEL_CHANGE"
)

// ConditionOperator enumerates supported condition comparisons.
type ConditionOperator string

const (
	OperatorLessThan ConditionOperator = "lt"
)

// RuleCondition is a tagged condition variant. A nil condition on a rule
// always matches.
type RuleCondition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    int               `json:"value"`
}

// Matches evaluates the condition against the post-change snapshot.
// Unknown fields or operators never match.
func (c *RuleCondition) Matches(item *ItemSnapshot) bool {
	if c == nil {
		return true
	}
	if c.Field != "quantity" {
		return false
	}
	switch c.Operator {
	case OperatorLessThan:
		return item.TotalQuantity() < c.Value
	default:
		return false
	}
}

// ActionType enumerates supported rule actions.
type ActionType string

const (
	ActionSendNotification ActionType = "SEND_NOTIFICATION"
)

// RuleAction is a tagged action variant.
type RuleAction struct {
	Type    ActionType `json:"type"`
	Message string     `json:"message"`
}

// AutomationRule is a persisted trigger -> condition -> action definition,
// owned by an organization and read-only at evaluation time.
type AutomationRule struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	Name           string         `json:"name"`
	IsActive       bool           `json:"is_active"`
	Trigger        TriggerType    `json:"trigger_type"`
	Condition      *RuleCondition `json:"condition,omitempty"`
	Action         RuleAction     `json:"action"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Triggered reports whether the rule's trigger stage matches the change.
func (r *AutomationRule) Triggered(old, new *ItemSnapshot) bool {
	switch r.Trigger {
	case TriggerStockLevelChange:
		return old.TotalQuantity() != new.TotalQuantity()
	default:
		return false
	}
}

// RenderMessage substitutes recognized placeholders from the snapshots into
// the action's message template. Substitution is a pure string replace, so
// the template can never be evaluated as code; unrecognized placeholders are
// left verbatim.
func (r *AutomationRule) RenderMessage(old, new *ItemSnapshot) string {
	replacer := strings.NewReplacer(
		"{itemName}", new.Name,
		"{sku}", new.SKU,
		"{quantity}", strconv.Itoa(new.TotalQuantity()),
		"{oldQuantity}", strconv.Itoa(old.TotalQuantity()),
		"{location}", new.Location,
	)
	return replacer.Replace(r.Action.Message)
}

// RuleOutcomeStatus classifies a single rule's evaluation result.
type RuleOutcomeStatus string

const (
	RuleFired   RuleOutcomeStatus = "fired"
	RuleSkipped RuleOutcomeStatus = "skipped"
	RuleFailed  RuleOutcomeStatus = "failed"
)

// RuleOutcome records one rule's evaluation for observability. Failures are
// contained per rule and never abort the surrounding evaluation pass.
type RuleOutcome struct {
	RuleID uuid.UUID         `json:"rule_id"`
	Status RuleOutcomeStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
}
