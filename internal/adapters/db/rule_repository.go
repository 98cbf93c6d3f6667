// internal/adapters/db/rule_repository.go
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/binwise/binwise-be/internal/core/domain"
	"github.com/binwise/binwise-be/internal/core/ports"
)

type ruleRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewRuleRepository creates a new automation rule repository
func NewRuleRepository(db *Database, logger *slog.Logger) ports.RuleRepository {
	return &ruleRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "rule")),
	}
}

func (r *ruleRepository) Insert(ctx context.Context, rule *domain.AutomationRule) error {
	conditionJSON, err := marshalNullable(rule.Condition)
	if err != nil {
		return fmt.Errorf("failed to marshal rule condition: %w", err)
	}
	actionJSON, err := json.Marshal(rule.Action)
	if err != nil {
		return fmt.Errorf("failed to marshal rule action: %w", err)
	}

	query := `
		INSERT INTO automation_rules (
			id, organization_id, name, is_active, trigger_type,
			condition, action, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		rule.ID, rule.OrganizationID, rule.Name, rule.IsActive, rule.Trigger,
		conditionJSON, actionJSON, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert automation rule: %w", err)
	}

	r.logger.DebugContext(ctx, "automation rule inserted",
		slog.String("id", rule.ID.String()),
		slog.String("name", rule.Name))

	return nil
}

func (r *ruleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.AutomationRule, error) {
	query := `
		SELECT id, organization_id, name, is_active, trigger_type,
		       condition, action, created_at, updated_at
		FROM automation_rules
		WHERE id = $1`

	rule, err := scanRule(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find automation rule: %w", err)
	}
	return rule, nil
}

func (r *ruleRepository) FindActiveByOrganization(ctx context.Context, orgID uuid.UUID) ([]*domain.AutomationRule, error) {
	query := `
		SELECT id, organization_id, name, is_active, trigger_type,
		       condition, action, created_at, updated_at
		FROM automation_rules
		WHERE organization_id = $1 AND is_active
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query automation rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.AutomationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return rules, nil
}

func scanRule(row pgx.Row) (*domain.AutomationRule, error) {
	rule := &domain.AutomationRule{}
	var conditionJSON, actionJSON []byte

	err := row.Scan(
		&rule.ID, &rule.OrganizationID, &rule.Name, &rule.IsActive, &rule.Trigger,
		&conditionJSON, &actionJSON, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(conditionJSON) > 0 {
		var cond domain.RuleCondition
		if err := json.Unmarshal(conditionJSON, &cond); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rule condition: %w", err)
		}
		rule.Condition = &cond
	}
	if err := json.Unmarshal(actionJSON, &rule.Action); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rule action: %w", err)
	}

	return rule, nil
}

func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case *domain.RuleCondition:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
