package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// CategoryRepository implements port.CategoryRepository
type CategoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *sqlite.DB, logger *zap.Logger) port.CategoryRepository {
	return &CategoryRepository{db: db, logger: logger}
}

// List returns categories in catalogue order
func (r *CategoryRepository) List(ctx context.Context, activeOnly bool) ([]*entity.Category, error) {
	builder := sq.Select("id", "name", "color", "active", "parent_id").
		From("categories").
		OrderBy("sort_order ASC", "name ASC")
	if activeOnly {
		builder = builder.Where("active = 1")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list categories", zap.Error(err))
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*entity.Category{}
	for rows.Next() {
		var (
			c        entity.Category
			parentID sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Active, &parentID); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.ParentID = stringPtr(parentID)
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

// RuleRepository implements port.RuleRepository
type RuleRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sqlite.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

// List returns rules ordered by priority
func (r *RuleRepository) List(ctx context.Context) ([]*entity.Rule, error) {
	query, args, err := sq.Select("id", "name", "description", "conditions", "actions", "priority", "enabled").
		From("rules").
		OrderBy("priority ASC", "name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list rules", zap.Error(err))
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := []*entity.Rule{}
	for rows.Next() {
		var (
			rule        entity.Rule
			description sql.NullString
			conditions  string
			actions     string
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &description, &conditions, &actions, &rule.Priority, &rule.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule.Description = stringPtr(description)
		if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
			return nil, fmt.Errorf("rule %s has malformed conditions: %w", rule.ID, err)
		}
		if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
			return nil, fmt.Errorf("rule %s has malformed actions: %w", rule.ID, err)
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// Verify interface compliance
var (
	_ port.CategoryRepository = (*CategoryRepository)(nil)
	_ port.RuleRepository     = (*RuleRepository)(nil)
)
