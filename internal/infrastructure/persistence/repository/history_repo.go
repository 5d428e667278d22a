package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlite.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history record
func (r *HistoryRepository) Create(ctx context.Context, item *entity.HistoryItem) error {
	query, args, err := sq.Insert("expense_history").
		Columns("expense_id", "actor_id", "action", "previous_status", "new_status", "note", "timestamp").
		Values(item.ExpenseID, item.ActorID, item.Action, string(item.PreviousStatus), string(item.NewStatus), item.Note, formatTime(item.Timestamp)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("expense_id", item.ExpenseID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	return nil
}

// GetByExpenseID returns the audit trail of an expense in insertion order
func (r *HistoryRepository) GetByExpenseID(ctx context.Context, expenseID string) ([]*entity.HistoryItem, error) {
	query, args, err := sq.Select("id", "expense_id", "actor_id", "action", "previous_status", "new_status", "note", "timestamp").
		From("expense_history").
		Where(squirrel.Eq{"expense_id": expenseID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to get history", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	items := []*entity.HistoryItem{}
	for rows.Next() {
		var (
			item     entity.HistoryItem
			previous string
			next     string
		)
		if err := rows.Scan(&item.ID, &item.ExpenseID, &item.ActorID, &item.Action, &previous, &next, &item.Note, &item.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		if previous != "" {
			if item.PreviousStatus, err = entity.ParseStatus(previous); err != nil {
				return nil, err
			}
		}
		if item.NewStatus, err = entity.ParseStatus(next); err != nil {
			return nil, err
		}
		item.Timestamp = item.Timestamp.UTC()
		items = append(items, &item)
	}
	return items, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
