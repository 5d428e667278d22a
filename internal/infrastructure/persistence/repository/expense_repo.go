package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var expenseColumns = []string{
	"e.id", "e.user_id", "e.amount", "e.currency", "e.category", "e.merchant",
	"e.description", "e.tags", "e.expense_date", "e.receipt_url", "e.source",
	"e.confidence", "e.reimbursable", "e.policy_flags", "e.duplicates", "e.status",
	"e.submitted_at", "e.approved_at", "e.approved_by", "e.rejected_at",
	"e.rejection_reason", "e.created_at", "e.updated_at",
}

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sqlite.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new expense
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	tags, err := encodeJSON(nonNil(expense.Tags))
	if err != nil {
		return err
	}
	flags, err := encodeJSON(nonNil(expense.PolicyFlags))
	if err != nil {
		return err
	}
	duplicates, err := encodeJSON(nonNil(expense.Duplicates))
	if err != nil {
		return err
	}

	query, args, err := sq.Insert("expenses").
		Columns(
			"id", "user_id", "amount", "currency", "category", "merchant",
			"description", "tags", "expense_date", "receipt_url", "source",
			"confidence", "reimbursable", "policy_flags", "duplicates", "status",
			"submitted_at", "approved_at", "approved_by", "rejected_at",
			"rejection_reason", "created_at", "updated_at",
		).
		Values(
			expense.ID, expense.UserID, expense.Amount.Value.String(), expense.Amount.Currency,
			nullableString(expense.Category), expense.Merchant, nullableString(expense.Description),
			tags, formatDate(expense.ExpenseDate), nullableString(expense.ReceiptURL),
			string(expense.Source), string(expense.Confidence), expense.Reimbursable,
			flags, duplicates, string(expense.Status),
			nullableTime(expense.SubmittedAt), nullableTime(expense.ApprovedAt),
			nullableString(expense.ApprovedBy), nullableTime(expense.RejectedAt),
			nullableString(expense.RejectionReason),
			formatTime(expense.CreatedAt), formatTime(expense.UpdatedAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to create expense", zap.String("expense_id", expense.ID), zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetByID retrieves an expense with its submitter profile.
// A missing row yields nil, nil.
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	query, args, err := r.selectExpenses(true).
		Where(squirrel.Eq{"e.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	expense, err := scanExpense(r.db.Executor(ctx).QueryRowContext(ctx, query, args...), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense by ID", zap.String("expense_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// List returns expenses matching the filter ordered by the requested column, newest first
func (r *ExpenseRepository) List(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = port.OrderByCreatedAt
	}
	if !orderBy.IsValid() {
		return nil, entity.Invalidf("cannot order by %q", orderBy)
	}

	builder := r.selectExpenses(filter.WithSubmitter).
		OrderBy("e."+string(orderBy)+" DESC", "e.created_at DESC", "e.id")
	if filter.UserID != "" {
		builder = builder.Where(squirrel.Eq{"e.user_id": filter.UserID})
	}
	if filter.Status != "" {
		statuses := []string{string(filter.Status)}
		if filter.Status == entity.StatusPending {
			statuses = append(statuses, "submitted")
		}
		builder = builder.Where(squirrel.Eq{"e.status": statuses})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list expenses", zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []*entity.Expense{}
	for rows.Next() {
		expense, err := scanExpense(rows, filter.WithSubmitter)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

// UpdateStatus applies a lifecycle write only while the stored status is still update.From
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, update port.StatusUpdate) error {
	builder := sq.Update("expenses").
		Set("status", string(update.To)).
		Set("updated_at", formatTime(update.UpdatedAt)).
		Where(squirrel.Eq{"id": update.ExpenseID})

	from := []string{string(update.From)}
	if update.From == entity.StatusPending {
		from = append(from, "submitted")
	}
	builder = builder.Where(squirrel.Eq{"status": from})

	if update.SubmittedAt != nil {
		builder = builder.Set("submitted_at", formatTime(*update.SubmittedAt))
	}
	if update.ApprovedAt != nil {
		builder = builder.Set("approved_at", formatTime(*update.ApprovedAt)).
			Set("approved_by", nullableString(update.ApprovedBy))
	}
	if update.RejectedAt != nil {
		builder = builder.Set("rejected_at", formatTime(*update.RejectedAt)).
			Set("rejection_reason", nullableString(update.RejectionReason))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update expense status",
			zap.String("expense_id", update.ExpenseID),
			zap.String("to", string(update.To)),
			zap.Error(err))
		return fmt.Errorf("failed to update status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("expense %s is no longer %s: %w", update.ExpenseID, update.From, entity.ErrConflict)
	}
	return nil
}

// DeleteDraft removes the row only when id, owner and draft status all match
func (r *ExpenseRepository) DeleteDraft(ctx context.Context, id, userID string) (bool, error) {
	query, args, err := sq.Delete("expenses").
		Where(squirrel.Eq{"id": id, "user_id": userID, "status": string(entity.StatusDraft)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build delete: %w", err)
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to delete expense", zap.String("expense_id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete expense: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *ExpenseRepository) selectExpenses(withSubmitter bool) squirrel.SelectBuilder {
	columns := expenseColumns
	if withSubmitter {
		columns = append(append([]string{}, expenseColumns...), "p.full_name", "p.email")
	}
	builder := sq.Select(columns...).From("expenses e")
	if withSubmitter {
		builder = builder.LeftJoin("profiles p ON p.id = e.user_id")
	}
	return builder
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(row rowScanner, withSubmitter bool) (*entity.Expense, error) {
	var (
		e               entity.Expense
		amount          string
		currency        string
		category        sql.NullString
		description     sql.NullString
		tags            string
		expenseDate     time.Time
		receiptURL      sql.NullString
		source          string
		confidence      string
		policyFlags     string
		duplicates      string
		status          string
		submittedAt     sql.NullTime
		approvedAt      sql.NullTime
		approvedBy      sql.NullString
		rejectedAt      sql.NullTime
		rejectionReason sql.NullString
		fullName        sql.NullString
		email           sql.NullString
	)

	dest := []interface{}{
		&e.ID, &e.UserID, &amount, &currency, &category, &e.Merchant,
		&description, &tags, &expenseDate, &receiptURL, &source,
		&confidence, &e.Reimbursable, &policyFlags, &duplicates, &status,
		&submittedAt, &approvedAt, &approvedBy, &rejectedAt,
		&rejectionReason, &e.CreatedAt, &e.UpdatedAt,
	}
	if withSubmitter {
		dest = append(dest, &fullName, &email)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("expense %s has malformed amount %q: %w", e.ID, amount, err)
	}
	e.Amount = entity.NewMoney(value, currency)

	if e.Status, err = entity.ParseStatus(status); err != nil {
		return nil, err
	}
	e.Source = entity.Source(source)
	e.Confidence = entity.Confidence(confidence)
	e.Category = stringPtr(category)
	e.Description = stringPtr(description)
	e.ReceiptURL = stringPtr(receiptURL)
	e.ExpenseDate = expenseDate.UTC()
	e.SubmittedAt = timePtr(submittedAt)
	e.ApprovedAt = timePtr(approvedAt)
	e.ApprovedBy = stringPtr(approvedBy)
	e.RejectedAt = timePtr(rejectedAt)
	e.RejectionReason = stringPtr(rejectionReason)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()

	if e.Tags, err = decodeStrings(tags); err != nil {
		return nil, err
	}
	if e.PolicyFlags, err = decodeStrings(policyFlags); err != nil {
		return nil, err
	}
	if e.Duplicates, err = decodeStrings(duplicates); err != nil {
		return nil, err
	}

	if withSubmitter && (fullName.Valid || email.Valid) {
		e.Submitter = &entity.ProfileSummary{FullName: fullName.String, Email: email.String}
	}
	return &e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Verify interface compliance
var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
