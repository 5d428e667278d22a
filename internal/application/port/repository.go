package port

import (
	"context"
	"time"

	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// OrderField is a timestamp column an expense read may sort on (always descending)
type OrderField string

const (
	OrderByCreatedAt   OrderField = "created_at"
	OrderBySubmittedAt OrderField = "submitted_at"
	OrderByExpenseDate OrderField = "expense_date"
)

// IsValid returns true for the sortable timestamp columns
func (o OrderField) IsValid() bool {
	switch o {
	case OrderByCreatedAt, OrderBySubmittedAt, OrderByExpenseDate:
		return true
	}
	return false
}

// ExpenseFilter holds the exact-match predicates of an expense read
type ExpenseFilter struct {
	UserID        string
	Status        entity.Status
	OrderBy       OrderField
	WithSubmitter bool
	Limit         int
}

// StatusUpdate is a conditional lifecycle write. It applies only while the
// stored status still equals From.
type StatusUpdate struct {
	ExpenseID       string
	From            entity.Status
	To              entity.Status
	SubmittedAt     *time.Time
	ApprovedAt      *time.Time
	ApprovedBy      *string
	RejectedAt      *time.Time
	RejectionReason *string
	UpdatedAt       time.Time
}

// ExpenseRepository defines persistence operations for Expense
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id string) (*entity.Expense, error)
	List(ctx context.Context, filter ExpenseFilter) ([]*entity.Expense, error)
	// UpdateStatus returns entity.ErrConflict when the stored status is no longer From
	UpdateStatus(ctx context.Context, update StatusUpdate) error
	// DeleteDraft removes the row only when id, owner and draft status all match
	DeleteDraft(ctx context.Context, id, userID string) (bool, error)
}

// HistoryRepository defines persistence operations for the expense audit trail
type HistoryRepository interface {
	Create(ctx context.Context, item *entity.HistoryItem) error
	GetByExpenseID(ctx context.Context, expenseID string) ([]*entity.HistoryItem, error)
}

// ProfileRepository defines persistence operations for Profile
type ProfileRepository interface {
	Create(ctx context.Context, profile *entity.Profile) error
	GetByID(ctx context.Context, id string) (*entity.Profile, error)
	GetByEmail(ctx context.Context, email string) (*entity.Profile, error)
	List(ctx context.Context) ([]*entity.Profile, error)
	ListByRoles(ctx context.Context, roles []entity.Role) ([]*entity.Profile, error)
	UpdateRole(ctx context.Context, id string, role entity.Role) error
	Count(ctx context.Context) (int, error)
}

// CategoryRepository defines persistence operations for Category
type CategoryRepository interface {
	List(ctx context.Context, activeOnly bool) ([]*entity.Category, error)
}

// RuleRepository defines persistence operations for Rule
type RuleRepository interface {
	List(ctx context.Context) ([]*entity.Rule, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
