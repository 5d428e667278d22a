package port

import (
	"context"
	"errors"

	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// Transport failures of a DataService call. Domain outcomes use the entity sentinels.
var (
	// ErrUnavailable means the service could not be reached or failed internally
	ErrUnavailable = errors.New("data service unavailable")
	// ErrSchema means a response row did not match the expected schema
	ErrSchema = errors.New("response failed schema validation")
)

// Session is an authenticated identity with its bearer token
type Session struct {
	AccessToken string
	UserID      string
	Email       string
}

// DataService is the remote data and procedure surface consumed by the client
// controllers. Implementations enforce nothing; authorization lives behind it.
type DataService interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password, fullName string) (*Session, error)

	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]*entity.Expense, error)
	InsertExpense(ctx context.Context, expense entity.NewExpense) (*entity.Expense, error)
	DeleteDraftExpense(ctx context.Context, id string) error
	ExpenseHistory(ctx context.Context, id string) ([]*entity.HistoryItem, error)

	GetProfile(ctx context.Context, id string) (*entity.Profile, error)
	ListProfiles(ctx context.Context) ([]*entity.Profile, error)
	ListCategories(ctx context.Context) ([]*entity.Category, error)
	ListRules(ctx context.Context) ([]*entity.Rule, error)

	SubmitExpense(ctx context.Context, id string) error
	ApproveExpense(ctx context.Context, id string) error
	RejectExpense(ctx context.Context, id, reason string) error
	PromoteUserToAdmin(ctx context.Context, email string) error
}
