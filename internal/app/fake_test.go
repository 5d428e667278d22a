package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

type fakeData struct {
	mu    sync.Mutex
	calls map[string]int

	listExpensesFunc func(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error)
	insertFunc       func(ctx context.Context, input entity.NewExpense) (*entity.Expense, error)
	deleteFunc       func(ctx context.Context, id string) error
	getProfileFunc   func(ctx context.Context, id string) (*entity.Profile, error)
	listProfilesFunc func(ctx context.Context) ([]*entity.Profile, error)
	categoriesFunc   func(ctx context.Context) ([]*entity.Category, error)
	submitFunc       func(ctx context.Context, id string) error
	approveFunc      func(ctx context.Context, id string) error
	rejectFunc       func(ctx context.Context, id, reason string) error
	promoteFunc      func(ctx context.Context, email string) error
}

func newFakeData() *fakeData {
	return &fakeData{calls: map[string]int{}}
}

func (f *fakeData) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeData) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeData) SignIn(ctx context.Context, email, password string) (*port.Session, error) {
	f.record("SignIn")
	return &port.Session{AccessToken: "token", UserID: "user-1", Email: email}, nil
}

func (f *fakeData) SignUp(ctx context.Context, email, password, fullName string) (*port.Session, error) {
	f.record("SignUp")
	return &port.Session{AccessToken: "token", UserID: "user-1", Email: email}, nil
}

func (f *fakeData) ListExpenses(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	f.record("ListExpenses")
	if f.listExpensesFunc != nil {
		return f.listExpensesFunc(ctx, filter)
	}
	return []*entity.Expense{}, nil
}

func (f *fakeData) InsertExpense(ctx context.Context, input entity.NewExpense) (*entity.Expense, error) {
	f.record("InsertExpense")
	if f.insertFunc != nil {
		return f.insertFunc(ctx, input)
	}
	return &entity.Expense{ID: "exp-new", Merchant: input.Merchant, Amount: input.Amount, Status: input.Status}, nil
}

func (f *fakeData) DeleteDraftExpense(ctx context.Context, id string) error {
	f.record("DeleteDraftExpense")
	if f.deleteFunc != nil {
		return f.deleteFunc(ctx, id)
	}
	return nil
}

func (f *fakeData) ExpenseHistory(ctx context.Context, id string) ([]*entity.HistoryItem, error) {
	f.record("ExpenseHistory")
	return []*entity.HistoryItem{}, nil
}

func (f *fakeData) GetProfile(ctx context.Context, id string) (*entity.Profile, error) {
	f.record("GetProfile")
	if f.getProfileFunc != nil {
		return f.getProfileFunc(ctx, id)
	}
	return &entity.Profile{ID: id, Role: entity.RoleEmployee}, nil
}

func (f *fakeData) ListProfiles(ctx context.Context) ([]*entity.Profile, error) {
	f.record("ListProfiles")
	if f.listProfilesFunc != nil {
		return f.listProfilesFunc(ctx)
	}
	return []*entity.Profile{}, nil
}

func (f *fakeData) ListCategories(ctx context.Context) ([]*entity.Category, error) {
	f.record("ListCategories")
	if f.categoriesFunc != nil {
		return f.categoriesFunc(ctx)
	}
	return []*entity.Category{}, nil
}

func (f *fakeData) ListRules(ctx context.Context) ([]*entity.Rule, error) {
	f.record("ListRules")
	return []*entity.Rule{}, nil
}

func (f *fakeData) SubmitExpense(ctx context.Context, id string) error {
	f.record("SubmitExpense")
	if f.submitFunc != nil {
		return f.submitFunc(ctx, id)
	}
	return nil
}

func (f *fakeData) ApproveExpense(ctx context.Context, id string) error {
	f.record("ApproveExpense")
	if f.approveFunc != nil {
		return f.approveFunc(ctx, id)
	}
	return nil
}

func (f *fakeData) RejectExpense(ctx context.Context, id, reason string) error {
	f.record("RejectExpense")
	if f.rejectFunc != nil {
		return f.rejectFunc(ctx, id, reason)
	}
	return nil
}

func (f *fakeData) PromoteUserToAdmin(ctx context.Context, email string) error {
	f.record("PromoteUserToAdmin")
	if f.promoteFunc != nil {
		return f.promoteFunc(ctx, email)
	}
	return nil
}

var _ port.DataService = (*fakeData)(nil)

func employeeAuth() AuthContext {
	return AuthContext{
		Settled:       true,
		Authenticated: true,
		Identity:      entity.Identity{UserID: "user-1", Email: "emp@example.com", Role: entity.RoleEmployee},
	}
}

func approverAuth() AuthContext {
	return AuthContext{
		Settled:       true,
		Authenticated: true,
		Identity:      entity.Identity{UserID: "mgr-1", Email: "mgr@example.com", Role: entity.RoleManager},
		CanApprove:    true,
	}
}

func adminAuth() AuthContext {
	return AuthContext{
		Settled:       true,
		Authenticated: true,
		Identity:      entity.Identity{UserID: "admin-1", Email: "admin@example.com", Role: entity.RoleAdmin},
		IsAdmin:       true,
		CanApprove:    true,
	}
}

func expense(id string, status entity.Status, amount string, category string, date time.Time) *entity.Expense {
	e := &entity.Expense{
		ID:          id,
		UserID:      "user-1",
		Merchant:    "Merchant " + id,
		Amount:      entity.NewMoney(decimal.RequireFromString(amount), "USD"),
		ExpenseDate: date,
		Status:      status,
		Source:      entity.SourceManual,
	}
	if category != "" {
		e.Category = entity.StringPtr(category)
	}
	return e
}

func testRunner() *Runner {
	return NewRunner(RunnerConfig{Timeout: time.Second, Retry: RetryPolicy{MaxAttempts: 1}})
}
