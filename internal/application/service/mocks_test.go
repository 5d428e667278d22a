package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/expense-desk/internal/application/dispatcher"
	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockExpenseRepo struct {
	expenses map[string]*entity.Expense
	listErr  error
}

func newMockExpenseRepo(expenses ...*entity.Expense) *mockExpenseRepo {
	m := &mockExpenseRepo{expenses: make(map[string]*entity.Expense)}
	for _, e := range expenses {
		m.expenses[e.ID] = e
	}
	return m
}

func (m *mockExpenseRepo) Create(ctx context.Context, expense *entity.Expense) error {
	cp := *expense
	m.expenses[expense.ID] = &cp
	return nil
}

func (m *mockExpenseRepo) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	e, ok := m.expenses[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *mockExpenseRepo) List(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*entity.Expense
	for _, e := range m.expenses {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockExpenseRepo) UpdateStatus(ctx context.Context, u port.StatusUpdate) error {
	e, ok := m.expenses[u.ExpenseID]
	if !ok || e.Status != u.From {
		return entity.ErrConflict
	}
	e.Status = u.To
	e.UpdatedAt = u.UpdatedAt
	if u.SubmittedAt != nil {
		e.SubmittedAt = u.SubmittedAt
	}
	if u.ApprovedAt != nil {
		e.ApprovedAt = u.ApprovedAt
		e.ApprovedBy = u.ApprovedBy
	}
	if u.RejectedAt != nil {
		e.RejectedAt = u.RejectedAt
		e.RejectionReason = u.RejectionReason
	}
	return nil
}

func (m *mockExpenseRepo) DeleteDraft(ctx context.Context, id, userID string) (bool, error) {
	e, ok := m.expenses[id]
	if !ok || e.UserID != userID || e.Status != entity.StatusDraft {
		return false, nil
	}
	delete(m.expenses, id)
	return true, nil
}

type mockHistoryRepo struct {
	items     []*entity.HistoryItem
	createErr error
}

func (m *mockHistoryRepo) Create(ctx context.Context, item *entity.HistoryItem) error {
	if m.createErr != nil {
		return m.createErr
	}
	item.ID = int64(len(m.items) + 1)
	m.items = append(m.items, item)
	return nil
}

func (m *mockHistoryRepo) GetByExpenseID(ctx context.Context, expenseID string) ([]*entity.HistoryItem, error) {
	var out []*entity.HistoryItem
	for _, item := range m.items {
		if item.ExpenseID == expenseID {
			out = append(out, item)
		}
	}
	return out, nil
}

type mockProfileRepo struct {
	profiles      map[string]*entity.Profile
	updateRoleErr error
}

func newMockProfileRepo(profiles ...*entity.Profile) *mockProfileRepo {
	m := &mockProfileRepo{profiles: make(map[string]*entity.Profile)}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *mockProfileRepo) Create(ctx context.Context, profile *entity.Profile) error {
	m.profiles[profile.ID] = profile
	return nil
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfileRepo) GetByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	for _, p := range m.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockProfileRepo) List(ctx context.Context) ([]*entity.Profile, error) {
	var out []*entity.Profile
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockProfileRepo) ListByRoles(ctx context.Context, roles []entity.Role) ([]*entity.Profile, error) {
	want := make(map[entity.Role]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}
	var out []*entity.Profile
	for _, p := range m.profiles {
		if want[p.Role] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockProfileRepo) UpdateRole(ctx context.Context, id string, role entity.Role) error {
	if m.updateRoleErr != nil {
		return m.updateRoleErr
	}
	p, ok := m.profiles[id]
	if !ok {
		return fmt.Errorf("profile %s: %w", id, entity.ErrNotFound)
	}
	p.Role = role
	return nil
}

func (m *mockProfileRepo) Count(ctx context.Context) (int, error) {
	return len(m.profiles), nil
}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockDispatcher struct {
	mu       sync.Mutex
	events   []*event.Event
	handlers map[event.Type][]string
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {
	m.SubscribeNamed(eventType, "", handler)
}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = make(map[event.Type][]string)
	}
	m.handlers[eventType] = append(m.handlers[eventType], name)
}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type sentMessage struct {
	recipient string
	content   string
}

type mockMessenger struct {
	sent    []sentMessage
	failFor map[string]error
}

func (m *mockMessenger) SendText(ctx context.Context, recipient string, content string) error {
	if err := m.failFor[recipient]; err != nil {
		return err
	}
	m.sent = append(m.sent, sentMessage{recipient: recipient, content: content})
	return nil
}
