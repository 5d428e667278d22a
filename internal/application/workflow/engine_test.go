package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/expense-desk/internal/application/dispatcher"
	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/domain/event"
	domainwf "github.com/garyjia/expense-desk/internal/domain/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations

type mockExpenseRepo struct {
	expenses  map[string]*entity.Expense
	updateErr error
}

func newMockExpenseRepo(expenses ...*entity.Expense) *mockExpenseRepo {
	m := &mockExpenseRepo{expenses: make(map[string]*entity.Expense)}
	for _, e := range expenses {
		m.expenses[e.ID] = e
	}
	return m
}

func (m *mockExpenseRepo) Create(ctx context.Context, expense *entity.Expense) error {
	m.expenses[expense.ID] = expense
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
	return nil, nil
}

func (m *mockExpenseRepo) UpdateStatus(ctx context.Context, u port.StatusUpdate) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	e, ok := m.expenses[u.ExpenseID]
	if !ok || e.Status != u.From {
		return entity.ErrConflict
	}
	e.Status = u.To
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
	m.items = append(m.items, item)
	return nil
}

func (m *mockHistoryRepo) GetByExpenseID(ctx context.Context, expenseID string) ([]*entity.HistoryItem, error) {
	var result []*entity.HistoryItem
	for _, h := range m.items {
		if h.ExpenseID == expenseID {
			result = append(result, h)
		}
	}
	return result, nil
}

type mockTxManager struct {
	beginErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	return fn(ctx)
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
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

var (
	owner    = entity.Identity{UserID: "u-owner", Role: entity.RoleEmployee}
	stranger = entity.Identity{UserID: "u-other", Role: entity.RoleEmployee}
	manager  = entity.Identity{UserID: "u-mgr", Role: entity.RoleManager}
	observer = entity.Identity{UserID: "u-obs", Role: entity.RoleObserver}
	fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
)

func draftExpense(id string) *entity.Expense {
	return &entity.Expense{
		ID:       id,
		UserID:   owner.UserID,
		Merchant: "Uber",
		Amount:   entity.NewMoney(decimal.RequireFromString("25.30"), "USD"),
		Status:   entity.StatusDraft,
	}
}

func pendingExpense(id string) *entity.Expense {
	e := draftExpense(id)
	e.Status = entity.StatusPending
	submitted := fixedNow.Add(-time.Hour)
	e.SubmittedAt = &submitted
	return e
}

func newTestEngine(repo *mockExpenseRepo, history *mockHistoryRepo, d *mockDispatcher) LifecycleEngine {
	return NewEngine(repo, history, &mockTxManager{},
		WithDispatcher(d),
		WithPolicy(NewRolePolicy(nil)),
		WithClock(func() time.Time { return fixedNow }),
	)
}

// Test factory

func TestBuildExpenseStateMachine(t *testing.T) {
	tests := []struct {
		name      string
		initial   domainwf.State
		trigger   domainwf.Trigger
		reason    string
		wantState domainwf.State
		wantErr   error
	}{
		{"draft -> pending on SUBMIT", domainwf.StateDraft, domainwf.TriggerSubmit, "", domainwf.StatePending, nil},
		{"draft -> deleted on DELETE", domainwf.StateDraft, domainwf.TriggerDelete, "", domainwf.StateDeleted, nil},
		{"pending -> approved on APPROVE", domainwf.StatePending, domainwf.TriggerApprove, "", domainwf.StateApproved, nil},
		{"pending -> rejected on REJECT with reason", domainwf.StatePending, domainwf.TriggerReject, "missing receipt", domainwf.StateRejected, nil},
		{"REJECT with blank reason fails guard", domainwf.StatePending, domainwf.TriggerReject, "   ", domainwf.StatePending, domainwf.ErrGuardFailed},
		{"draft cannot be approved", domainwf.StateDraft, domainwf.TriggerApprove, "", domainwf.StateDraft, domainwf.ErrInvalidTransition},
		{"pending cannot be deleted", domainwf.StatePending, domainwf.TriggerDelete, "", domainwf.StatePending, domainwf.ErrInvalidTransition},
		{"approved is terminal", domainwf.StateApproved, domainwf.TriggerReject, "late", domainwf.StateApproved, domainwf.ErrInvalidTransition},
		{"rejected is terminal", domainwf.StateRejected, domainwf.TriggerSubmit, "", domainwf.StateRejected, domainwf.ErrInvalidTransition},
		{"reimbursed is unreachable and terminal", domainwf.StateReimbursed, domainwf.TriggerApprove, "", domainwf.StateReimbursed, domainwf.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := BuildExpenseStateMachine(tt.initial, tt.reason)
			err := machine.Fire(context.Background(), tt.trigger)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantState, machine.State())
		})
	}
}

// Test engine

func TestEngine_SubmitStampsSubmittedAt(t *testing.T) {
	repo := newMockExpenseRepo(draftExpense("e1"))
	history := &mockHistoryRepo{}
	d := &mockDispatcher{}
	engine := newTestEngine(repo, history, d)

	got, err := engine.Transition(context.Background(), TransitionRequest{ExpenseID: "e1", Actor: owner, Trigger: domainwf.TriggerSubmit})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusPending, got.Status)
	require.NotNil(t, got.SubmittedAt)
	assert.Equal(t, fixedNow, *got.SubmittedAt)
	assert.Nil(t, got.ApprovedAt)
	assert.Nil(t, got.RejectedAt)
	assert.NoError(t, got.CheckInvariants())

	require.Len(t, history.items, 1)
	assert.Equal(t, entity.ActionSubmitted, history.items[0].Action)
	assert.Equal(t, owner.UserID, history.items[0].ActorID)
	assert.Equal(t, entity.StatusDraft, history.items[0].PreviousStatus)

	require.Len(t, d.events, 1)
	assert.Equal(t, event.TypeExpenseSubmitted, d.events[0].Type)
	assert.Equal(t, "e1", d.events[0].SubjectID)
}

func TestEngine_SubmitByNonOwnerForbidden(t *testing.T) {
	repo := newMockExpenseRepo(draftExpense("e1"))
	engine := newTestEngine(repo, &mockHistoryRepo{}, &mockDispatcher{})

	_, err := engine.Transition(context.Background(), TransitionRequest{ExpenseID: "e1", Actor: stranger, Trigger: domainwf.TriggerSubmit})
	assert.ErrorIs(t, err, entity.ErrForbidden)
	assert.Equal(t, entity.StatusDraft, repo.expenses["e1"].Status)
}

func TestEngine_ApproveRequiresAuthority(t *testing.T) {
	tests := []struct {
		name    string
		actor   entity.Identity
		wantErr error
	}{
		{"manager approves", manager, nil},
		{"admin approves", entity.Identity{UserID: "u-admin", Role: entity.RoleAdmin}, nil},
		{"finance admin approves", entity.Identity{UserID: "u-fin", Role: entity.RoleFinanceAdmin}, nil},
		{"observer forbidden", observer, entity.ErrForbidden},
		{"owner employee forbidden", owner, entity.ErrForbidden},
		{"anonymous", entity.Identity{}, entity.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockExpenseRepo(pendingExpense("e1"))
			engine := newTestEngine(repo, &mockHistoryRepo{}, &mockDispatcher{})

			got, err := engine.Transition(context.Background(), TransitionRequest{ExpenseID: "e1", Actor: tt.actor, Trigger: domainwf.TriggerApprove})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, entity.StatusPending, repo.expenses["e1"].Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, entity.StatusApproved, got.Status)
			require.NotNil(t, got.ApprovedBy)
			assert.Equal(t, tt.actor.UserID, *got.ApprovedBy)
			assert.NoError(t, got.CheckInvariants())
		})
	}
}

func TestEngine_RejectRequiresReason(t *testing.T) {
	repo := newMockExpenseRepo(pendingExpense("e1"))
	history := &mockHistoryRepo{}
	d := &mockDispatcher{}
	engine := newTestEngine(repo, history, d)

	_, err := engine.Transition(context.Background(), TransitionRequest{ExpenseID: "e1", Actor: manager, Trigger: domainwf.TriggerReject, Note: " \t "})
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.Equal(t, entity.StatusPending, repo.expenses["e1"].Status)
	assert.Empty(t, history.items)
	assert.Empty(t, d.events)

	got, err := engine.Transition(context.Background(), TransitionRequest{ExpenseID: "e1", Actor: manager, Trigger: domainwf.TriggerReject, Note: "  duplicate claim  "})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "duplicate claim", *got.RejectionReason)
	assert.Nil(t, got.ApprovedAt)
	require.Len(t, d.events, 1)
	assert.Equal(t, "duplicate claim", d.events[0].GetPayloadString("reason"))
}

func TestEngine_DeleteOnlyDrafts(t *testing.T) {
	for _, status := range []entity.Status{entity.StatusPending, entity.StatusApproved, entity.StatusRejected, entity.StatusReimbursed} {
		t.Run(string(status), func(t *testing.T) {
			e := draftExpense("e1")
			e.Status = status
			repo := newMockExpenseRepo(e)
			engine := newTestEngine(repo, &mockHistoryRepo{}, &mockDispatcher{})

			for _, actor := range []entity.Identity{owner, manager, stranger} {
				_, err := engine.Transition(context.Background(), TransitionRequest{ExpenseID: "e1", Actor: actor, Trigger: domainwf.TriggerDelete})
				assert.ErrorIs(t, err, entity.ErrForbidden, "actor %s", actor.UserID)
			}
			assert.Contains(t, repo.expenses, "e1")
		})
	}

	repo := newMockExpenseRepo(draftExpense("e2"))
	d := &mockDispatcher{}
	engine := newTestEngine(repo, &mockHistoryRepo{}, d)
	got, err := engine.Transition(context.Background(), TransitionRequest{ExpenseID: "e2", Actor: owner, Trigger: domainwf.TriggerDelete})
	require.NoError(t, err)
	assert.Equal(t, "e2", got.ID)
	assert.NotContains(t, repo.expenses, "e2")
	require.Len(t, d.events, 1)
	assert.Equal(t, event.TypeExpenseDeleted, d.events[0].Type)
}

func TestEngine_InvalidTransitionIsConflict(t *testing.T) {
	repo := newMockExpenseRepo(pendingExpense("e1"))
	engine := newTestEngine(repo, &mockHistoryRepo{}, &mockDispatcher{})

	_, err := engine.Transition(context.Background(), TransitionRequest{ExpenseID: "e1", Actor: owner, Trigger: domainwf.TriggerSubmit})
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestEngine_LostRaceIsConflict(t *testing.T) {
	repo := newMockExpenseRepo(pendingExpense("e1"))
	repo.updateErr = entity.ErrConflict
	history := &mockHistoryRepo{}
	d := &mockDispatcher{}
	engine := newTestEngine(repo, history, d)

	_, err := engine.Transition(context.Background(), TransitionRequest{ExpenseID: "e1", Actor: manager, Trigger: domainwf.TriggerApprove})
	assert.ErrorIs(t, err, entity.ErrConflict)
	assert.Empty(t, history.items)
	assert.Empty(t, d.events)
}

func TestEngine_NotFound(t *testing.T) {
	engine := newTestEngine(newMockExpenseRepo(), &mockHistoryRepo{}, &mockDispatcher{})

	_, err := engine.Transition(context.Background(), TransitionRequest{ExpenseID: "missing", Actor: owner, Trigger: domainwf.TriggerSubmit})
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestEngine_HistoryFailureAbortsWithoutEvent(t *testing.T) {
	repo := newMockExpenseRepo(draftExpense("e1"))
	d := &mockDispatcher{}
	engine := newTestEngine(repo, &mockHistoryRepo{createErr: errors.New("disk full")}, d)

	_, err := engine.Transition(context.Background(), TransitionRequest{ExpenseID: "e1", Actor: owner, Trigger: domainwf.TriggerSubmit})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create history record")
	assert.Empty(t, d.events)
}

func TestEngine_PermittedTriggers(t *testing.T) {
	repo := newMockExpenseRepo(draftExpense("d1"), pendingExpense("p1"))
	engine := newTestEngine(repo, &mockHistoryRepo{}, &mockDispatcher{})

	triggers, err := engine.PermittedTriggers(context.Background(), "d1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domainwf.Trigger{domainwf.TriggerSubmit, domainwf.TriggerDelete}, triggers)

	triggers, err = engine.PermittedTriggers(context.Background(), "p1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domainwf.Trigger{domainwf.TriggerApprove, domainwf.TriggerReject}, triggers)
}

func TestRolePolicy_CanRead(t *testing.T) {
	p := NewRolePolicy(nil)
	e := draftExpense("e1")

	assert.True(t, p.CanRead(owner, e))
	assert.True(t, p.CanRead(manager, e))
	assert.False(t, p.CanRead(stranger, e))
	assert.False(t, p.CanRead(observer, e))

	custom := NewRolePolicy([]entity.Role{entity.RoleAdmin})
	assert.False(t, custom.IsApprover(entity.RoleManager))
	assert.True(t, custom.IsApprover(entity.RoleAdmin))
}
