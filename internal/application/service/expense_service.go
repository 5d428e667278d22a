package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/expense-desk/internal/application/dispatcher"
	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/application/workflow"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/domain/event"
	domainwf "github.com/garyjia/expense-desk/internal/domain/workflow"
	"github.com/google/uuid"
)

// ExpenseService is the row-level-authorized expense surface
type ExpenseService interface {
	Query(ctx context.Context, caller entity.Identity, filter port.ExpenseFilter) ([]*entity.Expense, error)
	Get(ctx context.Context, caller entity.Identity, id string) (*entity.Expense, error)
	Create(ctx context.Context, caller entity.Identity, input entity.NewExpense) (*entity.Expense, error)
	Delete(ctx context.Context, caller entity.Identity, id string) error
	Submit(ctx context.Context, caller entity.Identity, id string) (*entity.Expense, error)
	Approve(ctx context.Context, caller entity.Identity, id string) (*entity.Expense, error)
	Reject(ctx context.Context, caller entity.Identity, id, reason string) (*entity.Expense, error)
	History(ctx context.Context, caller entity.Identity, id string) ([]*entity.HistoryItem, error)
	Actions(ctx context.Context, caller entity.Identity, id string) ([]domainwf.Trigger, error)
}

type expenseServiceImpl struct {
	expenseRepo port.ExpenseRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	engine      workflow.LifecycleEngine
	policy      *workflow.RolePolicy
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(
	expenseRepo port.ExpenseRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	engine workflow.LifecycleEngine,
	policy *workflow.RolePolicy,
	d dispatcher.Dispatcher,
	logger Logger,
) ExpenseService {
	return &expenseServiceImpl{
		expenseRepo: expenseRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		engine:      engine,
		policy:      policy,
		dispatcher:  d,
		logger:      orNop(logger),
		now:         time.Now,
	}
}

// Query returns the rows visible to the caller that match the filter
func (s *expenseServiceImpl) Query(ctx context.Context, caller entity.Identity, filter port.ExpenseFilter) ([]*entity.Expense, error) {
	if caller.UserID == "" {
		return nil, entity.ErrUnauthenticated
	}
	if filter.OrderBy == "" {
		filter.OrderBy = port.OrderByCreatedAt
	}
	if !filter.OrderBy.IsValid() {
		return nil, entity.Invalidf("cannot order by %q", filter.OrderBy)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, entity.Invalidf("unknown status %q", filter.Status)
	}

	if !s.policy.IsApprover(caller.Role) {
		if filter.UserID != "" && filter.UserID != caller.UserID {
			return []*entity.Expense{}, nil
		}
		filter.UserID = caller.UserID
	}

	expenses, err := s.expenseRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to query expenses", "error", err, "user_id", caller.UserID)
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	if expenses == nil {
		expenses = []*entity.Expense{}
	}
	return expenses, nil
}

// Get returns one expense if the caller may read it
func (s *expenseServiceImpl) Get(ctx context.Context, caller entity.Identity, id string) (*entity.Expense, error) {
	if caller.UserID == "" {
		return nil, entity.ErrUnauthenticated
	}
	expense, err := s.expenseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	if expense == nil || !s.policy.CanRead(caller, expense) {
		return nil, fmt.Errorf("expense %s: %w", id, entity.ErrNotFound)
	}
	return expense, nil
}

// Create inserts a new draft or pending expense owned by the caller
func (s *expenseServiceImpl) Create(ctx context.Context, caller entity.Identity, input entity.NewExpense) (*entity.Expense, error) {
	if caller.UserID == "" {
		return nil, entity.ErrUnauthenticated
	}

	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expense := &entity.Expense{
		ID:           uuid.NewString(),
		UserID:       caller.UserID,
		Amount:       input.Amount,
		Category:     input.Category,
		Merchant:     input.Merchant,
		Description:  input.Description,
		Tags:         nonNil(input.Tags),
		ExpenseDate:  input.ExpenseDate,
		ReceiptURL:   input.ReceiptURL,
		Source:       input.Source,
		Confidence:   input.Confidence,
		Reimbursable: input.Reimbursable,
		PolicyFlags:  nonNil(input.PolicyFlags),
		Duplicates:   nonNil(input.Duplicates),
		Status:       input.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if expense.Status == entity.StatusPending {
		expense.SubmittedAt = &now
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.expenseRepo.Create(txCtx, expense); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		if err := s.historyRepo.Create(txCtx, &entity.HistoryItem{
			ExpenseID: expense.ID,
			ActorID:   caller.UserID,
			Action:    entity.ActionCreated,
			NewStatus: entity.StatusDraft,
			Timestamp: now,
		}); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		if expense.Status == entity.StatusPending {
			if err := s.historyRepo.Create(txCtx, &entity.HistoryItem{
				ExpenseID:      expense.ID,
				ActorID:        caller.UserID,
				Action:         entity.ActionSubmitted,
				PreviousStatus: entity.StatusDraft,
				NewStatus:      entity.StatusPending,
				Timestamp:      now,
			}); err != nil {
				return fmt.Errorf("create history: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create expense", "error", err, "user_id", caller.UserID)
		return nil, err
	}

	s.logger.Info("Expense created",
		"expense_id", expense.ID,
		"user_id", caller.UserID,
		"status", expense.Status,
		"source", expense.Source,
	)

	s.emit(ctx, event.TypeExpenseCreated, expense, caller)
	if expense.Status == entity.StatusPending {
		s.emit(ctx, event.TypeExpenseSubmitted, expense, caller)
	}

	return expense, nil
}

// Delete removes a draft owned by the caller
func (s *expenseServiceImpl) Delete(ctx context.Context, caller entity.Identity, id string) error {
	_, err := s.transition(ctx, caller, id, domainwf.TriggerDelete, "")
	return err
}

// Submit moves a draft to pending
func (s *expenseServiceImpl) Submit(ctx context.Context, caller entity.Identity, id string) (*entity.Expense, error) {
	return s.transition(ctx, caller, id, domainwf.TriggerSubmit, "")
}

// Approve moves a pending expense to approved
func (s *expenseServiceImpl) Approve(ctx context.Context, caller entity.Identity, id string) (*entity.Expense, error) {
	return s.transition(ctx, caller, id, domainwf.TriggerApprove, "")
}

// Reject moves a pending expense to rejected with a reason
func (s *expenseServiceImpl) Reject(ctx context.Context, caller entity.Identity, id, reason string) (*entity.Expense, error) {
	return s.transition(ctx, caller, id, domainwf.TriggerReject, reason)
}

// History returns the audit trail of an expense visible to the caller
func (s *expenseServiceImpl) History(ctx context.Context, caller entity.Identity, id string) ([]*entity.HistoryItem, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	items, err := s.historyRepo.GetByExpenseID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	if items == nil {
		items = []*entity.HistoryItem{}
	}
	return items, nil
}

// Actions returns the triggers the caller may fire on the expense now:
// those its state permits, narrowed by the role policy.
func (s *expenseServiceImpl) Actions(ctx context.Context, caller entity.Identity, id string) ([]domainwf.Trigger, error) {
	expense, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	permitted, err := s.engine.PermittedTriggers(ctx, id)
	if err != nil {
		return nil, err
	}
	actions := make([]domainwf.Trigger, 0, len(permitted))
	for _, trigger := range permitted {
		if s.policy.Authorize(caller, expense, trigger) == nil {
			actions = append(actions, trigger)
		}
	}
	return actions, nil
}

func (s *expenseServiceImpl) transition(ctx context.Context, caller entity.Identity, id string, trigger domainwf.Trigger, note string) (*entity.Expense, error) {
	if caller.UserID == "" {
		return nil, entity.ErrUnauthenticated
	}

	expense, err := s.engine.Transition(ctx, workflow.TransitionRequest{
		ExpenseID: id,
		Actor:     caller,
		Trigger:   trigger,
		Note:      note,
	})
	if err != nil {
		s.logger.Error("Expense transition failed",
			"expense_id", id,
			"trigger", trigger,
			"user_id", caller.UserID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Expense transitioned",
		"expense_id", id,
		"trigger", trigger,
		"user_id", caller.UserID,
		"status", expense.Status,
	)
	return expense, nil
}

func (s *expenseServiceImpl) emit(ctx context.Context, t event.Type, expense *entity.Expense, caller entity.Identity) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, event.NewEvent(t, expense.ID, caller.UserID, map[string]interface{}{
		"owner_id": expense.UserID,
		"merchant": expense.Merchant,
		"amount":   expense.Amount.String(),
		"source":   string(expense.Source),
	}))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
