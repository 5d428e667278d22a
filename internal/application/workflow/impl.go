package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-desk/internal/application/dispatcher"
	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/domain/event"
	domainwf "github.com/garyjia/expense-desk/internal/domain/workflow"
)

// engineImpl is the concrete implementation of LifecycleEngine
type engineImpl struct {
	expenseRepo port.ExpenseRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	policy      Policy
	now         func() time.Time
}

// EngineOption configures the lifecycle engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithPolicy sets the authorization policy checked before every transition
func WithPolicy(p Policy) EngineOption {
	return func(e *engineImpl) {
		e.policy = p
	}
}

// WithClock overrides the time source used for lifecycle timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new lifecycle engine
func NewEngine(
	expenseRepo port.ExpenseRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) LifecycleEngine {
	e := &engineImpl{
		expenseRepo: expenseRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Transition fires a trigger on an expense inside one transaction
func (e *engineImpl) Transition(ctx context.Context, req TransitionRequest) (*entity.Expense, error) {
	reason := strings.TrimSpace(req.Note)
	if req.Trigger == domainwf.TriggerReject && reason == "" {
		return nil, entity.Invalidf("a rejection reason is required")
	}

	var (
		before *entity.Expense
		after  *entity.Expense
		from   domainwf.State
		to     domainwf.State
	)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		expense, err := e.expenseRepo.GetByID(txCtx, req.ExpenseID)
		if err != nil {
			return fmt.Errorf("failed to load expense: %w", err)
		}
		if expense == nil {
			return fmt.Errorf("expense %s: %w", req.ExpenseID, entity.ErrNotFound)
		}
		before = expense

		if e.policy != nil {
			if err := e.policy.Authorize(req.Actor, expense, req.Trigger); err != nil {
				return err
			}
		}

		from = domainwf.FromStatus(expense.Status)
		if !from.IsValid() {
			return fmt.Errorf("invalid state in expense %s: %s", expense.ID, expense.Status)
		}

		machine := BuildExpenseStateMachine(from, reason)
		if err := machine.Fire(txCtx, req.Trigger); err != nil {
			return mapFireError(req.Trigger, err)
		}
		to = machine.State()

		if to == domainwf.StateDeleted {
			deleted, err := e.expenseRepo.DeleteDraft(txCtx, expense.ID, req.Actor.UserID)
			if err != nil {
				return fmt.Errorf("failed to delete expense: %w", err)
			}
			if !deleted {
				return fmt.Errorf("expense %s is not a draft owned by the caller: %w", expense.ID, entity.ErrForbidden)
			}
			return nil
		}

		now := e.now().UTC()
		update := port.StatusUpdate{
			ExpenseID: expense.ID,
			From:      from.Status(),
			To:        to.Status(),
			UpdatedAt: now,
		}
		action := ""
		switch req.Trigger {
		case domainwf.TriggerSubmit:
			update.SubmittedAt = &now
			action = entity.ActionSubmitted
		case domainwf.TriggerApprove:
			update.ApprovedAt = &now
			update.ApprovedBy = &req.Actor.UserID
			action = entity.ActionApproved
		case domainwf.TriggerReject:
			update.RejectedAt = &now
			update.RejectionReason = &reason
			action = entity.ActionRejected
		}

		if err := e.expenseRepo.UpdateStatus(txCtx, update); err != nil {
			return fmt.Errorf("failed to update expense status: %w", err)
		}

		if err := e.historyRepo.Create(txCtx, &entity.HistoryItem{
			ExpenseID:      expense.ID,
			ActorID:        req.Actor.UserID,
			Action:         action,
			PreviousStatus: from.Status(),
			NewStatus:      to.Status(),
			Note:           reason,
			Timestamp:      now,
		}); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		after, err = e.expenseRepo.GetByID(txCtx, expense.ID)
		if err != nil {
			return fmt.Errorf("failed to reload expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emit(ctx, req, before, from, to, reason)

	if to == domainwf.StateDeleted {
		return before, nil
	}
	return after, nil
}

// PermittedTriggers returns the triggers allowed from the expense's current state
func (e *engineImpl) PermittedTriggers(ctx context.Context, expenseID string) ([]domainwf.Trigger, error) {
	expense, err := e.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense: %w", err)
	}
	if expense == nil {
		return nil, fmt.Errorf("expense %s: %w", expenseID, entity.ErrNotFound)
	}
	return BuildExpenseStateMachine(domainwf.FromStatus(expense.Status), "").PermittedTriggers(), nil
}

func (e *engineImpl) emit(ctx context.Context, req TransitionRequest, expense *entity.Expense, from, to domainwf.State, reason string) {
	if e.dispatcher == nil {
		return
	}

	var eventType event.Type
	switch req.Trigger {
	case domainwf.TriggerSubmit:
		eventType = event.TypeExpenseSubmitted
	case domainwf.TriggerApprove:
		eventType = event.TypeExpenseApproved
	case domainwf.TriggerReject:
		eventType = event.TypeExpenseRejected
	case domainwf.TriggerDelete:
		eventType = event.TypeExpenseDeleted
	default:
		return
	}

	payload := map[string]interface{}{
		"owner_id":        expense.UserID,
		"merchant":        expense.Merchant,
		"amount":          expense.Amount.String(),
		"previous_status": from.String(),
		"new_status":      to.String(),
		"trigger":         req.Trigger.String(),
	}
	if reason != "" {
		payload["reason"] = reason
	}

	e.dispatcher.DispatchAsync(ctx, event.NewEvent(eventType, expense.ID, req.Actor.UserID, payload))
}

// mapFireError converts state machine failures into domain errors
func mapFireError(trigger domainwf.Trigger, err error) error {
	switch {
	case errors.Is(err, domainwf.ErrGuardFailed):
		return fmt.Errorf("%w: %v", entity.ErrValidation, err)
	case errors.Is(err, domainwf.ErrInvalidTransition) && trigger == domainwf.TriggerDelete:
		return fmt.Errorf("only draft expenses can be deleted: %w", entity.ErrForbidden)
	case errors.Is(err, domainwf.ErrInvalidTransition):
		return fmt.Errorf("%w: %v", entity.ErrConflict, err)
	default:
		return err
	}
}
