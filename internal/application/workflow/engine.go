package workflow

import (
	"context"

	"github.com/garyjia/expense-desk/internal/domain/entity"
	domainwf "github.com/garyjia/expense-desk/internal/domain/workflow"
)

// TransitionRequest asks the engine to fire one trigger on one expense
type TransitionRequest struct {
	ExpenseID string
	Actor     entity.Identity
	Trigger   domainwf.Trigger
	// Note is the rejection reason for REJECT, optional otherwise
	Note string
}

// LifecycleEngine drives expenses through the approval lifecycle
type LifecycleEngine interface {
	// Transition fires the trigger and returns the expense as stored afterwards.
	// A deleted expense is returned as it was before deletion.
	Transition(ctx context.Context, req TransitionRequest) (*entity.Expense, error)

	// PermittedTriggers returns the triggers the expense's current state allows
	PermittedTriggers(ctx context.Context, expenseID string) ([]domainwf.Trigger, error)
}

// Policy decides whether an actor may fire a trigger on an expense
type Policy interface {
	Authorize(actor entity.Identity, expense *entity.Expense, trigger domainwf.Trigger) error
}
