package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// StatusGroups partitions expenses by lifecycle status
type StatusGroups struct {
	Draft      []*entity.Expense
	Pending    []*entity.Expense
	Approved   []*entity.Expense
	Rejected   []*entity.Expense
	Reimbursed []*entity.Expense
}

// GroupByStatus partitions expenses, keeping their order within each group
func GroupByStatus(expenses []*entity.Expense) StatusGroups {
	var g StatusGroups
	for _, e := range expenses {
		switch e.Status {
		case entity.StatusDraft:
			g.Draft = append(g.Draft, e)
		case entity.StatusPending:
			g.Pending = append(g.Pending, e)
		case entity.StatusApproved:
			g.Approved = append(g.Approved, e)
		case entity.StatusRejected:
			g.Rejected = append(g.Rejected, e)
		case entity.StatusReimbursed:
			g.Reimbursed = append(g.Reimbursed, e)
		}
	}
	return g
}

// ExpensesController is the employee's own expense list with submit and delete
type ExpensesController struct {
	data     port.DataService
	runner   *Runner
	notifier Notifier
	logger   *zap.Logger

	mu       sync.RWMutex
	expenses []*entity.Expense
}

// NewExpensesController creates the employee expense controller
func NewExpensesController(data port.DataService, runner *Runner, notifier Notifier, logger *zap.Logger) *ExpensesController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpensesController{
		data:     data,
		runner:   runner,
		notifier: notifier,
		logger:   logger,
		expenses: []*entity.Expense{},
	}
}

// Load reads the caller's own expenses, newest first
func (c *ExpensesController) Load(ctx context.Context, auth AuthContext) Result {
	if !auth.Settled {
		return failed(ErrNotSettled)
	}
	if !auth.Authenticated {
		return failed(entity.ErrUnauthenticated)
	}

	expenses, err := c.data.ListExpenses(ctx, port.ExpenseFilter{
		UserID:  auth.Identity.UserID,
		OrderBy: port.OrderByCreatedAt,
	})
	if err != nil {
		res := failed(err)
		c.logger.Error("Failed to fetch expenses", zap.Error(err))
		notifyError(c.notifier, "Failed to load your expenses", res)
		return res
	}

	c.mu.Lock()
	c.expenses = expenses
	c.mu.Unlock()
	return ok()
}

// Expenses returns the rows of the last successful read
func (c *ExpensesController) Expenses() []*entity.Expense {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expenses
}

// Groups returns the last read partitioned by status
func (c *ExpensesController) Groups() StatusGroups {
	return GroupByStatus(c.Expenses())
}

// Busy reports whether an action on the expense is in flight
func (c *ExpensesController) Busy(id string) bool {
	return c.runner.Busy(recordKey(id))
}

// Submit sends a draft for approval and reloads on success
func (c *ExpensesController) Submit(ctx context.Context, auth AuthContext, id string) Result {
	res := c.runner.Do(ctx, recordKey(id), func(ctx context.Context) error {
		return c.data.SubmitExpense(ctx, id)
	})
	return c.finish(ctx, auth, res, "Expense submitted for approval", "Failed to submit expense")
}

// Delete removes a draft and reloads on success
func (c *ExpensesController) Delete(ctx context.Context, auth AuthContext, id string) Result {
	res := c.runner.Do(ctx, recordKey(id), func(ctx context.Context) error {
		return c.data.DeleteDraftExpense(ctx, id)
	})
	return c.finish(ctx, auth, res, "Expense deleted successfully", "Failed to delete expense")
}

func (c *ExpensesController) finish(ctx context.Context, auth AuthContext, res Result, success, failure string) Result {
	if res.Kind == KindIndeterminate {
		c.logger.Warn(failure, zap.Error(res.Err))
		notifyIndeterminate(c.notifier, res)
		c.Load(ctx, auth)
		return res
	}
	if !res.Succeeded() {
		if res.Kind != KindBusy {
			c.logger.Error(failure, zap.Error(res.Err))
			notifyError(c.notifier, failure, res)
		}
		return res
	}
	notifySuccess(c.notifier, success)
	c.Load(ctx, auth)
	return res
}

// recordKey is the single-flight key of an action on one record
func recordKey(id string) string {
	return "expense:" + id
}
