package app

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// ApprovalsController is the approver queue of pending expenses
type ApprovalsController struct {
	data     port.DataService
	runner   *Runner
	notifier Notifier
	logger   *zap.Logger

	mu      sync.RWMutex
	pending []*entity.Expense
}

// NewApprovalsController creates the approval queue controller
func NewApprovalsController(data port.DataService, runner *Runner, notifier Notifier, logger *zap.Logger) *ApprovalsController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalsController{
		data:     data,
		runner:   runner,
		notifier: notifier,
		logger:   logger,
		pending:  []*entity.Expense{},
	}
}

// Load reads every pending expense with its submitter, most recently
// submitted first. Only identities with approval authority may load it.
func (c *ApprovalsController) Load(ctx context.Context, auth AuthContext) Result {
	if !auth.Settled {
		return failed(ErrNotSettled)
	}
	if !auth.CanApprove {
		return failed(entity.ErrForbidden)
	}

	pending, err := c.data.ListExpenses(ctx, port.ExpenseFilter{
		Status:        entity.StatusPending,
		OrderBy:       port.OrderBySubmittedAt,
		WithSubmitter: true,
	})
	if err != nil {
		res := failed(err)
		c.logger.Error("Failed to fetch pending expenses", zap.Error(err))
		notifyError(c.notifier, "Failed to load expenses for approval", res)
		return res
	}

	c.mu.Lock()
	c.pending = pending
	c.mu.Unlock()
	return ok()
}

// Pending returns the rows of the last successful read
func (c *ApprovalsController) Pending() []*entity.Expense {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending
}

// Busy reports whether an action on the expense is in flight
func (c *ApprovalsController) Busy(id string) bool {
	return c.runner.Busy(recordKey(id))
}

// Approve approves a pending expense and reloads on success
func (c *ApprovalsController) Approve(ctx context.Context, auth AuthContext, id string) Result {
	res := c.runner.Do(ctx, recordKey(id), func(ctx context.Context) error {
		return c.data.ApproveExpense(ctx, id)
	})
	return c.finish(ctx, auth, res, "Expense approved successfully", "Failed to approve expense")
}

// Reject rejects a pending expense. A blank reason fails validation
// without any remote call.
func (c *ApprovalsController) Reject(ctx context.Context, auth AuthContext, id, reason string) Result {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		res := failed(entity.Invalidf("rejection reason is required"))
		notifyError(c.notifier, "Please provide a reason for rejection", res)
		return res
	}

	res := c.runner.Do(ctx, recordKey(id), func(ctx context.Context) error {
		return c.data.RejectExpense(ctx, id, reason)
	})
	return c.finish(ctx, auth, res, "Expense rejected successfully", "Failed to reject expense")
}

func (c *ApprovalsController) finish(ctx context.Context, auth AuthContext, res Result, success, failure string) Result {
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
