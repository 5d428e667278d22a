package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// ExpenseForm is the raw input of the add-expense page
type ExpenseForm struct {
	Merchant     string
	Amount       string
	Currency     string
	Category     string
	Description  string
	ExpenseDate  time.Time
	Reimbursable bool
	ReceiptURL   string
}

// ToNewExpense validates the form and builds a manual insert with the
// given status. Merchant and a positive amount are required.
func (f ExpenseForm) ToNewExpense(status entity.Status) (entity.NewExpense, error) {
	merchant := strings.TrimSpace(f.Merchant)
	if merchant == "" {
		return entity.NewExpense{}, entity.Invalidf("merchant is required")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(f.Amount))
	if err != nil || !amount.IsPositive() {
		return entity.NewExpense{}, entity.Invalidf("amount must be a positive number")
	}
	if status != entity.StatusDraft && status != entity.StatusPending {
		return entity.NewExpense{}, entity.Invalidf("cannot save an expense as %q", status)
	}

	date := f.ExpenseDate
	if date.IsZero() {
		date = time.Now()
	}
	y, m, d := date.Date()

	input := entity.NewExpense{
		Merchant:     merchant,
		Amount:       entity.NewMoney(amount, f.Currency),
		Category:     optional(f.Category),
		Description:  optional(f.Description),
		ExpenseDate:  time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Reimbursable: f.Reimbursable,
		ReceiptURL:   optional(f.ReceiptURL),
		Status:       status,
		Source:       entity.SourceManual,
	}
	return input, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// AddExpenseController saves the add-expense form. On success the caller
// navigates to RouteInbox.
type AddExpenseController struct {
	data     port.DataService
	runner   *Runner
	notifier Notifier
	logger   *zap.Logger
}

// NewAddExpenseController creates the add-expense controller
func NewAddExpenseController(data port.DataService, runner *Runner, notifier Notifier, logger *zap.Logger) *AddExpenseController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AddExpenseController{data: data, runner: runner, notifier: notifier, logger: logger}
}

// Busy reports whether a save is in flight
func (c *AddExpenseController) Busy() bool {
	return c.runner.Busy(addExpenseKey)
}

const addExpenseKey = "add-expense"

// Save validates the form and inserts it as a draft or as pending. Invalid
// input fails without any remote call.
func (c *AddExpenseController) Save(ctx context.Context, auth AuthContext, form ExpenseForm, status entity.Status) Result {
	if !auth.Settled {
		return failed(ErrNotSettled)
	}
	if !auth.Authenticated {
		return failed(entity.ErrUnauthenticated)
	}

	input, err := form.ToNewExpense(status)
	if err != nil {
		res := failed(err)
		notifyError(c.notifier, strings.TrimPrefix(err.Error(), entity.ErrValidation.Error()+": "), res)
		return res
	}

	// An insert is not safe to repeat: a lost response would duplicate the row
	res := c.runner.DoOnce(ctx, addExpenseKey, func(ctx context.Context) error {
		_, err := c.data.InsertExpense(ctx, input)
		return err
	})
	if !res.Succeeded() {
		if res.Kind != KindBusy {
			c.logger.Error("Failed to save expense", zap.Error(res.Err))
			notifyError(c.notifier, "Failed to save expense", res)
		}
		return res
	}

	title := "Expense saved as draft"
	verb := "saved"
	if status == entity.StatusPending {
		title = "Expense submitted for review"
		verb = "submitted"
	}
	c.notifier.Notify(Notification{
		Level:   LevelSuccess,
		Title:   title,
		Message: fmt.Sprintf("Your expense for %s has been %s.", input.Merchant, verb),
		Kind:    KindOK,
	})
	return res
}
