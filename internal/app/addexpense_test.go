package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

func TestExpenseForm_ToNewExpense(t *testing.T) {
	date := time.Date(2024, time.May, 2, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		form    ExpenseForm
		status  entity.Status
		wantErr string
	}{
		{name: "valid draft", form: ExpenseForm{Merchant: "Cafe", Amount: "12.50", ExpenseDate: date}, status: entity.StatusDraft},
		{name: "valid pending", form: ExpenseForm{Merchant: "Cafe", Amount: "3", ExpenseDate: date}, status: entity.StatusPending},
		{name: "missing merchant", form: ExpenseForm{Merchant: "  ", Amount: "12"}, status: entity.StatusDraft, wantErr: "merchant is required"},
		{name: "zero amount", form: ExpenseForm{Merchant: "Cafe", Amount: "0"}, status: entity.StatusDraft, wantErr: "amount must be a positive number"},
		{name: "non-numeric amount", form: ExpenseForm{Merchant: "Cafe", Amount: "abc"}, status: entity.StatusDraft, wantErr: "amount must be a positive number"},
		{name: "approved is not insertable", form: ExpenseForm{Merchant: "Cafe", Amount: "1"}, status: entity.StatusApproved, wantErr: "cannot save"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := tt.form.ToNewExpense(tt.status)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, entity.ErrValidation)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, input.Status)
			assert.Equal(t, entity.SourceManual, input.Source)
			assert.Equal(t, "USD", input.Amount.Currency)
			assert.Equal(t, time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC), input.ExpenseDate)
		})
	}
}

func TestAddExpenseController_Save(t *testing.T) {
	tests := []struct {
		name      string
		status    entity.Status
		wantTitle string
	}{
		{name: "save as draft", status: entity.StatusDraft, wantTitle: "Expense saved as draft"},
		{name: "submit for review", status: entity.StatusPending, wantTitle: "Expense submitted for review"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := newFakeData()
			var got entity.NewExpense
			data.insertFunc = func(ctx context.Context, input entity.NewExpense) (*entity.Expense, error) {
				got = input
				return &entity.Expense{ID: "exp-1"}, nil
			}
			recorder := &Recorder{}
			controller := NewAddExpenseController(data, testRunner(), recorder, nil)

			form := ExpenseForm{
				Merchant:     "Hardware Store",
				Amount:       "45.00",
				Currency:     "eur",
				Category:     "Equipment",
				Description:  " ",
				Reimbursable: true,
			}
			res := controller.Save(context.Background(), employeeAuth(), form, tt.status)

			require.True(t, res.Succeeded())
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, "EUR", got.Amount.Currency)
			require.NotNil(t, got.Category)
			assert.Equal(t, "Equipment", *got.Category)
			assert.Nil(t, got.Description)
			assert.True(t, got.Reimbursable)
			last, _ := recorder.Last()
			assert.Equal(t, tt.wantTitle, last.Title)
			assert.Equal(t, LevelSuccess, last.Level)
		})
	}
}

func TestAddExpenseController_InvalidFormMakesNoCall(t *testing.T) {
	data := newFakeData()
	recorder := &Recorder{}
	controller := NewAddExpenseController(data, testRunner(), recorder, nil)

	res := controller.Save(context.Background(), employeeAuth(), ExpenseForm{Amount: "10"}, entity.StatusDraft)

	assert.Equal(t, KindValidation, res.Kind)
	assert.Equal(t, 0, data.count("InsertExpense"))
	last, _ := recorder.Last()
	assert.Equal(t, "merchant is required", last.Message)
}

func TestAddExpenseController_RequiresSession(t *testing.T) {
	data := newFakeData()
	controller := NewAddExpenseController(data, testRunner(), &Recorder{}, nil)

	res := controller.Save(context.Background(), Anonymous(), ExpenseForm{Merchant: "Cafe", Amount: "1"}, entity.StatusDraft)

	assert.Equal(t, KindUnauthenticated, res.Kind)
	assert.Equal(t, 0, data.count("InsertExpense"))
}

func TestAddExpenseController_InsertIsNotRetried(t *testing.T) {
	data := newFakeData()
	committed := 0
	data.insertFunc = func(ctx context.Context, input entity.NewExpense) (*entity.Expense, error) {
		// the row is stored but the response never arrives
		committed++
		return nil, port.ErrUnavailable
	}
	runner := NewRunner(RunnerConfig{Retry: RetryPolicy{MaxAttempts: 3}})
	runner.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	recorder := &Recorder{}
	controller := NewAddExpenseController(data, runner, recorder, nil)

	res := controller.Save(context.Background(), employeeAuth(), ExpenseForm{Merchant: "Cafe", Amount: "4.50"}, entity.StatusDraft)

	assert.Equal(t, KindUnavailable, res.Kind)
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, data.count("InsertExpense"))
	last, _ := recorder.Last()
	assert.Equal(t, "Failed to save expense", last.Message)
}
