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

func TestApprovalsController_Load(t *testing.T) {
	t.Run("approver reads pending rows", func(t *testing.T) {
		data := newFakeData()
		var got port.ExpenseFilter
		data.listExpensesFunc = func(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
			got = filter
			return []*entity.Expense{{ID: "exp-1", Status: entity.StatusPending}}, nil
		}
		controller := NewApprovalsController(data, testRunner(), &Recorder{}, nil)

		res := controller.Load(context.Background(), approverAuth())

		require.True(t, res.Succeeded())
		assert.Equal(t, entity.StatusPending, got.Status)
		assert.Equal(t, port.OrderBySubmittedAt, got.OrderBy)
		assert.True(t, got.WithSubmitter)
		assert.Empty(t, got.UserID)
		assert.Len(t, controller.Pending(), 1)
	})

	t.Run("employee is forbidden without a read", func(t *testing.T) {
		data := newFakeData()
		controller := NewApprovalsController(data, testRunner(), &Recorder{}, nil)

		res := controller.Load(context.Background(), employeeAuth())

		assert.Equal(t, KindForbidden, res.Kind)
		assert.Equal(t, 0, data.count("ListExpenses"))
	})
}

func TestApprovalsController_Reject(t *testing.T) {
	tests := []struct {
		name        string
		reason      string
		wantKind    Kind
		wantCalls   int
		wantReason  string
		wantMessage string
	}{
		{
			name:        "blank reason makes no call",
			reason:      "   ",
			wantKind:    KindValidation,
			wantMessage: "Please provide a reason for rejection",
		},
		{
			name:        "reason is trimmed",
			reason:      "  Missing receipt ",
			wantKind:    KindOK,
			wantCalls:   1,
			wantReason:  "Missing receipt",
			wantMessage: "Expense rejected successfully",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := newFakeData()
			var gotReason string
			data.rejectFunc = func(ctx context.Context, id, reason string) error {
				gotReason = reason
				return nil
			}
			recorder := &Recorder{}
			controller := NewApprovalsController(data, testRunner(), recorder, nil)

			res := controller.Reject(context.Background(), approverAuth(), "exp-1", tt.reason)

			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, tt.wantCalls, data.count("RejectExpense"))
			assert.Equal(t, tt.wantReason, gotReason)
			last, ok := recorder.Last()
			require.True(t, ok)
			assert.Equal(t, tt.wantMessage, last.Message)
		})
	}
}

func TestApprovalsController_ApproveConflict(t *testing.T) {
	data := newFakeData()
	data.approveFunc = func(ctx context.Context, id string) error { return entity.ErrConflict }
	recorder := &Recorder{}
	controller := NewApprovalsController(data, testRunner(), recorder, nil)

	res := controller.Approve(context.Background(), approverAuth(), "exp-1")

	assert.Equal(t, KindConflict, res.Kind)
	assert.Equal(t, 0, data.count("ListExpenses"))
	last, _ := recorder.Last()
	assert.Equal(t, "Failed to approve expense", last.Message)
	assert.Equal(t, KindConflict, last.Kind)
}

func TestApprovalsController_ApproveReloads(t *testing.T) {
	data := newFakeData()
	controller := NewApprovalsController(data, testRunner(), &Recorder{}, nil)

	res := controller.Approve(context.Background(), approverAuth(), "exp-1")

	assert.True(t, res.Succeeded())
	assert.Equal(t, 1, data.count("ApproveExpense"))
	assert.Equal(t, 1, data.count("ListExpenses"))
}

func TestApprovalsController_ApproveOutcomeUnknown(t *testing.T) {
	data := newFakeData()
	data.approveFunc = func(ctx context.Context, id string) error {
		if data.count("ApproveExpense") == 1 {
			return port.ErrUnavailable
		}
		return entity.ErrConflict
	}
	data.listExpensesFunc = func(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
		return []*entity.Expense{}, nil
	}
	runner := NewRunner(RunnerConfig{Retry: RetryPolicy{MaxAttempts: 3}})
	runner.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	recorder := &Recorder{}
	controller := NewApprovalsController(data, runner, recorder, nil)

	res := controller.Approve(context.Background(), approverAuth(), "exp-1")

	assert.Equal(t, KindIndeterminate, res.Kind)
	assert.Equal(t, 2, data.count("ApproveExpense"))
	assert.Equal(t, 1, data.count("ListExpenses"), "list is reloaded")
	last, ok := recorder.Last()
	require.True(t, ok)
	assert.Equal(t, "Outcome unknown", last.Title)
	assert.Equal(t, KindIndeterminate, last.Kind)
}
