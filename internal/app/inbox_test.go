package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

type fakeSpreadsheet struct {
	rows int
	err  error
}

func (f *fakeSpreadsheet) WriteExpenses(w io.Writer, expenses []*entity.Expense) error {
	if f.err != nil {
		return f.err
	}
	f.rows = len(expenses)
	_, err := w.Write([]byte("xlsx"))
	return err
}

func inboxRows() []*entity.Expense {
	now := time.Now()
	coffee := expense("1", entity.StatusDraft, "4.50", "Meals", now)
	coffee.Merchant = "Blue Bottle Coffee"
	laptop := expense("2", entity.StatusApproved, "1234.50", "Equipment", now)
	laptop.Merchant = "Apple Store"
	laptop.Description = entity.StringPtr("New laptop for design work")
	laptop.Source = entity.SourceReceipt
	taxi := expense("3", entity.StatusPending, "23.00", "", now)
	taxi.Merchant = "City Cab"
	taxi.Source = entity.SourceSMS
	return []*entity.Expense{coffee, laptop, taxi}
}

func TestFilterExpenses(t *testing.T) {
	tests := []struct {
		name    string
		filter  InboxFilter
		wantIDs []string
	}{
		{name: "no filter", filter: InboxFilter{}, wantIDs: []string{"1", "2", "3"}},
		{name: "merchant query is case-insensitive", filter: InboxFilter{Query: "COFFEE"}, wantIDs: []string{"1"}},
		{name: "description query", filter: InboxFilter{Query: "laptop"}, wantIDs: []string{"2"}},
		{name: "formatted amount query", filter: InboxFilter{Query: "$1,234"}, wantIDs: []string{"2"}},
		{name: "status", filter: InboxFilter{Status: entity.StatusPending}, wantIDs: []string{"3"}},
		{name: "missing category matches Other", filter: InboxFilter{Category: "other"}, wantIDs: []string{"3"}},
		{name: "source", filter: InboxFilter{Source: entity.SourceReceipt}, wantIDs: []string{"2"}},
		{name: "limit", filter: InboxFilter{Limit: 2}, wantIDs: []string{"1", "2"}},
		{name: "no match", filter: InboxFilter{Query: "hotel"}, wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterExpenses(inboxRows(), tt.filter)
			ids := make([]string, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestInboxController_LoadAndExport(t *testing.T) {
	data := newFakeData()
	var scope string
	data.listExpensesFunc = func(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
		scope = filter.UserID
		return inboxRows(), nil
	}
	data.categoriesFunc = func(ctx context.Context) ([]*entity.Category, error) {
		return []*entity.Category{{ID: "c1", Name: "Meals", Color: "#F59E0B", Active: true}}, nil
	}
	sheet := &fakeSpreadsheet{}
	recorder := &Recorder{}
	controller := NewInboxController(data, sheet, recorder, nil)

	res := controller.Load(context.Background(), employeeAuth())
	require.True(t, res.Succeeded())
	assert.Equal(t, "user-1", scope)
	assert.Equal(t, "#F59E0B", controller.CategoryColor("meals"))
	assert.Equal(t, "", controller.CategoryColor("Travel"))

	var buf bytes.Buffer
	res = controller.Export(&buf, InboxFilter{Status: entity.StatusDraft})
	require.True(t, res.Succeeded())
	assert.Equal(t, 1, sheet.rows)
	assert.Equal(t, "xlsx", buf.String())
}

func TestInboxController_LoadFailureKeepsRows(t *testing.T) {
	data := newFakeData()
	data.listExpensesFunc = func(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
		return inboxRows(), nil
	}
	controller := NewInboxController(data, &fakeSpreadsheet{}, &Recorder{}, nil)
	require.True(t, controller.Load(context.Background(), approverAuth()).Succeeded())

	data.listExpensesFunc = func(ctx context.Context, filter port.ExpenseFilter) ([]*entity.Expense, error) {
		return nil, errors.New("boom")
	}
	res := controller.Load(context.Background(), approverAuth())

	assert.Equal(t, KindUnknown, res.Kind)
	assert.Len(t, controller.Visible(InboxFilter{}), 3)
}

func TestInboxController_ExportFailure(t *testing.T) {
	recorder := &Recorder{}
	controller := NewInboxController(newFakeData(), &fakeSpreadsheet{err: errors.New("disk full")}, recorder, nil)

	res := controller.Export(io.Discard, InboxFilter{})

	assert.False(t, res.Succeeded())
	last, _ := recorder.Last()
	assert.Equal(t, "Failed to export expenses", last.Message)
}
