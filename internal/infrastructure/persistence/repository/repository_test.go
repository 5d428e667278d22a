package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-desk/migrations"
	"github.com/garyjia/expense-desk/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var base = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Run(migrations.FS))
	return sqlite.NewDB(db.DB, logger)
}

func createProfile(t *testing.T, repo port.ProfileRepository, id, email string, role entity.Role, createdAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &entity.Profile{
		ID:           id,
		Email:        email,
		FullName:     "Name " + id,
		Role:         role,
		PasswordHash: "hash",
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}))
}

func newExpense(id, userID string, status entity.Status, createdAt time.Time) *entity.Expense {
	e := &entity.Expense{
		ID:           id,
		UserID:       userID,
		Amount:       entity.NewMoney(decimal.RequireFromString("12.50"), "EUR"),
		Category:     entity.StringPtr("Meals"),
		Merchant:     "Starbucks",
		Tags:         []string{"coffee"},
		ExpenseDate:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		Source:       entity.SourceEmail,
		Confidence:   entity.ConfidenceMedium,
		Reimbursable: true,
		PolicyFlags:  []string{},
		Duplicates:   []string{"e-old"},
		Status:       status,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	if status == entity.StatusPending {
		submitted := createdAt.Add(time.Minute)
		e.SubmittedAt = &submitted
	}
	return e
}

func TestExpenseRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	profiles := NewProfileRepository(db, zap.NewNop())
	expenses := NewExpenseRepository(db, zap.NewNop())
	ctx := context.Background()

	createProfile(t, profiles, "u-1", "one@example.com", entity.RoleEmployee, base)
	require.NoError(t, expenses.Create(ctx, newExpense("e-1", "u-1", entity.StatusPending, base)))

	got, err := expenses.GetByID(ctx, "e-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "u-1", got.UserID)
	assert.True(t, got.Amount.Value.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "EUR", got.Amount.Currency)
	assert.Equal(t, "Meals", *got.Category)
	assert.Nil(t, got.Description)
	assert.Equal(t, []string{"coffee"}, got.Tags)
	assert.Equal(t, []string{"e-old"}, got.Duplicates)
	assert.Equal(t, []string{}, got.PolicyFlags)
	assert.Equal(t, "2026-10-01", got.ExpenseDate.Format(time.DateOnly))
	assert.Equal(t, entity.SourceEmail, got.Source)
	assert.Equal(t, entity.ConfidenceMedium, got.Confidence)
	assert.True(t, got.Reimbursable)
	assert.Equal(t, entity.StatusPending, got.Status)
	require.NotNil(t, got.SubmittedAt)
	assert.True(t, got.SubmittedAt.Equal(base.Add(time.Minute)))
	assert.True(t, got.CreatedAt.Equal(base))
	require.NotNil(t, got.Submitter)
	assert.Equal(t, "one@example.com", got.Submitter.Email)

	missing, err := expenses.GetByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExpenseRepository_List(t *testing.T) {
	db := newTestDB(t)
	profiles := NewProfileRepository(db, zap.NewNop())
	expenses := NewExpenseRepository(db, zap.NewNop())
	ctx := context.Background()

	createProfile(t, profiles, "u-1", "one@example.com", entity.RoleEmployee, base)
	createProfile(t, profiles, "u-2", "two@example.com", entity.RoleEmployee, base)

	require.NoError(t, expenses.Create(ctx, newExpense("e-1", "u-1", entity.StatusDraft, base.Add(1*time.Hour))))
	require.NoError(t, expenses.Create(ctx, newExpense("e-2", "u-1", entity.StatusPending, base.Add(2*time.Hour))))
	require.NoError(t, expenses.Create(ctx, newExpense("e-3", "u-2", entity.StatusPending, base.Add(3*time.Hour))))

	// rows written by older clients spell pending as "submitted"
	_, err := db.ExecContext(ctx, "UPDATE expenses SET status = 'submitted' WHERE id = 'e-3'")
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter port.ExpenseFilter
		want   []string
	}{
		{"own rows newest first", port.ExpenseFilter{UserID: "u-1"}, []string{"e-2", "e-1"}},
		{"pending includes submitted alias", port.ExpenseFilter{Status: entity.StatusPending, OrderBy: port.OrderBySubmittedAt}, []string{"e-3", "e-2"}},
		{"no match", port.ExpenseFilter{UserID: "u-2", Status: entity.StatusDraft}, []string{}},
		{"limit", port.ExpenseFilter{Limit: 1}, []string{"e-3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expenses.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := []string{}
			for _, e := range got {
				ids = append(ids, e.ID)
				assert.Nil(t, e.Submitter)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	withSubmitter, err := expenses.List(ctx, port.ExpenseFilter{Status: entity.StatusPending, WithSubmitter: true})
	require.NoError(t, err)
	require.Len(t, withSubmitter, 2)
	assert.Equal(t, entity.StatusPending, withSubmitter[0].Status)
	require.NotNil(t, withSubmitter[0].Submitter)
	assert.Equal(t, "two@example.com", withSubmitter[0].Submitter.Email)

	_, err = expenses.List(ctx, port.ExpenseFilter{OrderBy: "merchant; DROP TABLE expenses"})
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestExpenseRepository_UpdateStatus(t *testing.T) {
	db := newTestDB(t)
	profiles := NewProfileRepository(db, zap.NewNop())
	expenses := NewExpenseRepository(db, zap.NewNop())
	ctx := context.Background()

	createProfile(t, profiles, "u-1", "one@example.com", entity.RoleEmployee, base)
	require.NoError(t, expenses.Create(ctx, newExpense("e-1", "u-1", entity.StatusPending, base)))

	decided := base.Add(time.Hour)
	reason := "no receipt"
	require.NoError(t, expenses.UpdateStatus(ctx, port.StatusUpdate{
		ExpenseID:       "e-1",
		From:            entity.StatusPending,
		To:              entity.StatusRejected,
		RejectedAt:      &decided,
		RejectionReason: &reason,
		UpdatedAt:       decided,
	}))

	got, err := expenses.GetByID(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, got.Status)
	require.NotNil(t, got.RejectedAt)
	assert.True(t, got.RejectedAt.Equal(decided))
	assert.Equal(t, "no receipt", *got.RejectionReason)
	assert.Nil(t, got.ApprovedAt)
	assert.NoError(t, got.CheckInvariants())

	approver := "u-mgr"
	err = expenses.UpdateStatus(ctx, port.StatusUpdate{
		ExpenseID:  "e-1",
		From:       entity.StatusPending,
		To:         entity.StatusApproved,
		ApprovedAt: &decided,
		ApprovedBy: &approver,
		UpdatedAt:  decided,
	})
	assert.ErrorIs(t, err, entity.ErrConflict)
}

func TestExpenseRepository_DeleteDraft(t *testing.T) {
	db := newTestDB(t)
	profiles := NewProfileRepository(db, zap.NewNop())
	expenses := NewExpenseRepository(db, zap.NewNop())
	history := NewHistoryRepository(db, zap.NewNop())
	ctx := context.Background()

	createProfile(t, profiles, "u-1", "one@example.com", entity.RoleEmployee, base)
	require.NoError(t, expenses.Create(ctx, newExpense("e-draft", "u-1", entity.StatusDraft, base)))
	require.NoError(t, expenses.Create(ctx, newExpense("e-pending", "u-1", entity.StatusPending, base)))
	require.NoError(t, history.Create(ctx, &entity.HistoryItem{ExpenseID: "e-draft", ActorID: "u-1", Action: entity.ActionCreated, NewStatus: entity.StatusDraft, Timestamp: base}))

	ok, err := expenses.DeleteDraft(ctx, "e-draft", "u-2")
	require.NoError(t, err)
	assert.False(t, ok, "only the owner may delete")

	ok, err = expenses.DeleteDraft(ctx, "e-pending", "u-1")
	require.NoError(t, err)
	assert.False(t, ok, "only drafts may be deleted")

	ok, err = expenses.DeleteDraft(ctx, "e-draft", "u-1")
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := expenses.GetByID(ctx, "e-draft")
	require.NoError(t, err)
	assert.Nil(t, gone)

	items, err := history.GetByExpenseID(ctx, "e-draft")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHistoryRepository_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	profiles := NewProfileRepository(db, zap.NewNop())
	expenses := NewExpenseRepository(db, zap.NewNop())
	history := NewHistoryRepository(db, zap.NewNop())
	ctx := context.Background()

	createProfile(t, profiles, "u-1", "one@example.com", entity.RoleEmployee, base)
	require.NoError(t, expenses.Create(ctx, newExpense("e-1", "u-1", entity.StatusDraft, base)))

	created := &entity.HistoryItem{ExpenseID: "e-1", ActorID: "u-1", Action: entity.ActionCreated, NewStatus: entity.StatusDraft, Timestamp: base}
	submitted := &entity.HistoryItem{ExpenseID: "e-1", ActorID: "u-1", Action: entity.ActionSubmitted, PreviousStatus: entity.StatusDraft, NewStatus: entity.StatusPending, Timestamp: base.Add(time.Minute)}
	require.NoError(t, history.Create(ctx, created))
	require.NoError(t, history.Create(ctx, submitted))
	assert.NotZero(t, created.ID)
	assert.Greater(t, submitted.ID, created.ID)

	items, err := history.GetByExpenseID(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, entity.Status(""), items[0].PreviousStatus)
	assert.Equal(t, entity.StatusPending, items[1].NewStatus)
	assert.True(t, items[1].Timestamp.Equal(base.Add(time.Minute)))
}

func TestTransactionRollback(t *testing.T) {
	db := newTestDB(t)
	profiles := NewProfileRepository(db, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		assert.True(t, sqlite.InTransaction(txCtx))
		require.NoError(t, profiles.Create(txCtx, &entity.Profile{ID: "u-in", Email: "in@example.com", Role: entity.RoleEmployee, PasswordHash: "h", CreatedAt: base, UpdatedAt: base}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	inside, err := profiles.GetByID(ctx, "u-in")
	require.NoError(t, err)
	assert.Nil(t, inside, "writes through the tx context roll back")
}

func TestProfileRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewProfileRepository(db, zap.NewNop())
	ctx := context.Background()

	createProfile(t, repo, "u-1", "one@example.com", entity.RoleEmployee, base)
	createProfile(t, repo, "u-2", "two@example.com", entity.RoleManager, base.Add(time.Hour))
	createProfile(t, repo, "u-3", "three@example.com", entity.RoleAdmin, base.Add(2*time.Hour))

	err := repo.Create(ctx, &entity.Profile{ID: "u-dup", Email: "one@example.com", Role: entity.RoleEmployee, PasswordHash: "h", CreatedAt: base, UpdatedAt: base})
	assert.ErrorIs(t, err, entity.ErrConflict)

	byEmail, err := repo.GetByEmail(ctx, " ONE@example.com ")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "u-1", byEmail.ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "u-3", all[0].ID)

	approvers, err := repo.ListByRoles(ctx, []entity.Role{entity.RoleManager, entity.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, approvers, 2)

	require.NoError(t, repo.UpdateRole(ctx, "u-1", entity.RoleAdmin))
	promoted, err := repo.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, promoted.Role)

	assert.ErrorIs(t, repo.UpdateRole(ctx, "u-missing", entity.RoleAdmin), entity.ErrNotFound)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCatalogRepositories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	categories, err := NewCategoryRepository(db, zap.NewNop()).List(ctx, true)
	require.NoError(t, err)
	require.Len(t, categories, 9)
	assert.Equal(t, "Meals", categories[0].Name)
	assert.Equal(t, "#10b981", categories[0].Color)
	assert.Equal(t, "Other", categories[8].Name)

	rules, err := NewRuleRepository(db, zap.NewNop()).List(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "Auto-categorize Uber/Lyft", rules[0].Name)
	assert.Equal(t, entity.OperatorRegex, rules[0].Conditions[0].Operator)
	assert.Equal(t, entity.ActionAddFlag, rules[1].Actions[0].Type)
	assert.Equal(t, "large_meal", rules[1].Actions[0].Value)
}
