package remote

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// Wire rows as served by the backend. Each row is validated before it is
// converted into an entity, so controllers never see a malformed record.

type moneyRow struct {
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency" validate:"required,len=3"`
}

type submitterRow struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type expenseRow struct {
	ID              string        `json:"id" validate:"required"`
	UserID          string        `json:"user_id" validate:"required"`
	Amount          moneyRow      `json:"amount"`
	Category        *string       `json:"category"`
	Merchant        string        `json:"merchant" validate:"required"`
	Description     *string       `json:"description"`
	Tags            []string      `json:"tags"`
	ExpenseDate     time.Time     `json:"expense_date" validate:"required"`
	ReceiptURL      *string       `json:"receipt_url"`
	Source          string        `json:"source" validate:"required,oneof=email sms receipt bank_statement manual api"`
	Confidence      string        `json:"confidence" validate:"required,oneof=high medium low"`
	Reimbursable    bool          `json:"reimbursable"`
	PolicyFlags     []string      `json:"policy_flags"`
	Duplicates      []string      `json:"duplicates"`
	Status          string        `json:"status" validate:"required,oneof=draft pending submitted approved rejected reimbursed"`
	SubmittedAt     *time.Time    `json:"submitted_at"`
	ApprovedAt      *time.Time    `json:"approved_at"`
	ApprovedBy      *string       `json:"approved_by"`
	RejectedAt      *time.Time    `json:"rejected_at"`
	RejectionReason *string       `json:"rejection_reason"`
	CreatedAt       time.Time     `json:"created_at" validate:"required"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Submitter       *submitterRow `json:"profiles"`
}

type profileRow struct {
	ID        string    `json:"id" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role" validate:"required,oneof=employee manager finance_admin observer admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type categoryRow struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Color    string  `json:"color"`
	Active   bool    `json:"active"`
	ParentID *string `json:"parent_id"`
}

type conditionRow struct {
	Field    string `json:"field" validate:"required"`
	Operator string `json:"operator" validate:"required,oneof=equals contains starts_with ends_with greater_than less_than regex"`
	Value    string `json:"value"`
}

type actionRow struct {
	Type  string `json:"type" validate:"required,oneof=set_category set_reimbursable assign_to add_flag require_approval"`
	Value string `json:"value"`
}

type ruleRow struct {
	ID          string         `json:"id" validate:"required"`
	Name        string         `json:"name" validate:"required"`
	Description *string        `json:"description"`
	Conditions  []conditionRow `json:"conditions" validate:"dive"`
	Actions     []actionRow    `json:"actions" validate:"dive"`
	Priority    int            `json:"priority"`
	Enabled     bool           `json:"enabled"`
}

type historyRow struct {
	ID             int64     `json:"id"`
	ExpenseID      string    `json:"expense_id" validate:"required"`
	ActorID        string    `json:"actor_id"`
	Action         string    `json:"action" validate:"required"`
	PreviousStatus string    `json:"previous_status" validate:"omitempty,oneof=draft pending submitted approved rejected reimbursed"`
	NewStatus      string    `json:"new_status" validate:"required,oneof=draft pending submitted approved rejected reimbursed"`
	Note           string    `json:"note"`
	Timestamp      time.Time `json:"timestamp" validate:"required"`
}

type sessionRow struct {
	AccessToken string      `json:"access_token" validate:"required"`
	User        *profileRow `json:"user" validate:"required"`
}

// schema validates decoded rows
type schema struct {
	validate *validator.Validate
}

func newSchema() *schema {
	return &schema{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (s *schema) check(kind string, row interface{}) error {
	if err := s.validate.Struct(row); err != nil {
		return fmt.Errorf("%w: %s: %v", port.ErrSchema, kind, err)
	}
	return nil
}

func (s *schema) expense(row *expenseRow) (*entity.Expense, error) {
	if err := s.check("expense", row); err != nil {
		return nil, err
	}
	status, err := entity.ParseStatus(row.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrSchema, err)
	}

	e := &entity.Expense{
		ID:              row.ID,
		UserID:          row.UserID,
		Amount:          entity.NewMoney(row.Amount.Value, row.Amount.Currency),
		Category:        row.Category,
		Merchant:        row.Merchant,
		Description:     row.Description,
		Tags:            row.Tags,
		ExpenseDate:     row.ExpenseDate,
		ReceiptURL:      row.ReceiptURL,
		Source:          entity.Source(row.Source),
		Confidence:      entity.Confidence(row.Confidence),
		Reimbursable:    row.Reimbursable,
		PolicyFlags:     row.PolicyFlags,
		Duplicates:      row.Duplicates,
		Status:          status,
		SubmittedAt:     row.SubmittedAt,
		ApprovedAt:      row.ApprovedAt,
		ApprovedBy:      row.ApprovedBy,
		RejectedAt:      row.RejectedAt,
		RejectionReason: row.RejectionReason,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.Submitter != nil {
		e.Submitter = &entity.ProfileSummary{FullName: row.Submitter.FullName, Email: row.Submitter.Email}
	}
	if err := e.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrSchema, err)
	}
	return e, nil
}

func (s *schema) profile(row *profileRow) (*entity.Profile, error) {
	if err := s.check("profile", row); err != nil {
		return nil, err
	}
	return &entity.Profile{
		ID:        row.ID,
		Email:     row.Email,
		FullName:  row.FullName,
		Role:      entity.Role(row.Role),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (s *schema) category(row *categoryRow) (*entity.Category, error) {
	if err := s.check("category", row); err != nil {
		return nil, err
	}
	return &entity.Category{
		ID:       row.ID,
		Name:     row.Name,
		Color:    row.Color,
		Active:   row.Active,
		ParentID: row.ParentID,
	}, nil
}

func (s *schema) rule(row *ruleRow) (*entity.Rule, error) {
	if err := s.check("rule", row); err != nil {
		return nil, err
	}
	r := &entity.Rule{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Priority:    row.Priority,
		Enabled:     row.Enabled,
		Conditions:  make([]entity.RuleCondition, 0, len(row.Conditions)),
		Actions:     make([]entity.RuleAction, 0, len(row.Actions)),
	}
	for _, c := range row.Conditions {
		r.Conditions = append(r.Conditions, entity.RuleCondition{Field: c.Field, Operator: entity.RuleOperator(c.Operator), Value: c.Value})
	}
	for _, a := range row.Actions {
		r.Actions = append(r.Actions, entity.RuleAction{Type: entity.RuleActionType(a.Type), Value: a.Value})
	}
	return r, nil
}

func (s *schema) history(row *historyRow) (*entity.HistoryItem, error) {
	if err := s.check("history", row); err != nil {
		return nil, err
	}
	item := &entity.HistoryItem{
		ID:        row.ID,
		ExpenseID: row.ExpenseID,
		ActorID:   row.ActorID,
		Action:    row.Action,
		Note:      row.Note,
		Timestamp: row.Timestamp,
	}
	item.NewStatus, _ = entity.ParseStatus(row.NewStatus)
	if row.PreviousStatus != "" {
		item.PreviousStatus, _ = entity.ParseStatus(row.PreviousStatus)
	}
	return item, nil
}

// convertAll validates and converts a decoded list, failing on the first bad row
func convertAll[R any, E any](rows []R, convert func(*R) (E, error)) ([]E, error) {
	out := make([]E, 0, len(rows))
	for i := range rows {
		e, err := convert(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
