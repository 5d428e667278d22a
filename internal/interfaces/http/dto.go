package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-desk/internal/domain/entity"
	domainwf "github.com/garyjia/expense-desk/internal/domain/workflow"
)

// SignUpRequest is the body of POST /auth/v1/signup
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}

// SignInRequest is the body of POST /auth/v1/token
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ListExpensesQuery holds the query parameters of GET /rest/v1/expenses
type ListExpensesQuery struct {
	UserID    string `form:"user_id"`
	Status    string `form:"status"`
	Order     string `form:"order" binding:"omitempty,oneof=created_at submitted_at expense_date"`
	Submitter bool   `form:"submitter"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// CreateExpenseRequest is the body of POST /rest/v1/expenses
type CreateExpenseRequest struct {
	Merchant     string          `json:"merchant" binding:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency" binding:"omitempty,len=3"`
	Category     *string         `json:"category"`
	Description  *string         `json:"description"`
	Tags         []string        `json:"tags"`
	ExpenseDate  string          `json:"expense_date" binding:"required"`
	Reimbursable *bool           `json:"reimbursable"`
	ReceiptURL   *string         `json:"receipt_url"`
	Status       string          `json:"status"`
	Source       string          `json:"source"`
	Confidence   string          `json:"confidence"`
	PolicyFlags  []string        `json:"policy_flags"`
}

// toNewExpense converts the request into the insert payload
func (r CreateExpenseRequest) toNewExpense() (entity.NewExpense, error) {
	date, err := parseExpenseDate(r.ExpenseDate)
	if err != nil {
		return entity.NewExpense{}, err
	}

	input := entity.NewExpense{
		Merchant:     r.Merchant,
		Amount:       entity.NewMoney(r.Amount, r.Currency),
		Category:     r.Category,
		Description:  r.Description,
		Tags:         r.Tags,
		ExpenseDate:  date,
		Reimbursable: r.Reimbursable == nil || *r.Reimbursable,
		ReceiptURL:   r.ReceiptURL,
		PolicyFlags:  r.PolicyFlags,
	}
	if r.Status != "" {
		if input.Status, err = entity.ParseStatus(r.Status); err != nil {
			return input, err
		}
	}
	if r.Source != "" {
		if input.Source, err = entity.ParseSource(r.Source); err != nil {
			return input, err
		}
	}
	if r.Confidence != "" {
		if input.Confidence, err = entity.ParseConfidence(r.Confidence); err != nil {
			return input, err
		}
	}
	return input, nil
}

// parseExpenseDate accepts a calendar date or a full RFC 3339 timestamp
func parseExpenseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, entity.Invalidf("expense_date %q is not a date", raw)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// CaptureRequest is the JSON body of POST /rest/v1/capture. Content is base64.
type CaptureRequest struct {
	Source   string `json:"source" binding:"required"`
	Text     string `json:"text"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Content  []byte `json:"content"`
}

// ExpenseIDRequest is the body of the submit and approve procedures
type ExpenseIDRequest struct {
	ExpenseID string `json:"expense_id" binding:"required"`
}

// RejectRequest is the body of the reject procedure
type RejectRequest struct {
	ExpenseID string `json:"expense_id" binding:"required"`
	Reason    string `json:"reason"`
}

// PromoteRequest is the body of the promotion procedure
type PromoteRequest struct {
	UserEmail string `json:"user_email" binding:"required"`
}

// DeletedResponse confirms a removed row
type DeletedResponse struct {
	ID string `json:"id"`
}

// ActionsResponse lists what the caller may do with an expense now
type ActionsResponse struct {
	ID      string             `json:"id"`
	Actions []domainwf.Trigger `json:"actions"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}
