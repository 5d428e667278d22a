package entity

import (
	"strings"
	"time"

	"github.com/garyjia/expense-desk/pkg/utils"
)

// Expense is a single spend record owned by the identity that created it
type Expense struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Amount          Money      `json:"amount"`
	Category        *string    `json:"category"`
	Merchant        string     `json:"merchant"`
	Description     *string    `json:"description"`
	Tags            []string   `json:"tags"`
	ExpenseDate     time.Time  `json:"expense_date"`
	ReceiptURL      *string    `json:"receipt_url"`
	Source          Source     `json:"source"`
	Confidence      Confidence `json:"confidence"`
	Reimbursable    bool       `json:"reimbursable"`
	PolicyFlags     []string   `json:"policy_flags"`
	Duplicates      []string   `json:"duplicates"`
	Status          Status     `json:"status"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	ApprovedAt      *time.Time `json:"approved_at"`
	ApprovedBy      *string    `json:"approved_by"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectionReason *string    `json:"rejection_reason"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Submitter is populated only by reads that join the owner's profile
	Submitter *ProfileSummary `json:"profiles,omitempty"`
	History   []HistoryItem   `json:"history,omitempty"`
}

// ProfileSummary is the submitter subset joined into approver reads
type ProfileSummary struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// CategoryLabel returns the category name, or "Other" when none is set
func (e *Expense) CategoryLabel() string {
	if e.Category == nil || strings.TrimSpace(*e.Category) == "" {
		return OtherCategory
	}
	return *e.Category
}

// IsDeletable returns true only while the expense is a draft
func (e *Expense) IsDeletable() bool {
	return e.Status == StatusDraft
}

// CheckInvariants validates the status/timestamp relationship of the record
func (e *Expense) CheckInvariants() error {
	if !e.Status.IsValid() {
		return invalidf("expense %s has invalid status %q", e.ID, e.Status)
	}
	if e.ApprovedAt != nil && e.RejectedAt != nil {
		return invalidf("expense %s is both approved and rejected", e.ID)
	}
	switch e.Status {
	case StatusDraft:
		if e.SubmittedAt != nil || e.ApprovedAt != nil || e.RejectedAt != nil {
			return invalidf("draft expense %s carries lifecycle timestamps", e.ID)
		}
	case StatusPending:
		if e.ApprovedAt != nil || e.RejectedAt != nil {
			return invalidf("pending expense %s carries a decision timestamp", e.ID)
		}
	case StatusApproved:
		if e.RejectedAt != nil {
			return invalidf("approved expense %s carries rejected_at", e.ID)
		}
	case StatusRejected:
		if e.ApprovedAt != nil {
			return invalidf("rejected expense %s carries approved_at", e.ID)
		}
	}
	return nil
}

// NewExpense is the payload of a direct expense insert
type NewExpense struct {
	Merchant     string
	Amount       Money
	Category     *string
	Description  *string
	Tags         []string
	ExpenseDate  time.Time
	Reimbursable bool
	ReceiptURL   *string
	Status       Status
	Source       Source
	Confidence   Confidence
	PolicyFlags  []string
	Duplicates   []string
}

// Normalize trims text fields and turns blank optional values into nil
func (n *NewExpense) Normalize() {
	n.Merchant = strings.TrimSpace(n.Merchant)
	n.Category = blankToNil(n.Category)
	n.Description = blankToNil(n.Description)
	n.ReceiptURL = blankToNil(n.ReceiptURL)
	if n.Amount.Currency == "" {
		n.Amount.Currency = DefaultCurrency
	}
	n.Amount.Currency = strings.ToUpper(n.Amount.Currency)
	if n.Source == "" {
		n.Source = SourceManual
	}
	if n.Confidence == "" {
		n.Confidence = ConfidenceHigh
	}
	if n.Status == "" {
		n.Status = StatusDraft
	}
}

// Validate checks the insert payload. Only draft and pending may be inserted.
func (n *NewExpense) Validate() error {
	if n.Merchant == "" {
		return invalidf("merchant is required")
	}
	if !n.Amount.IsPositive() {
		return invalidf("amount must be greater than zero")
	}
	if err := utils.ValidateCurrency(n.Amount.Currency); err != nil {
		return invalidf("currency must be a three-letter ISO code, got %q", n.Amount.Currency)
	}
	if n.ExpenseDate.IsZero() {
		return invalidf("expense_date is required")
	}
	if n.Status != StatusDraft && n.Status != StatusPending {
		return invalidf("new expenses must be draft or pending, got %q", n.Status)
	}
	if !n.Source.IsValid() {
		return invalidf("unknown source %q", n.Source)
	}
	if !n.Confidence.IsValid() {
		return invalidf("unknown confidence %q", n.Confidence)
	}
	return nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
