package entity

import "strings"

// Status is the lifecycle status of an expense
type Status string

const (
	StatusDraft      Status = "draft"
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusReimbursed Status = "reimbursed"
)

// statusSubmitted is how older rows and clients spell a pending expense
const statusSubmitted = "submitted"

var validStatuses = map[Status]bool{
	StatusDraft:      true,
	StatusPending:    true,
	StatusApproved:   true,
	StatusRejected:   true,
	StatusReimbursed: true,
}

// IsValid returns true if the status is one of the declared lifecycle statuses
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// ParseStatus parses a status, accepting "submitted" as an alias of pending
func ParseStatus(raw string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == statusSubmitted {
		return StatusPending, nil
	}
	s := Status(v)
	if !s.IsValid() {
		return "", invalidf("unknown expense status %q", raw)
	}
	return s, nil
}

// Source records how an expense was captured
type Source string

const (
	SourceEmail         Source = "email"
	SourceSMS           Source = "sms"
	SourceReceipt       Source = "receipt"
	SourceBankStatement Source = "bank_statement"
	SourceManual        Source = "manual"
	SourceAPI           Source = "api"
)

var validSources = map[Source]bool{
	SourceEmail:         true,
	SourceSMS:           true,
	SourceReceipt:       true,
	SourceBankStatement: true,
	SourceManual:        true,
	SourceAPI:           true,
}

// IsValid returns true if the source is a known capture channel
func (s Source) IsValid() bool {
	return validSources[s]
}

// ParseSource parses a capture source
func ParseSource(raw string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", invalidf("unknown expense source %q", raw)
	}
	return s, nil
}

// Confidence is the capture confidence of an expense
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// IsValid returns true if the confidence level is known
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// ParseConfidence parses a confidence level
func ParseConfidence(raw string) (Confidence, error) {
	c := Confidence(strings.ToLower(strings.TrimSpace(raw)))
	if !c.IsValid() {
		return "", invalidf("unknown confidence %q", raw)
	}
	return c, nil
}

// Role determines which actions an identity may perform
type Role string

const (
	RoleEmployee     Role = "employee"
	RoleManager      Role = "manager"
	RoleFinanceAdmin Role = "finance_admin"
	RoleObserver     Role = "observer"
	RoleAdmin        Role = "admin"
)

var validRoles = map[Role]bool{
	RoleEmployee:     true,
	RoleManager:      true,
	RoleFinanceAdmin: true,
	RoleObserver:     true,
	RoleAdmin:        true,
}

// IsValid returns true if the role is known
func (r Role) IsValid() bool {
	return validRoles[r]
}

// IsAdmin reports whether the role is exactly the admin role.
// Navigation and the admin management page use this narrow check.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// ParseRole parses a role
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !r.IsValid() {
		return "", invalidf("unknown role %q", raw)
	}
	return r, nil
}

// History action constants
const (
	ActionCreated   = "created"
	ActionSubmitted = "submitted"
	ActionApproved  = "approved"
	ActionRejected  = "rejected"
)

// OtherCategory labels expenses that carry no category
const OtherCategory = "Other"

// DefaultCurrency is used when a new expense omits its currency
const DefaultCurrency = "USD"
