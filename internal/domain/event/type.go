package event

// Type identifies the type of domain event
type Type string

const (
	TypeExpenseCreated   Type = "expense.created"
	TypeExpenseSubmitted Type = "expense.submitted"
	TypeExpenseApproved  Type = "expense.approved"
	TypeExpenseRejected  Type = "expense.rejected"
	TypeExpenseDeleted   Type = "expense.deleted"
	TypeProfilePromoted  Type = "profile.promoted"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeExpenseCreated,
		TypeExpenseSubmitted,
		TypeExpenseApproved,
		TypeExpenseRejected,
		TypeExpenseDeleted,
		TypeProfilePromoted:
		return true
	default:
		return false
	}
}
