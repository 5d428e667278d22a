package workflow

import "github.com/garyjia/expense-desk/internal/domain/entity"

// State represents a lifecycle state of an expense
type State string

const (
	StateDraft      State = "draft"
	StatePending    State = "pending"
	StateApproved   State = "approved"
	StateRejected   State = "rejected"
	StateReimbursed State = "reimbursed"

	// StateDeleted is the target of DELETE. It has no stored status; the row is removed.
	StateDeleted State = "deleted"
)

var validStates = map[State]bool{
	StateDraft:      true,
	StatePending:    true,
	StateApproved:   true,
	StateRejected:   true,
	StateReimbursed: true,
	StateDeleted:    true,
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// IsTerminal returns true if the state is a terminal state
func (s State) IsTerminal() bool {
	switch s {
	case StateApproved, StateRejected, StateReimbursed, StateDeleted:
		return true
	}
	return false
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// FromStatus maps an expense status to its workflow state
func FromStatus(status entity.Status) State {
	return State(status)
}

// Status maps the state back to an expense status
func (s State) Status() entity.Status {
	return entity.Status(s)
}
