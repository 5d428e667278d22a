package workflow

// Trigger represents an event that causes a state transition
type Trigger string

const (
	TriggerSubmit  Trigger = "SUBMIT"
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
	TriggerDelete  Trigger = "DELETE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
