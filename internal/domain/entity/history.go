package entity

import "time"

// HistoryItem is one append-only entry of an expense's audit trail
type HistoryItem struct {
	ID             int64     `json:"id"`
	ExpenseID      string    `json:"expense_id"`
	ActorID        string    `json:"actor_id"`
	Action         string    `json:"action"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	NewStatus      Status    `json:"new_status"`
	Note           string    `json:"note,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
