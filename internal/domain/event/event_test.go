package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"created", TypeExpenseCreated, true},
		{"submitted", TypeExpenseSubmitted, true},
		{"approved", TypeExpenseApproved, true},
		{"rejected", TypeExpenseRejected, true},
		{"deleted", TypeExpenseDeleted, true},
		{"promoted", TypeProfilePromoted, true},
		{"unknown", Type("unknown.type"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(TypeExpenseApproved, "exp-1", "user-9", map[string]interface{}{
		"merchant": "Starbucks",
	})

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Type != TypeExpenseApproved {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeExpenseApproved)
	}
	if event.SubjectID != "exp-1" {
		t.Errorf("Event SubjectID = %v, want exp-1", event.SubjectID)
	}
	if event.ActorID != "user-9" {
		t.Errorf("Event ActorID = %v, want user-9", event.ActorID)
	}
	if event.GetPayloadString("merchant") != "Starbucks" {
		t.Errorf("Event Payload[merchant] = %v", event.Payload["merchant"])
	}
	if event.CorrelationID == "" {
		t.Error("Event CorrelationID should not be empty")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeExpenseRejected, "exp-1", "", map[string]interface{}{"key1": "value1"})
	modified := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.GetPayloadString("key1") != "value1" || modified.GetPayloadString("key2") != "value2" {
		t.Errorf("Modified payload = %v", modified.Payload)
	}
	if modified.ID != original.ID || modified.CorrelationID != original.CorrelationID {
		t.Error("Modified event should keep ID and CorrelationID")
	}
}

func TestEvent_GetPayloadBool(t *testing.T) {
	event := NewEvent(TypeExpenseCreated, "exp-1", "", map[string]interface{}{
		"reimbursable": true,
		"string":       "yes",
	})

	if !event.GetPayloadBool("reimbursable") {
		t.Error("GetPayloadBool(reimbursable) = false, want true")
	}
	if event.GetPayloadBool("string") {
		t.Error("GetPayloadBool(string) = true, want false")
	}
	if event.GetPayloadBool("missing") {
		t.Error("GetPayloadBool(missing) = true, want false")
	}
}

func TestEvent_CorrelationChain(t *testing.T) {
	event1 := NewEvent(TypeExpenseCreated, "exp-1", "", nil)
	event2 := NewEventWithCorrelation(TypeExpenseSubmitted, "exp-1", "", nil, event1.CorrelationID)

	if event2.CorrelationID != event1.CorrelationID {
		t.Error("Event2 should have same correlation ID")
	}
	if event1.ID == event2.ID {
		t.Error("Events should have unique IDs even with same correlation ID")
	}
}
