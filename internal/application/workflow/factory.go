package workflow

import (
	"context"
	"strings"

	domainwf "github.com/garyjia/expense-desk/internal/domain/workflow"
)

// BuildExpenseStateMachine starts a machine for the expense lifecycle.
// reason is the rejection reason guarding REJECT.
func BuildExpenseStateMachine(initialState domainwf.State, reason string) *domainwf.Machine {
	lc := domainwf.NewLifecycle()

	lc.From(domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StatePending).
		Permit(domainwf.TriggerDelete, domainwf.StateDeleted)

	lc.From(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		PermitIf(domainwf.TriggerReject, domainwf.StateRejected, "rejection reason is required", func(ctx context.Context) bool {
			return strings.TrimSpace(reason) != ""
		})

	// approved, rejected and reimbursed have no outgoing transitions

	return lc.Start(initialState)
}
