package workflow

import (
	"fmt"

	"github.com/garyjia/expense-desk/internal/domain/entity"
	domainwf "github.com/garyjia/expense-desk/internal/domain/workflow"
)

// DefaultApproverRoles hold approval authority unless configured otherwise
var DefaultApproverRoles = []entity.Role{entity.RoleAdmin, entity.RoleManager, entity.RoleFinanceAdmin}

// RolePolicy authorizes owner actions by identity and approver actions by role
type RolePolicy struct {
	approvers map[entity.Role]bool
}

// NewRolePolicy builds a policy granting approval authority to the given roles
func NewRolePolicy(approverRoles []entity.Role) *RolePolicy {
	if len(approverRoles) == 0 {
		approverRoles = DefaultApproverRoles
	}
	p := &RolePolicy{approvers: make(map[entity.Role]bool, len(approverRoles))}
	for _, r := range approverRoles {
		p.approvers[r] = true
	}
	return p
}

// IsApprover reports whether the role holds approval authority
func (p *RolePolicy) IsApprover(role entity.Role) bool {
	return p.approvers[role]
}

// CanRead reports whether the actor may see the expense
func (p *RolePolicy) CanRead(actor entity.Identity, expense *entity.Expense) bool {
	return expense.UserID == actor.UserID || p.IsApprover(actor.Role)
}

// Authorize implements Policy
func (p *RolePolicy) Authorize(actor entity.Identity, expense *entity.Expense, trigger domainwf.Trigger) error {
	if actor.UserID == "" {
		return entity.ErrUnauthenticated
	}

	switch trigger {
	case domainwf.TriggerSubmit, domainwf.TriggerDelete:
		if expense.UserID != actor.UserID {
			return fmt.Errorf("only the owner may %s expense %s: %w", trigger, expense.ID, entity.ErrForbidden)
		}
	case domainwf.TriggerApprove, domainwf.TriggerReject:
		if !p.IsApprover(actor.Role) {
			return fmt.Errorf("role %q has no approval authority: %w", actor.Role, entity.ErrForbidden)
		}
	default:
		return fmt.Errorf("unknown trigger %s: %w", trigger, entity.ErrValidation)
	}
	return nil
}

var _ Policy = (*RolePolicy)(nil)
