package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Machine tracks the state of one expense and applies triggers to it.
// A Machine is not safe for concurrent use.
type Machine struct {
	state State
	rules ruleTable
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// CanFire reports whether the current state declares the trigger.
// Guards are not evaluated.
func (m *Machine) CanFire(trigger Trigger) bool {
	return len(m.rules[m.state][trigger]) > 0
}

// Fire applies trigger. The first rule whose guard passes wins; on failure
// the state is unchanged.
func (m *Machine) Fire(ctx context.Context, trigger Trigger) error {
	rules := m.rules[m.state][trigger]
	if len(rules) == 0 {
		return fmt.Errorf("%w: %s is not allowed from %s", ErrInvalidTransition, trigger, m.state)
	}

	var refused []string
	for _, r := range rules {
		if r.guard == nil || r.guard(ctx) {
			m.state = r.to
			return nil
		}
		if r.reason != "" {
			refused = append(refused, r.reason)
		}
	}

	if len(refused) == 0 {
		return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.state)
	}
	return fmt.Errorf("%w: %s", ErrGuardFailed, strings.Join(refused, "; "))
}

// PermittedTriggers returns the triggers declared for the current state, sorted
func (m *Machine) PermittedTriggers() []Trigger {
	table := m.rules[m.state]
	triggers := make([]Trigger, 0, len(table))
	for trigger := range table {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
