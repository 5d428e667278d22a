package workflow

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when the current state does not accept a trigger
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrGuardFailed is returned when every guarded transition for a trigger refuses
	ErrGuardFailed = errors.New("guard condition failed")
)

// GuardFunc reports whether a guarded transition may be taken
type GuardFunc func(ctx context.Context) bool

// rule is one candidate transition for a trigger
type rule struct {
	to     State
	guard  GuardFunc
	reason string
}

type ruleTable map[State]map[Trigger][]rule

// Lifecycle declares which triggers move an expense between states.
// Machines started from it take a snapshot of the declared rules.
type Lifecycle struct {
	rules ruleTable
}

// NewLifecycle creates an empty lifecycle
func NewLifecycle() *Lifecycle {
	return &Lifecycle{rules: make(ruleTable)}
}

// Transitions declares the outgoing transitions of one state
type Transitions struct {
	from  State
	table map[Trigger][]rule
}

// From returns the transitions of state. It panics on an unknown state.
func (l *Lifecycle) From(state State) *Transitions {
	if !state.IsValid() {
		panic(fmt.Sprintf("workflow: unknown state %q", state))
	}
	table, ok := l.rules[state]
	if !ok {
		table = make(map[Trigger][]rule)
		l.rules[state] = table
	}
	return &Transitions{from: state, table: table}
}

// Permit lets trigger move the expense to state to
func (t *Transitions) Permit(trigger Trigger, to State) *Transitions {
	return t.add(trigger, rule{to: to})
}

// PermitIf lets trigger move the expense to state to while guard holds.
// reason describes the refusal when the guard fails.
func (t *Transitions) PermitIf(trigger Trigger, to State, reason string, guard GuardFunc) *Transitions {
	return t.add(trigger, rule{to: to, guard: guard, reason: reason})
}

func (t *Transitions) add(trigger Trigger, r rule) *Transitions {
	if !r.to.IsValid() {
		panic(fmt.Sprintf("workflow: unknown target state %q from %s", r.to, t.from))
	}
	t.table[trigger] = append(t.table[trigger], r)
	return t
}

// Start returns a machine in the initial state. It panics on an unknown state.
func (l *Lifecycle) Start(initial State) *Machine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("workflow: unknown initial state %q", initial))
	}

	snapshot := make(ruleTable, len(l.rules))
	for state, table := range l.rules {
		copied := make(map[Trigger][]rule, len(table))
		for trigger, rules := range table {
			copied[trigger] = append([]rule(nil), rules...)
		}
		snapshot[state] = copied
	}
	return &Machine{state: initial, rules: snapshot}
}
