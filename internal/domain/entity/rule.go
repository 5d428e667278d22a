package entity

// RuleOperator compares an expense field against a condition value
type RuleOperator string

const (
	OperatorEquals      RuleOperator = "equals"
	OperatorContains    RuleOperator = "contains"
	OperatorStartsWith  RuleOperator = "starts_with"
	OperatorEndsWith    RuleOperator = "ends_with"
	OperatorGreaterThan RuleOperator = "greater_than"
	OperatorLessThan    RuleOperator = "less_than"
	OperatorRegex       RuleOperator = "regex"
)

// RuleActionType is the effect of a matching rule
type RuleActionType string

const (
	ActionSetCategory     RuleActionType = "set_category"
	ActionSetReimbursable RuleActionType = "set_reimbursable"
	ActionAssignTo        RuleActionType = "assign_to"
	ActionAddFlag         RuleActionType = "add_flag"
	ActionRequireApproval RuleActionType = "require_approval"
)

// RuleCondition is a field/operator/value triple
type RuleCondition struct {
	Field    string       `json:"field"`
	Operator RuleOperator `json:"operator"`
	Value    string       `json:"value"`
}

// RuleAction is the result applied when all conditions hold
type RuleAction struct {
	Type  RuleActionType `json:"type"`
	Value string         `json:"value"`
}

// Rule is a declarative automation definition. Rules are stored and listed but never evaluated.
type Rule struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Conditions  []RuleCondition `json:"conditions"`
	Actions     []RuleAction    `json:"actions"`
	Priority    int             `json:"priority"`
	Enabled     bool            `json:"enabled"`
}
