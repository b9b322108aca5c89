package policy

import "fmt"

// Overlay is the mutable key-path -> value map a SET action writes into.
type Overlay map[string]any

// TemplateBinding records an APPLY action's template reference for a
// satisfied rule; rendering itself is an external collaborator's concern.
type TemplateBinding struct {
	RuleName string
	Template string
}

// AssertOutcome is the pass/fail result of re-evaluating an ASSERT action.
type AssertOutcome struct {
	Field    FieldRef
	Expected Value
	Actual   any
	Passed   bool
}

// Execute runs action on a Satisfied rule. ASSERT re-evaluates equality
// against ctx and yields pass/fail. SET writes into overlay keyed by the
// field's dotted path. APPLY records a template binding.
func Execute(rule *Rule, ctx *EvaluationContext, overlay Overlay) (*AssertOutcome, *TemplateBinding, error) {
	switch rule.Action.Kind {
	case ActionAssert:
		actual, err := ctx.Resolve(rule.Action.Field)
		if err != nil && !IsMissing(err) {
			return nil, nil, err
		}
		return &AssertOutcome{
			Field:    rule.Action.Field,
			Expected: rule.Action.Value,
			Actual:   actual,
			Passed:   valuesEqual(actual, rule.Action.Value),
		}, nil, nil
	case ActionSet:
		overlay[rule.Action.Field.String()] = literalToAny(rule.Action.Value)
		return nil, nil, nil
	case ActionApply:
		return nil, &TemplateBinding{RuleName: rule.Name, Template: rule.Action.Template}, nil
	default:
		return nil, nil, fmt.Errorf("unknown action kind %q", rule.Action.Kind)
	}
}

func literalToAny(v Value) any {
	switch v.Kind {
	case ValueString, ValueRegex:
		return v.Str
	case ValueNumber:
		return v.Num
	case ValueBool:
		return v.Bool
	default:
		return nil
	}
}
