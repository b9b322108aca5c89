// Package policy implements the WHEN/THEN declarative rule language:
// grammar, parser, and an evaluator that walks a JSON-shaped context.
package policy

// Priority orders rule evaluation within a batch.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// priorityRank gives each Priority a descending sort weight.
var priorityRank = map[Priority]int{
	PriorityCritical: 3,
	PriorityHigh:     2,
	PriorityMedium:   1,
	PriorityLow:      0,
}

// Rank returns p's sort weight, treating an unknown priority as Low.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return priorityRank[PriorityLow]
}

// Op is a comparison or membership operator in an atom.
type Op string

const (
	OpEq       Op = "=="
	OpNeq      Op = "!="
	OpLt       Op = "<"
	OpLte      Op = "<="
	OpGt       Op = ">"
	OpGte      Op = ">="
	OpContains Op = "CONTAINS"
	OpMatches  Op = "MATCHES"
)

// ValueKind tags the literal kind carried by a Value.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueNumber
	ValueBool
	ValueRegex
)

// Value is a literal appearing on the right-hand side of an atom or in a
// SET/ASSERT action.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

// FieldRef is a dotted field path, e.g. "node.vendor" or "derived.vlan_id".
type FieldRef struct {
	Path []string
}

// String renders the dotted path.
func (f FieldRef) String() string {
	s := ""
	for i, p := range f.Path {
		if i > 0 {
			s += "."
		}
		s += p
	}
	return s
}

// Cond is a boolean expression tree: Atom, Not, And, Or.
type Cond interface {
	isCond()
}

// Atom is a leaf condition: a comparison, an IS NULL/NOT NULL check.
type Atom struct {
	Field    FieldRef
	Op       Op
	Value    Value
	IsNull   bool
	NotNull  bool
}

func (Atom) isCond() {}

// Not negates its inner condition.
type Not struct{ Inner Cond }

func (Not) isCond() {}

// And is a left-to-right short-circuiting conjunction.
type And struct{ Left, Right Cond }

func (And) isCond() {}

// Or is a left-to-right short-circuiting disjunction.
type Or struct{ Left, Right Cond }

func (Or) isCond() {}

// ActionKind names what an action does on a Satisfied rule.
type ActionKind string

const (
	ActionAssert ActionKind = "assert"
	ActionSet    ActionKind = "set"
	ActionApply  ActionKind = "apply"
)

// Action is THEN's right-hand side.
type Action struct {
	Kind     ActionKind
	Field    FieldRef // ASSERT, SET
	Value    Value    // ASSERT, SET
	Template string   // APPLY
}

// Rule is one parsed WHEN/THEN statement, optionally tagged with a priority
// and the source line it came from (for diagnostics).
type Rule struct {
	Name     string
	Priority Priority
	Cond     Cond
	Action   Action
	Line     int
	Source   string
}
