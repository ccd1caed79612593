package domain

// NodeKind distinguishes externally supplied values from derived ones.
type NodeKind string

const (
	// KindInput nodes receive their value from events (or their default).
	KindInput NodeKind = "input"
	// KindComputed nodes derive their value from declared dependencies.
	KindComputed NodeKind = "computed"
)

// ValueType is the declared shape of a node value.
type ValueType string

const (
	TypeAny     ValueType = ""
	TypeNumber  ValueType = "number"
	TypeInteger ValueType = "integer"
	TypeText    ValueType = "text"
	TypeBoolean ValueType = "boolean"
)

// Constraints describes what values a node accepts.
// The zero value accepts anything.
type Constraints struct {
	Type        ValueType `json:"type,omitempty" yaml:"type,omitempty"`
	NonNegative bool      `json:"non_negative,omitempty" yaml:"non_negative,omitempty"`
	Min         *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64  `json:"max,omitempty" yaml:"max,omitempty"`
}

// ComputeFunc derives a node value from its evaluation context.
// Returning ErrNotApplicable marks the node as skipped.
type ComputeFunc func(ctx EvalContext) (any, error)

// ApplicabilityFunc decides whether a node applies in the current context.
type ApplicabilityFunc func(ctx EvalContext) bool

// EvalContext is the read-only capability handed to compute and
// applicability rules. Only declared dependencies may be read.
type EvalContext interface {
	// Params returns the session parameters.
	Params() SessionParams
	// Value returns the current value of a dependency. The second result is
	// false when the dependency is absent (skipped, not materialized, or nil).
	Value(id string) (any, bool)
	// Number returns the dependency as float64, or 0 when absent or non-numeric.
	Number(id string) float64
	// Bool returns the dependency as bool, or false when absent.
	Bool(id string) bool
	// Text returns the dependency as string, or "" when absent.
	Text(id string) string
}

// NodeDefinition is the immutable static definition of a graph node.
type NodeDefinition struct {
	ID          string
	Kind        NodeKind
	Description string

	// Dependencies lists the nodes read by Compute and Applicable.
	// Required (non-empty) for computed nodes, forbidden for inputs.
	Dependencies []string

	Compute    ComputeFunc
	Applicable ApplicabilityFunc

	Constraints Constraints

	// Default is the value of an input node that never received an event.
	Default any

	Scope Scope
}

// IsInput reports whether the node receives values from events.
func (d NodeDefinition) IsInput() bool { return d.Kind == KindInput }

// IsComputed reports whether the node derives its value.
func (d NodeDefinition) IsComputed() bool { return d.Kind == KindComputed }
