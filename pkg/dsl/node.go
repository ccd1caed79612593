package dsl

import "github.com/paisatax/taxgraph/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node definition.
type NodeBuilder struct {
	def domain.NodeDefinition
}

// Input starts a standalone input definition.
func Input(id string) *NodeBuilder {
	return &NodeBuilder{def: domain.NodeDefinition{ID: id, Kind: domain.KindInput}}
}

// Computed starts a standalone computed definition.
func Computed(id string, deps ...string) *NodeBuilder {
	return &NodeBuilder{def: domain.NodeDefinition{ID: id, Kind: domain.KindComputed, Dependencies: deps}}
}

// Sum starts a standalone computed definition adding up deps.
func Sum(id string, deps ...string) *NodeBuilder {
	return Computed(id, deps...).Number().Compute(SumOf(deps...))
}

// Describe sets the human-readable description.
func (n *NodeBuilder) Describe(text string) *NodeBuilder {
	n.def.Description = text
	return n
}

// DependsOn appends dependencies.
func (n *NodeBuilder) DependsOn(deps ...string) *NodeBuilder {
	n.def.Dependencies = append(n.def.Dependencies, deps...)
	return n
}

// Compute sets the compute rule.
func (n *NodeBuilder) Compute(fn domain.ComputeFunc) *NodeBuilder {
	n.def.Compute = fn
	return n
}

// When sets the applicability predicate. A node whose predicate is false
// is Skipped.
func (n *NodeBuilder) When(fn domain.ApplicabilityFunc) *NodeBuilder {
	n.def.Applicable = fn
	return n
}

// Number constrains the value to a finite number.
func (n *NodeBuilder) Number() *NodeBuilder {
	n.def.Constraints.Type = domain.TypeNumber
	return n
}

// Integer constrains the value to a whole number.
func (n *NodeBuilder) Integer() *NodeBuilder {
	n.def.Constraints.Type = domain.TypeInteger
	return n
}

// Text constrains the value to a string.
func (n *NodeBuilder) Text() *NodeBuilder {
	n.def.Constraints.Type = domain.TypeText
	return n
}

// Boolean constrains the value to a bool.
func (n *NodeBuilder) Boolean() *NodeBuilder {
	n.def.Constraints.Type = domain.TypeBoolean
	return n
}

// NonNegative rejects values below zero.
func (n *NodeBuilder) NonNegative() *NodeBuilder {
	n.def.Constraints.NonNegative = true
	return n
}

// Min sets an inclusive lower bound.
func (n *NodeBuilder) Min(v float64) *NodeBuilder {
	n.def.Constraints.Min = &v
	return n
}

// Max sets an inclusive upper bound.
func (n *NodeBuilder) Max(v float64) *NodeBuilder {
	n.def.Constraints.Max = &v
	return n
}

// Default sets the initial value of an input node.
func (n *NodeBuilder) Default(v any) *NodeBuilder {
	n.def.Default = v
	return n
}

// SecondFilerOnly materializes the node only for sessions with a second filer.
func (n *NodeBuilder) SecondFilerOnly() *NodeBuilder {
	n.def.Scope.SecondFilerOnly = true
	return n
}

// FilingStatuses restricts the node to the given filing statuses.
func (n *NodeBuilder) FilingStatuses(statuses ...domain.FilingStatus) *NodeBuilder {
	n.def.Scope.FilingStatuses = append(n.def.Scope.FilingStatuses, statuses...)
	return n
}

// Years bounds the tax years in which the node exists (0 = unbounded).
func (n *NodeBuilder) Years(minYear, maxYear int) *NodeBuilder {
	n.def.Scope.MinYear = minYear
	n.def.Scope.MaxYear = maxYear
	return n
}

// Slot places the node at index of a repeatable family.
func (n *NodeBuilder) Slot(family string, index int) *NodeBuilder {
	n.def.Scope.Family = family
	n.def.Scope.Index = index
	return n
}

// Build returns the underlying definition. The dependency slice is copied
// so later builder calls do not leak into returned definitions.
func (n *NodeBuilder) Build() domain.NodeDefinition {
	def := n.def
	if def.Dependencies != nil {
		def.Dependencies = append([]string(nil), def.Dependencies...)
	}
	if def.Scope.FilingStatuses != nil {
		def.Scope.FilingStatuses = append([]domain.FilingStatus(nil), def.Scope.FilingStatuses...)
	}
	return def
}
