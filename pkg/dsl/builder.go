package dsl

import (
	"github.com/paisatax/taxgraph/pkg/domain"
)

// Registrar is anything that accepts a batch of definitions, such as
// *taxgraph.Engine or *catalog.Catalog.
type Registrar interface {
	Register(defs ...domain.NodeDefinition) error
}

// Builder collects node builders in declaration order.
type Builder struct {
	nodes map[string]*NodeBuilder
	order []string
}

// New creates a new catalog builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add returns the builder for id, creating an empty one if needed.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{def: domain.NodeDefinition{ID: id}}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Input declares an input node.
func (b *Builder) Input(id string) *NodeBuilder {
	nb := b.Add(id)
	nb.def.Kind = domain.KindInput
	return nb
}

// Computed declares a computed node with the given dependencies.
func (b *Builder) Computed(id string, deps ...string) *NodeBuilder {
	nb := b.Add(id)
	nb.def.Kind = domain.KindComputed
	nb.def.Dependencies = append(nb.def.Dependencies, deps...)
	return nb
}

// Sum declares a computed node adding up deps.
func (b *Builder) Sum(id string, deps ...string) *NodeBuilder {
	return b.Computed(id, deps...).Number().Compute(SumOf(deps...))
}

// Len returns the number of declared nodes.
func (b *Builder) Len() int {
	return len(b.order)
}

// Build returns the definitions in declaration order.
func (b *Builder) Build() []domain.NodeDefinition {
	defs := make([]domain.NodeDefinition, 0, len(b.order))
	for _, id := range b.order {
		defs = append(defs, b.nodes[id].Build())
	}
	return defs
}

// RegisterTo registers every declared node as one batch.
func (b *Builder) RegisterTo(r Registrar) error {
	return r.Register(b.Build()...)
}
