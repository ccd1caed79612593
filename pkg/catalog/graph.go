package catalog

import (
	"github.com/paisatax/taxgraph/pkg/domain"
)

// Graph is an immutable, validated snapshot of the registered nodes.
type Graph struct {
	version uint64

	defs         map[string]domain.NodeDefinition
	registration []string       // IDs in registration order
	seq          map[string]int // ID -> registration sequence

	dependents map[string][]string // node -> nodes that read it, by registration order
	order      []string            // global topological order
	position   map[string]int      // ID -> index in order
}

func emptyGraph() *Graph {
	return &Graph{
		defs:       map[string]domain.NodeDefinition{},
		seq:        map[string]int{},
		dependents: map[string][]string{},
		position:   map[string]int{},
	}
}

// Version increases with every successful registration batch.
func (g *Graph) Version() uint64 { return g.version }

// Len returns the number of registered nodes.
func (g *Graph) Len() int { return len(g.registration) }

// Node returns the definition of id.
func (g *Graph) Node(id string) (domain.NodeDefinition, bool) {
	def, ok := g.defs[id]
	return def, ok
}

// Has reports whether id is registered.
func (g *Graph) Has(id string) bool {
	_, ok := g.defs[id]
	return ok
}

// Nodes returns every definition in registration order.
func (g *Graph) Nodes() []domain.NodeDefinition {
	out := make([]domain.NodeDefinition, 0, len(g.registration))
	for _, id := range g.registration {
		out = append(out, g.defs[id])
	}
	return out
}

// Order returns a copy of the global topological order.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// Position returns the index of id in the topological order, or -1.
func (g *Graph) Position(id string) int {
	if p, ok := g.position[id]; ok {
		return p
	}
	return -1
}

// Dependents returns the nodes that declare id as a dependency.
// The returned slice must not be modified.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// Materialize returns, in topological order, the IDs of the nodes that exist
// for the given session parameters.
func (g *Graph) Materialize(params domain.SessionParams) []string {
	out := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if g.defs[id].Scope.Materialized(params) {
			out = append(out, id)
		}
	}
	return out
}
