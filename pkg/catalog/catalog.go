package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/paisatax/taxgraph/internal/logging"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/schema"
)

// Catalog is the registry of node definitions.
type Catalog struct {
	mu      sync.Mutex // serializes Register
	current atomic.Pointer[Graph]
	logger  *slog.Logger
}

// Option configures the Catalog.
type Option func(*Catalog)

// WithLogger configures a logger for registration events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.current.Store(emptyGraph())
	return c
}

// Graph returns the current immutable snapshot.
func (c *Catalog) Graph() *Graph {
	return c.current.Load()
}

// Register adds a batch of definitions. The batch is atomic: on error none
// of its nodes are registered and the previous snapshot stays current.
// Dependencies may reference nodes of earlier batches or of this batch.
func (c *Catalog) Register(defs ...domain.NodeDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	base := c.current.Load()
	next, err := build(base, defs)
	if err != nil {
		c.logger.Error("node registration rejected", "err", err, "batch_size", len(defs))
		return err
	}

	c.current.Store(next)
	c.logger.Debug("nodes registered",
		"batch_size", len(defs),
		"total_nodes", next.Len(),
		"graph_version", next.Version(),
	)
	return nil
}

// build validates defs against base and returns the combined snapshot.
func build(base *Graph, defs []domain.NodeDefinition) (*Graph, error) {
	batch := make(map[string]domain.NodeDefinition, len(defs))
	normalized := make([]domain.NodeDefinition, 0, len(defs))

	// 1. Per-definition checks
	for _, raw := range defs {
		def := normalize(raw)
		if err := checkDefinition(def); err != nil {
			return nil, err
		}
		if base.Has(def.ID) {
			return nil, &StructuralError{NodeID: def.ID, Err: domain.ErrDuplicateNode, Detail: "already registered"}
		}
		if _, dup := batch[def.ID]; dup {
			return nil, &StructuralError{NodeID: def.ID, Err: domain.ErrDuplicateNode, Detail: "defined twice in batch"}
		}
		batch[def.ID] = def
		normalized = append(normalized, def)
	}
	defs = normalized

	// 2. Every dependency must be known
	for _, def := range defs {
		for _, dep := range def.Dependencies {
			if !base.Has(dep) {
				if _, ok := batch[dep]; !ok {
					return nil, &StructuralError{NodeID: def.ID, Err: domain.ErrUnknownDependency, Detail: dep}
				}
			}
		}
	}

	// 3. Combine
	g := &Graph{
		version:      base.version + 1,
		defs:         make(map[string]domain.NodeDefinition, len(base.defs)+len(defs)),
		registration: make([]string, 0, len(base.registration)+len(defs)),
		seq:          make(map[string]int, len(base.seq)+len(defs)),
		dependents:   make(map[string][]string, len(base.dependents)+len(defs)),
		position:     make(map[string]int, len(base.position)+len(defs)),
	}
	for _, id := range base.registration {
		g.defs[id] = base.defs[id]
		g.seq[id] = base.seq[id]
		g.registration = append(g.registration, id)
	}
	for _, def := range defs {
		g.defs[def.ID] = def
		g.seq[def.ID] = len(g.registration)
		g.registration = append(g.registration, def.ID)
	}

	deps := make(map[string][]string, len(g.registration))
	for _, id := range g.registration {
		def := g.defs[id]
		deps[id] = def.Dependencies
		for _, dep := range def.Dependencies {
			g.dependents[dep] = append(g.dependents[dep], id)
		}
	}
	for id, ds := range g.dependents {
		sort.Slice(ds, func(i, j int) bool { return g.seq[ds[i]] < g.seq[ds[j]] })
		g.dependents[id] = ds
	}

	// 4. Full cycle check over the combined graph
	if cycle := findCycle(g.registration, deps); cycle != nil {
		return nil, &StructuralError{NodeID: cycle[0], Err: domain.ErrCycle, Path: cycle}
	}

	// 5. Global order
	g.order = topoSort(g.registration, g.seq, deps, g.dependents)
	if len(g.order) != len(g.registration) {
		// Unreachable once findCycle has passed.
		return nil, fmt.Errorf("%w: topological order incomplete (%d of %d nodes)", domain.ErrCycle, len(g.order), len(g.registration))
	}
	for i, id := range g.order {
		g.position[id] = i
	}
	return g, nil
}

// normalize copies the dependency list, dropping duplicates while keeping
// declaration order.
func normalize(def domain.NodeDefinition) domain.NodeDefinition {
	if len(def.Dependencies) == 0 {
		def.Dependencies = nil
		return def
	}
	seen := make(map[string]bool, len(def.Dependencies))
	deps := make([]string, 0, len(def.Dependencies))
	for _, dep := range def.Dependencies {
		if !seen[dep] {
			seen[dep] = true
			deps = append(deps, dep)
		}
	}
	def.Dependencies = deps
	return def
}

func checkDefinition(def domain.NodeDefinition) error {
	if def.ID == "" {
		return &StructuralError{Err: domain.ErrEmptyNodeID}
	}
	switch def.Kind {
	case domain.KindInput:
		if len(def.Dependencies) > 0 {
			return &StructuralError{NodeID: def.ID, Err: domain.ErrInputDependencies}
		}
	case domain.KindComputed:
		if def.Compute == nil {
			return &StructuralError{NodeID: def.ID, Err: domain.ErrMissingCompute}
		}
		if len(def.Dependencies) == 0 {
			return &StructuralError{NodeID: def.ID, Err: domain.ErrNoDependencies}
		}
	default:
		return &StructuralError{NodeID: def.ID, Err: domain.ErrInvalidKind, Detail: string(def.Kind)}
	}
	if err := schema.CheckDefinition(def); err != nil {
		return &StructuralError{NodeID: def.ID, Err: domain.ErrInvalidDefault, Detail: err.Error()}
	}
	return nil
}
