package taxgraph

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/paisatax/taxgraph/internal/logging"
	"github.com/paisatax/taxgraph/internal/runtime"
	"github.com/paisatax/taxgraph/pkg/catalog"
	"github.com/paisatax/taxgraph/pkg/domain"
)

// Result is the outcome of a compute pass: the new state, the trace frame
// of the pass and a summary of node statuses.
type Result = domain.Result

// Engine is the high-level entry point for the taxgraph library.
// It wraps the catalog and the internal runtime behind a small API.
type Engine struct {
	catalog *catalog.Catalog
	runtime *runtime.Engine
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	clock   func() time.Time
	Name    string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCatalog shares an existing catalog instead of creating a new one.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithClock overrides the time source (tests, replays).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.clock = now
	}
}

// WithName labels the engine; the name is attached to every log line.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// New creates an engine with an empty catalog unless WithCatalog is given.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("catalog", eng.Name)
	}
	if eng.catalog == nil {
		eng.catalog = catalog.New(catalog.WithLogger(eng.logger))
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	if eng.clock != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithClock(eng.clock))
	}
	eng.runtime = runtime.NewEngine(eng.catalog, runtimeOpts...)
	return eng
}

// Catalog returns the catalog the engine evaluates.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Register adds a batch of node definitions. See catalog.Catalog.Register.
func (e *Engine) Register(defs ...domain.NodeDefinition) error {
	return e.catalog.Register(defs...)
}

// MustRegister is like Register but panics on a structural error.
// Intended for catalogs compiled into the program.
func (e *Engine) MustRegister(defs ...domain.NodeDefinition) {
	if err := e.Register(defs...); err != nil {
		panic(fmt.Sprintf("taxgraph: register: %v", err))
	}
}

// InitializeSession builds the initial state for params. An empty
// SessionKey is replaced with a random UUID.
func (e *Engine) InitializeSession(params domain.SessionParams) (*Result, error) {
	if params.SessionKey == "" {
		params.SessionKey = uuid.NewString()
	}
	return e.runtime.Initialize(params)
}

// Validate checks an event against state without applying it.
func (e *Engine) Validate(event domain.InputEvent, state *domain.State) domain.ValidationResult {
	return e.runtime.Validate(event, state)
}

// Process applies event to state. A rejected event yields a nil result and
// a *domain.EventError; the caller keeps state as the current state.
func (e *Engine) Process(event domain.InputEvent, state *domain.State, params domain.SessionParams) (*Result, error) {
	return e.runtime.Process(event, state, params)
}

// ClearOverride hands an overridden node back to the graph.
func (e *Engine) ClearOverride(nodeID string, state *domain.State, params domain.SessionParams) (*Result, error) {
	return e.runtime.Process(domain.InputEvent{
		InstanceID: nodeID,
		Source:     domain.SourceClearOverride,
	}, state, params)
}

// NodeInfo describes one node of a session for introspection tools.
type NodeInfo struct {
	Definition domain.NodeDefinition `json:"-"`
	ID         string                `json:"id"`
	Kind       domain.NodeKind       `json:"kind"`
	Snapshot   domain.NodeSnapshot   `json:"snapshot"`
	DependsOn  []string              `json:"depends_on"`
	UsedBy     []string              `json:"used_by"`
}

// Inspect returns the definition, current snapshot and neighbours of a node.
func (e *Engine) Inspect(state *domain.State, nodeID string) (*NodeInfo, error) {
	g := e.catalog.Graph()
	def, ok := g.Node(nodeID)
	if !ok {
		return nil, fmt.Errorf("inspect %q: %w", nodeID, domain.ErrNodeNotFound)
	}
	snap, ok := state.Get(nodeID)
	if !ok {
		return nil, fmt.Errorf("inspect %q: %w: not materialized in this session", nodeID, domain.ErrNodeNotFound)
	}

	var usedBy []string
	for _, id := range g.Dependents(nodeID) {
		if state.Has(id) {
			usedBy = append(usedBy, id)
		}
	}
	return &NodeInfo{
		Definition: def,
		ID:         def.ID,
		Kind:       def.Kind,
		Snapshot:   snap,
		DependsOn:  def.Dependencies,
		UsedBy:     usedBy,
	}, nil
}
