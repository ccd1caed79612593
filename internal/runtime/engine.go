package runtime

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/paisatax/taxgraph/internal/logging"
	"github.com/paisatax/taxgraph/pkg/catalog"
	"github.com/paisatax/taxgraph/pkg/domain"
)

// Engine evaluates a registered catalog against session state.
// It holds no session data: every pass takes a prior State and returns a
// new one, so a single Engine is safe to share between sessions.
type Engine struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	now     func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for pass diagnostics.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides the time source used for timestamps and durations.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine bound to cat.
func NewEngine(cat *catalog.Catalog, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog: cat,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize materializes the nodes in scope for params, seeds inputs with
// their defaults and evaluates every computed node. The returned frame has
// a nil trigger.
func (e *Engine) Initialize(params domain.SessionParams) (*domain.Result, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	start := e.now()
	g := e.catalog.Graph()
	ids := g.Materialize(params)

	working := make(map[string]domain.NodeSnapshot, len(ids))
	var order []string
	for _, id := range ids {
		def, _ := g.Node(id)
		if def.IsInput() {
			working[id] = domain.NodeSnapshot{Value: def.Default, Status: domain.StatusClean}
			continue
		}
		working[id] = domain.NodeSnapshot{Status: domain.StatusDirty}
		order = append(order, id)
	}

	rec := newRecorder(nil, domain.EmptyState())
	e.recompute(g, params, order, working, rec)

	next := domain.NewState(working)
	frame := rec.finish(next, ids, "", e.now().Sub(start))

	e.logger.Debug("session initialized",
		"session_key", params.SessionKey,
		"nodes", len(ids),
		"graph_version", g.Version(),
	)
	e.emitPassComplete(params.SessionKey, true, frame)
	return &domain.Result{State: next, Frame: frame, Summary: frame.Summary}, nil
}

// Process applies one input event to prior and recomputes exactly the
// affected nodes. On a rejected event it returns a *domain.EventError and
// prior is left as the current state.
func (e *Engine) Process(event domain.InputEvent, prior *domain.State, params domain.SessionParams) (*domain.Result, error) {
	if prior == nil {
		return nil, fmt.Errorf("process %q: nil prior state", event.InstanceID)
	}
	if event.Source == "" {
		event.Source = domain.SourcePreparer
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}

	g := e.catalog.Graph()
	working := prior.Snapshots()
	candidates := make(map[string]bool)
	added := e.catchUp(g, params, working, candidates)
	view := prior
	if len(added) > 0 {
		view = domain.NewState(working)
	}

	if res := e.Validate(event, view); !res.Valid {
		e.logger.Info("input event rejected",
			"session_key", params.SessionKey,
			"node_id", event.InstanceID,
			"source", event.Source,
			"errors", len(res.Errors),
		)
		if e.hooks.OnEventRejected != nil {
			e.hooks.OnEventRejected(&event, res)
		}
		return nil, &domain.EventError{Event: event, Result: res}
	}

	start := e.now()
	target := event.InstanceID
	def, _ := g.Node(target)
	current := working[target]

	switch {
	case event.IsOverride():
		working[target] = domain.NodeSnapshot{
			Value:        event.Value,
			Status:       domain.StatusOverride,
			OverrideNote: event.OverrideNote,
		}
	case event.IsClearOverride():
		if def.IsInput() {
			working[target] = domain.NodeSnapshot{Value: current.Value, Status: domain.StatusClean}
		} else {
			working[target] = domain.NodeSnapshot{Value: current.Value, Status: domain.StatusDirty}
			candidates[target] = true
		}
	default:
		working[target] = domain.NodeSnapshot{Value: event.Value, Status: domain.StatusClean}
	}

	e.markDirty(g, target, working, candidates)
	order := make([]string, 0, len(candidates))
	for id := range candidates {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return g.Position(order[i]) < g.Position(order[j]) })

	rec := newRecorder(&event, prior)
	e.recompute(g, params, order, working, rec)

	next := domain.NewState(working)
	touched := append([]string{target}, order...)
	touched = append(touched, added...)
	frame := rec.finish(next, touched, target, e.now().Sub(start))

	e.logger.Debug("input event processed",
		"session_key", params.SessionKey,
		"node_id", target,
		"source", event.Source,
		"recomputed", len(order),
		"changed", len(frame.Changes),
	)
	e.emitPassComplete(params.SessionKey, false, frame)
	return &domain.Result{State: next, Frame: frame, Summary: frame.Summary}, nil
}

// catchUp adds to working the nodes in scope for params that were
// registered after the session was initialized. Inputs take their default;
// computed nodes are queued in candidates. Existing nodes never depend on
// them, so nothing else is dirtied. It returns the added IDs.
func (e *Engine) catchUp(g *catalog.Graph, params domain.SessionParams, working map[string]domain.NodeSnapshot, candidates map[string]bool) []string {
	var added []string
	for _, id := range g.Materialize(params) {
		if _, ok := working[id]; ok {
			continue
		}
		def, _ := g.Node(id)
		if def.IsInput() {
			working[id] = domain.NodeSnapshot{Value: def.Default, Status: domain.StatusClean}
		} else {
			working[id] = domain.NodeSnapshot{Status: domain.StatusDirty}
			candidates[id] = true
		}
		added = append(added, id)
	}
	if len(added) > 0 {
		e.logger.Debug("session caught up with catalog",
			"session_key", params.SessionKey,
			"added", len(added),
			"graph_version", g.Version(),
		)
	}
	return added
}

// markDirty walks the reverse adjacency from target and collects every
// materialized dependent. Overridden nodes are neither marked nor
// traversed, so their own dependents are shielded from the change.
func (e *Engine) markDirty(g *catalog.Graph, target string, working map[string]domain.NodeSnapshot, candidates map[string]bool) {
	queue := []string{target}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range g.Dependents(id) {
			snap, ok := working[dep]
			if !ok || candidates[dep] || snap.Status == domain.StatusOverride {
				continue
			}
			snap.Status = domain.StatusDirty
			working[dep] = snap
			candidates[dep] = true
			queue = append(queue, dep)
		}
	}
}

// recompute evaluates order, which must already be topologically sorted.
// Dependencies always resolve before their dependents.
func (e *Engine) recompute(g *catalog.Graph, params domain.SessionParams, order []string, working map[string]domain.NodeSnapshot, rec *recorder) {
	for _, id := range order {
		def, _ := g.Node(id)
		began := e.now()
		snap := e.evaluate(def, params, working)
		working[id] = snap

		rec.visit(id, dependencyValues(def, working))

		var evalErr error
		if snap.Status == domain.StatusError {
			evalErr = fmt.Errorf("%s", snap.Error)
			e.logger.Warn("node evaluation failed",
				"session_key", params.SessionKey,
				"node_id", id,
				"err", snap.Error,
			)
		}
		e.emitNodeEvaluated(params.SessionKey, id, snap.Status, e.now().Sub(began), evalErr)
	}
}

// evaluate runs the applicability predicate and compute rule of def.
// Errors keep the last known good value.
func (e *Engine) evaluate(def domain.NodeDefinition, params domain.SessionParams, working map[string]domain.NodeSnapshot) domain.NodeSnapshot {
	lastGood := working[def.ID].Value
	fail := func(err error) domain.NodeSnapshot {
		return domain.NodeSnapshot{Value: lastGood, Status: domain.StatusError, Error: err.Error()}
	}

	ctx := newEvalContext(params, def, working)

	if def.Applicable != nil {
		applies, err := safeApplicable(def.Applicable, ctx)
		if err == nil {
			err = ctx.err()
		}
		if err != nil {
			return fail(err)
		}
		if !applies {
			return domain.NodeSnapshot{Status: domain.StatusSkipped}
		}
	}

	value, err := safeCompute(def.Compute, ctx)
	if err == nil {
		err = ctx.err()
	}
	switch {
	case err == nil:
	case isNotApplicable(err):
		return domain.NodeSnapshot{Status: domain.StatusSkipped}
	default:
		return fail(err)
	}

	if err := checkValue(def, value); err != nil {
		return fail(err)
	}
	return domain.NodeSnapshot{Value: value, Status: domain.StatusClean}
}

func (e *Engine) emitNodeEvaluated(sessionKey, nodeID string, status domain.Status, d time.Duration, err error) {
	if e.hooks.OnNodeEvaluated == nil {
		return
	}
	e.hooks.OnNodeEvaluated(&domain.NodeEvent{
		SessionKey: sessionKey,
		NodeID:     nodeID,
		Status:     status,
		Duration:   d,
		Err:        err,
	})
}

func (e *Engine) emitPassComplete(sessionKey string, initial bool, frame *domain.TraceFrame) {
	if e.hooks.OnPassComplete == nil {
		return
	}
	e.hooks.OnPassComplete(&domain.PassEvent{SessionKey: sessionKey, Initial: initial, Frame: frame})
}
