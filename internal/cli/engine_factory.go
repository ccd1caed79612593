package cli

import (
	"fmt"
	"log/slog"

	"github.com/paisatax/taxgraph"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/observability"
	"github.com/paisatax/taxgraph/pkg/rules"
)

// CreateEngine loads the rule catalog at path and returns an engine with
// it registered. Pass events are logged through logger; extra hooks (such
// as Prometheus collectors) run alongside.
func CreateEngine(path string, logger *slog.Logger, hooks ...domain.LifecycleHooks) (*taxgraph.Engine, *rules.File, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("no rule catalog given (use --catalog)")
	}
	f, err := rules.Load(path)
	if err != nil {
		return nil, nil, err
	}
	defs, err := f.Compile()
	if err != nil {
		return nil, nil, err
	}

	hooks = append(hooks, observability.LogHooks(logger))
	engine := taxgraph.New(
		taxgraph.WithName(f.Name),
		taxgraph.WithLogger(logger),
		taxgraph.WithLifecycleHooks(observability.Aggregate(hooks...)),
	)
	if err := engine.Register(defs...); err != nil {
		return nil, nil, fmt.Errorf("error registering %s: %w", f.Name, err)
	}
	return engine, f, nil
}
