package runtime

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/schema"
)

// evalContext is the read-only view a rule gets of the working state.
// Reads are restricted to the node's declared dependencies.
type evalContext struct {
	params     domain.SessionParams
	def        domain.NodeDefinition
	values     map[string]domain.NodeSnapshot
	undeclared []string
}

func newEvalContext(params domain.SessionParams, def domain.NodeDefinition, values map[string]domain.NodeSnapshot) *evalContext {
	return &evalContext{params: params, def: def, values: values}
}

func (c *evalContext) Params() domain.SessionParams {
	return c.params
}

// Value returns the current value of a declared dependency. Skipped nodes,
// nodes outside the session scope and nil values all read as absent.
func (c *evalContext) Value(id string) (any, bool) {
	if !slices.Contains(c.def.Dependencies, id) {
		if !slices.Contains(c.undeclared, id) {
			c.undeclared = append(c.undeclared, id)
		}
		return nil, false
	}
	snap, ok := c.values[id]
	if !ok || snap.Status == domain.StatusSkipped || snap.Value == nil {
		return nil, false
	}
	return snap.Value, true
}

func (c *evalContext) Number(id string) float64 {
	v, ok := c.Value(id)
	if !ok {
		return 0
	}
	n, _ := domain.AsNumber(v)
	return n
}

func (c *evalContext) Bool(id string) bool {
	v, ok := c.Value(id)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (c *evalContext) Text(id string) string {
	v, ok := c.Value(id)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// err reports undeclared reads made during the evaluation.
func (c *evalContext) err() error {
	if len(c.undeclared) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrUndeclaredDependency, strings.Join(c.undeclared, ", "))
}

// dependencyValues snapshots what def's dependencies hold right now.
func dependencyValues(def domain.NodeDefinition, working map[string]domain.NodeSnapshot) map[string]any {
	if len(def.Dependencies) == 0 {
		return nil
	}
	out := make(map[string]any, len(def.Dependencies))
	for _, dep := range def.Dependencies {
		snap := working[dep]
		if snap.Status == domain.StatusSkipped {
			out[dep] = nil
			continue
		}
		out[dep] = snap.Value
	}
	return out
}

func safeCompute(fn domain.ComputeFunc, ctx domain.EvalContext) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("compute panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func safeApplicable(fn domain.ApplicabilityFunc, ctx domain.EvalContext) (applies bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			applies = false
			err = fmt.Errorf("applicability panicked: %v", r)
		}
	}()
	return fn(ctx), nil
}

func isNotApplicable(err error) bool {
	return errors.Is(err, domain.ErrNotApplicable)
}

// checkValue applies the node's declared constraints to a computed result.
func checkValue(def domain.NodeDefinition, value any) error {
	if err := schema.Check(def.ID, def.Constraints, value); err != nil {
		return fmt.Errorf("computed value rejected: %w", err)
	}
	return nil
}
