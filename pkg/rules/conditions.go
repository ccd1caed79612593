package rules

import (
	"fmt"

	"github.com/paisatax/taxgraph/pkg/domain"
)

func compileConditions(conds []Condition) (domain.ApplicabilityFunc, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	checks := make([]func(domain.EvalContext) bool, 0, len(conds))
	for _, c := range conds {
		check, err := compileCondition(c)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return func(ctx domain.EvalContext) bool {
		for _, check := range checks {
			if !check(ctx) {
				return false
			}
		}
		return true
	}, nil
}

func compileCondition(c Condition) (func(domain.EvalContext) bool, error) {
	node := c.Node
	switch c.Op {
	case "set":
		return func(ctx domain.EvalContext) bool {
			_, ok := ctx.Value(node)
			return ok
		}, nil
	case "unset":
		return func(ctx domain.EvalContext) bool {
			_, ok := ctx.Value(node)
			return !ok
		}, nil
	case "true":
		return func(ctx domain.EvalContext) bool { return ctx.Bool(node) }, nil
	case "false":
		return func(ctx domain.EvalContext) bool { return !ctx.Bool(node) }, nil
	case "eq", "ne":
		want, negate := c.Value, c.Op == "ne"
		return func(ctx domain.EvalContext) bool {
			got, _ := ctx.Value(node)
			return domain.ValuesEqual(got, want) != negate
		}, nil
	}

	limit, ok := domain.AsNumber(c.Value)
	if !ok {
		return nil, fmt.Errorf("condition on %q: %s needs a numeric value, got %T", node, c.Op, c.Value)
	}
	var cmp func(a float64) bool
	switch c.Op {
	case "gt":
		cmp = func(a float64) bool { return a > limit }
	case "gte":
		cmp = func(a float64) bool { return a >= limit }
	case "lt":
		cmp = func(a float64) bool { return a < limit }
	case "lte":
		cmp = func(a float64) bool { return a <= limit }
	default:
		return nil, fmt.Errorf("condition on %q: unknown op %q", node, c.Op)
	}
	return func(ctx domain.EvalContext) bool { return cmp(ctx.Number(node)) }, nil
}
