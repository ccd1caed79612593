package dsl

import (
	"math"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// SumOf adds up the numeric values of ids. Absent values count as zero.
func SumOf(ids ...string) domain.ComputeFunc {
	return func(ctx domain.EvalContext) (any, error) {
		total := 0.0
		for _, id := range ids {
			total += ctx.Number(id)
		}
		return total, nil
	}
}

// DifferenceOf subtracts every id in minus from base.
func DifferenceOf(base string, minus ...string) domain.ComputeFunc {
	return func(ctx domain.EvalContext) (any, error) {
		v := ctx.Number(base)
		for _, id := range minus {
			v -= ctx.Number(id)
		}
		return v, nil
	}
}

// ProductOf multiplies the values of ids.
func ProductOf(ids ...string) domain.ComputeFunc {
	return func(ctx domain.EvalContext) (any, error) {
		v := 1.0
		for _, id := range ids {
			v *= ctx.Number(id)
		}
		return v, nil
	}
}

// MinOf returns the smallest value of ids.
func MinOf(ids ...string) domain.ComputeFunc {
	return func(ctx domain.EvalContext) (any, error) {
		v := math.Inf(1)
		for _, id := range ids {
			v = math.Min(v, ctx.Number(id))
		}
		if math.IsInf(v, 1) {
			return 0.0, nil
		}
		return v, nil
	}
}

// MaxOf returns the largest value of ids.
func MaxOf(ids ...string) domain.ComputeFunc {
	return func(ctx domain.EvalContext) (any, error) {
		v := math.Inf(-1)
		for _, id := range ids {
			v = math.Max(v, ctx.Number(id))
		}
		if math.IsInf(v, -1) {
			return 0.0, nil
		}
		return v, nil
	}
}

// Scale multiplies the value of id by factor.
func Scale(id string, factor float64) domain.ComputeFunc {
	return func(ctx domain.EvalContext) (any, error) {
		return ctx.Number(id) * factor, nil
	}
}

// FloorAt clamps the result of fn to be at least floor.
func FloorAt(fn domain.ComputeFunc, floor float64) domain.ComputeFunc {
	return func(ctx domain.EvalContext) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return v, err
		}
		n, ok := domain.AsNumber(v)
		if !ok {
			return v, nil
		}
		return math.Max(n, floor), nil
	}
}
