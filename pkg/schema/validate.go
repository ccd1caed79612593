package schema

import (
	"fmt"
	"math"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// Check validates value against the constraints declared for node id.
// A nil value is always accepted: it means "absent".
// Returns an *AggregateError listing every failure found.
func Check(id string, c domain.Constraints, value any) error {
	if value == nil {
		return nil
	}

	typ, err := ForValueType(c.Type)
	if err != nil {
		return &ValidationError{Key: id, Code: domain.CodeInvalidType, Reason: err.Error(), Value: value}
	}
	if err := typ.Validate(value); err != nil {
		// Bounds are meaningless for a value of the wrong shape.
		return &AggregateError{Errors: []error{
			&ValidationError{Key: id, Code: domain.CodeInvalidType, Reason: err.Error(), Value: value},
		}}
	}

	n, numeric := domain.AsNumber(value)
	if !numeric {
		return nil
	}
	// Untyped nodes accept any shape, but never a value JSON cannot carry.
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return &AggregateError{Errors: []error{
			&ValidationError{Key: id, Code: domain.CodeInvalidType, Reason: fmt.Sprintf("expected finite number, got %v", n), Value: value},
		}}
	}

	var errs []error
	if c.NonNegative && n < 0 {
		errs = append(errs, &ValidationError{
			Key:    id,
			Code:   domain.CodeNegativeNotAllowed,
			Reason: "negative values are not allowed",
			Value:  value,
		})
	}
	if c.Min != nil && n < *c.Min {
		errs = append(errs, &ValidationError{
			Key:    id,
			Code:   domain.CodeBelowMinimum,
			Reason: fmt.Sprintf("must be at least %v", *c.Min),
			Value:  value,
		})
	}
	if c.Max != nil && n > *c.Max {
		errs = append(errs, &ValidationError{
			Key:    id,
			Code:   domain.CodeAboveMaximum,
			Reason: fmt.Sprintf("must be at most %v", *c.Max),
			Value:  value,
		})
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// CheckDefinition validates the static parts of a node definition that
// depend on constraints: the declared type must be known and the default
// must satisfy the constraints.
func CheckDefinition(def domain.NodeDefinition) error {
	if _, err := ForValueType(def.Constraints.Type); err != nil {
		return fmt.Errorf("node %q: %w", def.ID, err)
	}
	if def.Constraints.Min != nil && def.Constraints.Max != nil && *def.Constraints.Min > *def.Constraints.Max {
		return fmt.Errorf("node %q: min %v greater than max %v", def.ID, *def.Constraints.Min, *def.Constraints.Max)
	}
	return Check(def.ID, def.Constraints, def.Default)
}
