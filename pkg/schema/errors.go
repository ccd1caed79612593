package schema

import (
	"errors"
	"fmt"
)

// ValidationError represents a single constraint failure.
type ValidationError struct {
	Key    string // Node ID
	Code   string // Machine-readable code, e.g. "negative_not_allowed"
	Reason string // Human-readable reason for failure
	Value  any    // The value that failed validation
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("node %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("node %q: %s (got %v)", e.Key, e.Reason, e.Value)
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// ValidationErrors returns all validation errors if err is an AggregateError
// or a single ValidationError. Otherwise returns nil.
func ValidationErrors(err error) []*ValidationError {
	var out []*ValidationError
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		for _, e := range aggr.Errors {
			var ve *ValidationError
			if errors.As(e, &ve) {
				out = append(out, ve)
			}
		}
		return out
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return []*ValidationError{ve}
	}
	return nil
}
