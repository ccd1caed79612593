package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStructural is the parent of every registration-time graph defect.
var ErrStructural = errors.New("structural graph error")

var (
	ErrEmptyNodeID       = fmt.Errorf("%w: empty node id", ErrStructural)
	ErrDuplicateNode     = fmt.Errorf("%w: duplicate node", ErrStructural)
	ErrUnknownDependency = fmt.Errorf("%w: unknown dependency", ErrStructural)
	ErrCycle             = fmt.Errorf("%w: dependency cycle", ErrStructural)
	ErrMissingCompute    = fmt.Errorf("%w: computed node without compute rule", ErrStructural)
	ErrNoDependencies    = fmt.Errorf("%w: computed node without dependencies", ErrStructural)
	ErrInputDependencies = fmt.Errorf("%w: input node with dependencies", ErrStructural)
	ErrInvalidKind       = fmt.Errorf("%w: invalid node kind", ErrStructural)
	ErrInvalidDefault    = fmt.Errorf("%w: default value violates constraints", ErrStructural)
)

// ErrNotApplicable is returned by a compute rule when the node does not apply.
var ErrNotApplicable = errors.New("not applicable")

// ErrUndeclaredDependency is recorded when a rule reads a node it did not declare.
var ErrUndeclaredDependency = errors.New("read of undeclared dependency")

// ErrInvalidEvent is returned by Process when validation rejects the event.
var ErrInvalidEvent = errors.New("invalid input event")

// ErrInvalidParams is returned when session parameters fail validation.
var ErrInvalidParams = errors.New("invalid session parameters")

// ErrNodeNotFound is returned when a node id is unknown or not materialized.
var ErrNodeNotFound = errors.New("node not found")

// ErrSessionNotFound is returned when a session key cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// EventError carries the validation result of a rejected event.
type EventError struct {
	Event  InputEvent
	Result ValidationResult
}

func (e *EventError) Error() string {
	codes := make([]string, 0, len(e.Result.Errors))
	for _, issue := range e.Result.Errors {
		codes = append(codes, issue.Code)
	}
	return fmt.Sprintf("%s for node %q: %s", ErrInvalidEvent, e.Event.InstanceID, strings.Join(codes, ", "))
}

func (e *EventError) Unwrap() error { return ErrInvalidEvent }
