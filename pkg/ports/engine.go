package ports

import (
	"github.com/paisatax/taxgraph/pkg/domain"
)

// Engine is the compute surface used by the session manager and the
// transports. *taxgraph.Engine implements it.
type Engine interface {
	// InitializeSession builds the initial state for params.
	InitializeSession(params domain.SessionParams) (*domain.Result, error)

	// Validate checks an event against state without applying it.
	Validate(event domain.InputEvent, state *domain.State) domain.ValidationResult

	// Process applies event to state and returns the new state and trace.
	Process(event domain.InputEvent, state *domain.State, params domain.SessionParams) (*domain.Result, error)
}
