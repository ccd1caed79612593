package ports

import (
	"context"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// StateStore defines the interface for persisting sessions.
// A session is the unit of persistence: the params it was created with and
// the latest state. Trace frames are not stored.
type StateStore interface {
	// Save persists the session under key, replacing any previous version.
	Save(ctx context.Context, key string, session *domain.Session) error

	// Load retrieves the session stored under key.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, key string) (*domain.Session, error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
