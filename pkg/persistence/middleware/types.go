// Package middleware wraps a ports.StateStore with storage-side behavior:
// envelope encryption of session state and masking of personal data.
package middleware

import "github.com/paisatax/taxgraph/pkg/ports"

// Middleware allows wrapping a StateStore to add behavior.
type Middleware func(ports.StateStore) ports.StateStore

// Chain applies middlewares so that the first one sees calls first.
func Chain(store ports.StateStore, mws ...Middleware) ports.StateStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
