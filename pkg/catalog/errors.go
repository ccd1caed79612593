package catalog

import (
	"fmt"
	"strings"
)

// StructuralError describes why a registration batch was rejected.
// It unwraps to one of the domain.Err* structural sentinels.
type StructuralError struct {
	NodeID string
	Err    error
	Detail string
	// Path holds the dependency chain for cycles, first node repeated last.
	Path []string
}

func (e *StructuralError) Error() string {
	msg := fmt.Sprintf("node %q: %v", e.NodeID, e.Err)
	if len(e.Path) > 0 {
		msg += ": " + strings.Join(e.Path, " -> ")
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *StructuralError) Unwrap() error { return e.Err }
