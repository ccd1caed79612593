package domain

import (
	"encoding/json"
	"sort"
)

// Status describes how a node value relates to the current inputs.
type Status string

const (
	StatusClean    Status = "clean"    // Reflects current inputs
	StatusDirty    Status = "dirty"    // Transient, only inside a compute pass
	StatusSkipped  Status = "skipped"  // Not applicable, value absent
	StatusOverride Status = "override" // Fixed by an override event
	StatusError    Status = "error"    // Compute failed, last good value kept
)

// NodeSnapshot is the value and status of one node instance.
type NodeSnapshot struct {
	Value        any    `json:"value"`
	Status       Status `json:"status"`
	OverrideNote string `json:"override_note,omitempty"`
	// Error holds the failure message when Status is StatusError.
	Error string `json:"error,omitempty"`
}

// State is an immutable mapping from materialized node ID to snapshot.
// A new State is produced by every compute pass; old values stay valid and
// may be retained for undo or audit.
type State struct {
	nodes map[string]NodeSnapshot
}

// NewState creates a State holding a copy of nodes.
func NewState(nodes map[string]NodeSnapshot) *State {
	copied := make(map[string]NodeSnapshot, len(nodes))
	for id, snap := range nodes {
		copied[id] = snap
	}
	return &State{nodes: copied}
}

// EmptyState returns a State with no nodes.
func EmptyState() *State {
	return &State{nodes: map[string]NodeSnapshot{}}
}

// Get returns the snapshot of a node.
func (s *State) Get(id string) (NodeSnapshot, bool) {
	if s == nil {
		return NodeSnapshot{}, false
	}
	snap, ok := s.nodes[id]
	return snap, ok
}

// Has reports whether the node is materialized in this state.
func (s *State) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// Value returns the node value, or nil when absent.
func (s *State) Value(id string) any {
	snap, _ := s.Get(id)
	return snap.Value
}

// Status returns the node status, or "" when the node is not materialized.
func (s *State) Status(id string) Status {
	snap, _ := s.Get(id)
	return snap.Status
}

// Len returns the number of materialized nodes.
func (s *State) Len() int {
	if s == nil {
		return 0
	}
	return len(s.nodes)
}

// IDs returns the materialized node IDs in lexical order.
func (s *State) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshots returns a copy of the underlying mapping.
func (s *State) Snapshots() map[string]NodeSnapshot {
	if s == nil {
		return map[string]NodeSnapshot{}
	}
	return NewState(s.nodes).nodes
}

// Summary counts the nodes by status.
func (s *State) Summary() Summary {
	var sum Summary
	if s == nil {
		return sum
	}
	for _, snap := range s.nodes {
		sum.add(snap.Status)
	}
	return sum
}

// MarshalJSON serializes the state as a plain {id: snapshot} object.
func (s *State) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.nodes)
}

// UnmarshalJSON restores a state serialized by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	var nodes map[string]NodeSnapshot
	if err := json.Unmarshal(data, &nodes); err != nil {
		return err
	}
	if nodes == nil {
		nodes = map[string]NodeSnapshot{}
	}
	s.nodes = nodes
	return nil
}

// Summary holds aggregate status counts of a state.
type Summary struct {
	TotalNodes    int `json:"total_nodes"`
	CleanNodes    int `json:"clean_nodes"`
	SkippedNodes  int `json:"skipped_nodes"`
	OverrideNodes int `json:"override_nodes"`
	ErrorNodes    int `json:"error_nodes"`
}

func (s *Summary) add(status Status) {
	s.TotalNodes++
	switch status {
	case StatusClean:
		s.CleanNodes++
	case StatusSkipped:
		s.SkippedNodes++
	case StatusOverride:
		s.OverrideNodes++
	case StatusError:
		s.ErrorNodes++
	}
}
