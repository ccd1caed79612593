package domain

import (
	"time"
)

// Source identifies where an input event came from.
type Source string

const (
	SourcePreparer Source = "preparer"
	SourceOCR      Source = "ocr"
	// SourceOverride fixes a node value and protects it from recomputation.
	SourceOverride Source = "override"
	// SourceClearOverride hands an overridden node back to the graph.
	SourceClearOverride Source = "clear_override"
)

// InputEvent is a single change request targeting one node instance.
type InputEvent struct {
	InstanceID   string    `json:"instance_id" yaml:"instance_id"`
	Value        any       `json:"value" yaml:"value"`
	Source       Source    `json:"source" yaml:"source"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	OverrideNote string    `json:"override_note,omitempty" yaml:"override_note,omitempty"`
}

// IsOverride reports whether the event asserts an override.
func (e InputEvent) IsOverride() bool { return e.Source == SourceOverride }

// IsClearOverride reports whether the event releases an override.
func (e InputEvent) IsClearOverride() bool { return e.Source == SourceClearOverride }

// Change is the before/after record of one node in a trace frame.
type Change struct {
	// Before is nil when the node did not exist in the prior state.
	Before *NodeSnapshot `json:"before"`
	After  NodeSnapshot  `json:"after"`
	// Dependencies holds the dependency values a computed node read.
	Dependencies map[string]any `json:"dependencies,omitempty"`
}

// TraceFrame is the audit record of one compute pass. It is not part of the
// State; retaining frames is up to the caller.
type TraceFrame struct {
	// Trigger is nil for session initialization.
	Trigger    *InputEvent       `json:"trigger"`
	VisitOrder []string          `json:"visit_order"`
	Changes    map[string]Change `json:"changes"`
	Duration   time.Duration     `json:"-"`
	DurationMs float64           `json:"duration_ms"`
	Summary    Summary           `json:"summary"`
}

// Result is the outcome of a compute pass.
type Result struct {
	State   *State      `json:"state"`
	Frame   *TraceFrame `json:"frame"`
	Summary Summary     `json:"summary"`
}

// NodeEvent describes a single node evaluation inside a pass.
type NodeEvent struct {
	SessionKey string        `json:"session_key"`
	NodeID     string        `json:"node_id"`
	Status     Status        `json:"status"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// PassEvent describes a finished compute pass.
type PassEvent struct {
	SessionKey string      `json:"session_key"`
	Initial    bool        `json:"initial"`
	Frame      *TraceFrame `json:"frame"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously inside the pass and must not block.
type LifecycleHooks struct {
	OnNodeEvaluated func(*NodeEvent)
	OnPassComplete  func(*PassEvent)
	OnEventRejected func(*InputEvent, ValidationResult)
}
