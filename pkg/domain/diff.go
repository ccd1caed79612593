package domain

import (
	"reflect"
)

// Diff calculates the changes between oldState and newState over every node
// present in either state. If oldState is nil, every node of newState is
// reported (initial load). A node missing from newState is reported with a
// zero After snapshot.
// Returns nil when nothing changed.
func Diff(oldState, newState *State) map[string]Change {
	if newState == nil {
		return nil
	}
	ids := newState.IDs()
	for _, id := range oldState.IDs() {
		if !newState.Has(id) {
			ids = append(ids, id)
		}
	}
	return DiffNodes(oldState, newState, ids)
}

// DiffNodes is like Diff but only inspects the given node IDs.
func DiffNodes(oldState, newState *State, ids []string) map[string]Change {
	delta := make(map[string]Change)
	for _, id := range ids {
		after, _ := newState.Get(id)
		before, existed := oldState.Get(id)
		if existed && SnapshotsEqual(before, after) {
			continue
		}
		change := Change{After: after}
		if existed {
			b := before
			change.Before = &b
		}
		delta[id] = change
	}
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// SnapshotsEqual compares value, status, note and error of two snapshots.
func SnapshotsEqual(a, b NodeSnapshot) bool {
	return a.Status == b.Status &&
		a.OverrideNote == b.OverrideNote &&
		a.Error == b.Error &&
		ValuesEqual(a.Value, b.Value)
}

// ValuesEqual compares two node values. Numbers are compared numerically so
// that 5 and 5.0 (e.g. after a JSON round trip) are equal.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, okA := AsNumber(a)
	fb, okB := AsNumber(b)
	if okA && okB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// AsNumber converts a numeric value to float64.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
