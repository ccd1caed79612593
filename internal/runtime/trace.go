package runtime

import (
	"time"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// recorder accumulates the trace of one pass. Before snapshots come from
// the prior state, so the recorder never needs to copy values mid-pass.
type recorder struct {
	trigger    *domain.InputEvent
	prior      *domain.State
	visitOrder []string
	deps       map[string]map[string]any
}

func newRecorder(trigger *domain.InputEvent, prior *domain.State) *recorder {
	var t *domain.InputEvent
	if trigger != nil {
		cp := *trigger
		t = &cp
	}
	return &recorder{
		trigger:    t,
		prior:      prior,
		visitOrder: []string{},
		deps:       make(map[string]map[string]any),
	}
}

func (r *recorder) visit(id string, deps map[string]any) {
	r.visitOrder = append(r.visitOrder, id)
	if deps != nil {
		r.deps[id] = deps
	}
}

// finish builds the frame. Only nodes in touched whose snapshot differs
// from the prior state are recorded, except forced, which always is.
func (r *recorder) finish(next *domain.State, touched []string, forced string, d time.Duration) *domain.TraceFrame {
	seen := make(map[string]bool, len(touched))
	ids := make([]string, 0, len(touched))
	for _, id := range touched {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	changes := domain.DiffNodes(r.prior, next, ids)
	if changes == nil {
		changes = make(map[string]domain.Change)
	}
	if forced != "" {
		if _, ok := changes[forced]; !ok {
			after, _ := next.Get(forced)
			change := domain.Change{After: after}
			if before, ok := r.prior.Get(forced); ok {
				change.Before = &before
			}
			changes[forced] = change
		}
	}
	for id, change := range changes {
		if deps, ok := r.deps[id]; ok {
			change.Dependencies = deps
			changes[id] = change
		}
	}

	return &domain.TraceFrame{
		Trigger:    r.trigger,
		VisitOrder: r.visitOrder,
		Changes:    changes,
		Duration:   d,
		DurationMs: float64(d.Microseconds()) / 1000,
		Summary:    next.Summary(),
	}
}
