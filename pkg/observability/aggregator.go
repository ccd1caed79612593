package observability

import (
	"log/slog"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// Aggregate combines several hook sets into one. Callbacks run in the order
// the sets are given; nil callbacks are skipped.
func Aggregate(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var (
		onNode   []func(*domain.NodeEvent)
		onPass   []func(*domain.PassEvent)
		onReject []func(*domain.InputEvent, domain.ValidationResult)
	)
	for _, h := range sets {
		if h.OnNodeEvaluated != nil {
			onNode = append(onNode, h.OnNodeEvaluated)
		}
		if h.OnPassComplete != nil {
			onPass = append(onPass, h.OnPassComplete)
		}
		if h.OnEventRejected != nil {
			onReject = append(onReject, h.OnEventRejected)
		}
	}

	var out domain.LifecycleHooks
	if len(onNode) > 0 {
		out.OnNodeEvaluated = func(e *domain.NodeEvent) {
			for _, fn := range onNode {
				fn(e)
			}
		}
	}
	if len(onPass) > 0 {
		out.OnPassComplete = func(e *domain.PassEvent) {
			for _, fn := range onPass {
				fn(e)
			}
		}
	}
	if len(onReject) > 0 {
		out.OnEventRejected = func(e *domain.InputEvent, res domain.ValidationResult) {
			for _, fn := range onReject {
				fn(e, res)
			}
		}
	}
	return out
}

// LogHooks returns hooks that write an audit line per pass and per
// rejected event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPassComplete: func(e *domain.PassEvent) {
			attrs := []any{
				"session_key", e.SessionKey,
				"initial", e.Initial,
			}
			if e.Frame != nil {
				attrs = append(attrs,
					"visited", len(e.Frame.VisitOrder),
					"changed", len(e.Frame.Changes),
					"duration_ms", e.Frame.DurationMs,
				)
				if e.Frame.Trigger != nil {
					attrs = append(attrs, "node_id", e.Frame.Trigger.InstanceID, "source", e.Frame.Trigger.Source)
				}
			}
			logger.Info("pass_complete", attrs...)
		},
		OnEventRejected: func(e *domain.InputEvent, res domain.ValidationResult) {
			codes := make([]string, 0, len(res.Errors))
			for _, issue := range res.Errors {
				codes = append(codes, issue.Code)
			}
			logger.Info("event_rejected",
				"node_id", e.InstanceID,
				"source", e.Source,
				"codes", codes,
			)
		},
	}
}
