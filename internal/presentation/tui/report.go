package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// FrameReport renders a trace frame as markdown: the trigger, the nodes
// visited in order, and a before/after table of every change.
func FrameReport(frame *domain.TraceFrame) string {
	var sb strings.Builder

	if frame.Trigger == nil {
		sb.WriteString("## Session initialized\n\n")
	} else {
		t := frame.Trigger
		fmt.Fprintf(&sb, "## %s `%s` = %s\n\n", t.Source, t.InstanceID, FormatValue(t.Value))
		if t.OverrideNote != "" {
			fmt.Fprintf(&sb, "> %s\n\n", t.OverrideNote)
		}
	}

	if len(frame.VisitOrder) > 0 {
		ids := make([]string, len(frame.VisitOrder))
		for i, id := range frame.VisitOrder {
			ids[i] = "`" + id + "`"
		}
		fmt.Fprintf(&sb, "Recomputed: %s\n\n", strings.Join(ids, " → "))
	}

	if len(frame.Changes) == 0 {
		sb.WriteString("_No changes._\n\n")
	} else {
		sb.WriteString("| Node | Before | After | Status |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, id := range changeOrder(frame) {
			c := frame.Changes[id]
			before := "—"
			if c.Before != nil {
				before = FormatValue(c.Before.Value)
			}
			fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", id, before, FormatValue(c.After.Value), statusLabel(c.After))
		}
		sb.WriteString("\n")
	}

	s := frame.Summary
	fmt.Fprintf(&sb, "**%d nodes**: %d clean, %d skipped, %d override, %d error (%.2f ms)\n",
		s.TotalNodes, s.CleanNodes, s.SkippedNodes, s.OverrideNodes, s.ErrorNodes, frame.DurationMs)
	return sb.String()
}

// StateReport renders every node of state as a markdown table, sorted by id.
func StateReport(state *domain.State) string {
	var sb strings.Builder
	sb.WriteString("| Node | Value | Status |\n")
	sb.WriteString("|---|---|---|\n")
	for _, id := range state.IDs() {
		snap, _ := state.Get(id)
		fmt.Fprintf(&sb, "| `%s` | %s | %s |\n", id, FormatValue(snap.Value), statusLabel(snap))
	}
	return sb.String()
}

// FormatValue prints a node value for humans. Absent values print as "—".
func FormatValue(v any) string {
	if v == nil {
		return "—"
	}
	if n, ok := domain.AsNumber(v); ok {
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%.2f", n)
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func statusLabel(snap domain.NodeSnapshot) string {
	switch snap.Status {
	case domain.StatusOverride:
		if snap.OverrideNote != "" {
			return "override: " + escapeCell(snap.OverrideNote)
		}
	case domain.StatusError:
		if snap.Error != "" {
			return "**error**: " + escapeCell(snap.Error)
		}
	}
	return string(snap.Status)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// changeOrder lists the trigger first, then visited nodes, then the rest.
func changeOrder(frame *domain.TraceFrame) []string {
	seen := make(map[string]bool, len(frame.Changes))
	var order []string
	add := func(id string) {
		if _, ok := frame.Changes[id]; ok && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	if frame.Trigger != nil {
		add(frame.Trigger.InstanceID)
	}
	for _, id := range frame.VisitOrder {
		add(id)
	}
	var rest []string
	for id := range frame.Changes {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}
