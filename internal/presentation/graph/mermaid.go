package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	// State restricts the chart to materialized nodes and colours them by status.
	State *domain.State
	// Changed highlights the nodes whose snapshot changed in the last pass.
	Changed []string
}

// GenerateMermaid produces a Mermaid flowchart from node definitions, which
// should be given in topological order. Shapes:
// - Input: [/Parallelogram/]
// - Computed: [Rectangle]
// - Computed with an applicability rule: {{Hexagon}}
// Members of a repeatable family are grouped in a subgraph.
func GenerateMermaid(nodes []domain.NodeDefinition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	visible := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		if overlay != nil && overlay.State != nil && !overlay.State.Has(node.ID) {
			continue
		}
		visible[node.ID] = true
	}

	families := make(map[string][]domain.NodeDefinition)
	var familyOrder []string
	for _, node := range nodes {
		if !visible[node.ID] {
			continue
		}
		if fam := node.Scope.Family; fam != "" {
			if _, seen := families[fam]; !seen {
				familyOrder = append(familyOrder, fam)
			}
			families[fam] = append(families[fam], node)
			continue
		}
		sb.WriteString(nodeLine(node, "    "))
	}
	for _, fam := range familyOrder {
		fmt.Fprintf(&sb, "    subgraph %s [\"%s\"]\n", sanitizeMermaidID("family_"+fam), fam)
		for _, node := range families[fam] {
			sb.WriteString(nodeLine(node, "        "))
		}
		sb.WriteString("    end\n")
	}

	for _, node := range nodes {
		if !visible[node.ID] {
			continue
		}
		for _, dep := range node.Dependencies {
			if !visible[dep] {
				continue
			}
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(dep), sanitizeMermaidID(node.ID))
		}
	}

	if overlay != nil {
		writeOverlay(&sb, nodes, visible, overlay)
	}
	return sb.String()
}

func nodeLine(node domain.NodeDefinition, indent string) string {
	opener, closer := "[", "]"
	switch {
	case node.IsInput():
		opener, closer = "[/", "/]"
	case node.Applicable != nil:
		opener, closer = "{{", "}}"
	}
	label := strings.ReplaceAll(node.ID, "\"", "'")
	if node.Description != "" {
		label += "<br/><small>" + strings.ReplaceAll(node.Description, "\"", "'") + "</small>"
	}
	return fmt.Sprintf("%s%s%s\"%s\"%s\n", indent, sanitizeMermaidID(node.ID), opener, label, closer)
}

func writeOverlay(sb *strings.Builder, nodes []domain.NodeDefinition, visible map[string]bool, overlay *GraphOverlay) {
	sb.WriteString("\n    %% Overlay Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds.
	sb.WriteString("    classDef clean fill:#e8f5e9,stroke:#2e7d32,color:#000;\n")
	sb.WriteString("    classDef skipped fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4 2,color:#555;\n")
	sb.WriteString("    classDef override fill:#fff3e0,stroke:#ef6c00,stroke-width:3px,color:#000;\n")
	sb.WriteString("    classDef error fill:#ffebee,stroke:#c62828,stroke-width:3px,color:#000;\n")
	sb.WriteString("    classDef changed stroke:#1565c0,stroke-width:4px;\n")

	if overlay.State != nil {
		byStatus := make(map[domain.Status][]string)
		for _, node := range nodes {
			if !visible[node.ID] {
				continue
			}
			st := overlay.State.Status(node.ID)
			byStatus[st] = append(byStatus[st], sanitizeMermaidID(node.ID))
		}
		statuses := make([]string, 0, len(byStatus))
		for st := range byStatus {
			statuses = append(statuses, string(st))
		}
		sort.Strings(statuses)
		for _, st := range statuses {
			fmt.Fprintf(sb, "    class %s %s;\n", strings.Join(byStatus[domain.Status(st)], ","), st)
		}
	}

	seen := make(map[string]bool)
	var changed []string
	for _, id := range overlay.Changed {
		safeID := sanitizeMermaidID(id)
		if visible[id] && !seen[safeID] {
			seen[safeID] = true
			changed = append(changed, safeID)
		}
	}
	if len(changed) > 0 {
		fmt.Fprintf(sb, "    class %s changed;\n", strings.Join(changed, ","))
	}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
