package graph_test

import (
	"strings"
	"testing"

	"github.com/paisatax/taxgraph/internal/presentation/graph"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/dsl"
)

func always(domain.EvalContext) bool { return true }

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []domain.NodeDefinition
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "Node Shapes",
			nodes: []domain.NodeDefinition{
				dsl.Input("wages").Build(),
				dsl.Sum("agi", "wages").Build(),
				dsl.Sum("credit", "agi").When(always).Build(),
			},
			contains: []string{
				`wages[/"wages"/]`,
				`agi["agi"]`,
				`credit{{"credit"}}`,
				"wages --> agi",
				"agi --> credit",
			},
		},
		{
			name: "ID Sanitization And Description",
			nodes: []domain.NodeDefinition{
				dsl.Input("w2.0.wages").Describe(`Box 1 "wages"`).Build(),
			},
			contains: []string{
				`w2_0_wages[/"w2.0.wages<br/><small>Box 1 'wages'</small>"/]`,
			},
		},
		{
			name: "Family Subgraph",
			nodes: []domain.NodeDefinition{
				dsl.Input("w2.0.wages").Slot("w2", 0).Build(),
				dsl.Input("w2.1.wages").Slot("w2", 1).Build(),
				dsl.Sum("total", "w2.0.wages", "w2.1.wages").Build(),
			},
			contains: []string{
				`subgraph family_w2 ["w2"]`,
				"        w2_1_wages",
				"w2_1_wages --> total",
			},
		},
		{
			name: "Status Overlay",
			nodes: []domain.NodeDefinition{
				dsl.Input("wages").Build(),
				dsl.Input("spouse").Build(),
				dsl.Sum("agi", "wages").Build(),
				dsl.Sum("credit", "agi").Build(),
			},
			overlay: &graph.GraphOverlay{
				State: domain.NewState(map[string]domain.NodeSnapshot{
					"wages":  {Value: 1.0, Status: domain.StatusClean},
					"agi":    {Value: 5.0, Status: domain.StatusOverride, OverrideNote: "letter"},
					"credit": {Status: domain.StatusSkipped},
				}),
				Changed: []string{"agi", "agi", "spouse"},
			},
			contains: []string{
				"classDef override",
				"class wages clean;",
				"class agi override;",
				"class credit skipped;",
				"class agi changed;",
			},
			excludes: []string{
				"spouse",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.nodes, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() = \n%v\nUnexpected substring: %v", got, unwanted)
				}
			}
		})
	}
}
