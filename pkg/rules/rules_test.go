package rules_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paisatax/taxgraph"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadEngine(t *testing.T) *taxgraph.Engine {
	t.Helper()
	eng := taxgraph.New()
	_, err := rules.LoadInto(eng, filepath.Join("testdata", "1040.yaml"))
	require.NoError(t, err)
	return eng
}

func apply(t *testing.T, eng *taxgraph.Engine, params domain.SessionParams, values map[string]any) *domain.State {
	t.Helper()
	res, err := eng.InitializeSession(params)
	require.NoError(t, err)
	state := res.State
	for id, v := range values {
		r, err := eng.Process(domain.InputEvent{InstanceID: id, Value: v, Source: domain.SourcePreparer}, state, params)
		require.NoError(t, err, "setting %s", id)
		state = r.State
	}
	return state
}

func number(t *testing.T, s *domain.State, id string) float64 {
	t.Helper()
	n, ok := domain.AsNumber(s.Value(id))
	require.True(t, ok, "node %s has no numeric value (%v)", id, s.Value(id))
	return n
}

func TestLoad_Form1040(t *testing.T) {
	eng := loadEngine(t)

	t.Run("Single Filer", func(t *testing.T) {
		params := domain.SessionParams{TaxYear: 2024, FilingStatus: domain.FilingSingle, Slots: map[string]int{"w2": 1}}
		s := apply(t, eng, params, map[string]any{
			"w2.0.wages":          60000.0,
			"w2.0.withholding":    5000.0,
			"interest":            1000.0,
			"qualifying_children": 1,
		})

		assert.False(t, s.Has("w2.1.wages"))
		assert.False(t, s.Has("spouse_wages"))
		assert.InDelta(t, 61000, number(t, s, "agi"), 0.001)
		assert.InDelta(t, 46400, number(t, s, "taxable_income"), 0.001)
		assert.InDelta(t, 5336, number(t, s, "income_tax"), 0.001)
		assert.InDelta(t, 2000, number(t, s, "child_credit"), 0.001)
		assert.InDelta(t, -1664, number(t, s, "balance_due"), 0.001)
	})

	t.Run("Joint Filers", func(t *testing.T) {
		params := domain.SessionParams{TaxYear: 2024, FilingStatus: domain.FilingMarriedJointly, HasSecondFiler: true, Slots: map[string]int{"w2": 2}}
		s := apply(t, eng, params, map[string]any{
			"w2.0.wages": 100000.0,
			"w2.1.wages": 80000.0,
		})

		assert.True(t, s.Has("spouse_wages"))
		assert.InDelta(t, 29200, number(t, s, "standard_deduction"), 0.001)
		assert.InDelta(t, 23282, number(t, s, "income_tax"), 0.001)
		assert.Equal(t, domain.StatusSkipped, s.Status("child_credit_base"))
		assert.Equal(t, domain.StatusSkipped, s.Status("child_credit"))
		assert.InDelta(t, 23282, number(t, s, "tax_after_credits"), 0.001)
	})

	t.Run("Phase Out", func(t *testing.T) {
		params := domain.SessionParams{TaxYear: 2024, FilingStatus: domain.FilingSingle, Slots: map[string]int{"w2": 1}}
		s := apply(t, eng, params, map[string]any{
			"w2.0.wages":          210500.0,
			"qualifying_children": 2,
		})
		assert.InDelta(t, 3450, number(t, s, "child_credit"), 0.001)
	})

	t.Run("Floor", func(t *testing.T) {
		params := domain.SessionParams{TaxYear: 2024, FilingStatus: domain.FilingSingle}
		s := apply(t, eng, params, map[string]any{"interest": 100.0})
		assert.Equal(t, 0.0, number(t, s, "taxable_income"))
	})
}

func TestCompile_FamilyExpansion(t *testing.T) {
	f, err := rules.Load(filepath.Join("testdata", "1040.yaml"))
	require.NoError(t, err)

	defs, err := f.Compile()
	require.NoError(t, err)

	byID := make(map[string]domain.NodeDefinition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}
	for _, id := range []string{"w2.0.wages", "w2.1.wages", "w2.2.wages"} {
		require.Contains(t, byID, id)
		assert.Equal(t, "w2", byID[id].Scope.Family)
	}
	assert.NotContains(t, byID, "w2.3.wages")
	assert.Equal(t, 2, byID["w2.2.withholding"].Scope.Index)

	assert.Equal(t, []string{"w2.0.wages", "w2.1.wages", "w2.2.wages", "spouse_wages"}, byID["total_wages"].Dependencies)
	assert.ElementsMatch(t, []string{"std_joint", "std_single"}, byID["standard_deduction"].Dependencies)
	assert.Equal(t, 14600.0, byID["std_single"].Default, "number defaults are stored as float64")
	assert.Equal(t, "Adjusted gross income", byID["agi"].Description)
}

func TestCompile_IndexPlaceholder(t *testing.T) {
	f, err := rules.Parse([]byte(`
name: placeholders
families:
  k1: {max: 2}
nodes:
  - {id: income, family: k1, kind: input, type: number, default: 0}
  - {id: share, family: k1, kind: input, type: number, default: 1}
  - id: "k1_{i}_allocated"
    family: k1
    kind: computed
    op: product
    deps: ["k1.{i}.income", "k1.{i}.share"]
`))
	require.NoError(t, err)

	defs, err := f.Compile()
	require.NoError(t, err)

	var found bool
	for _, d := range defs {
		if d.ID == "k1_1_allocated" {
			found = true
			assert.Equal(t, []string{"k1.1.income", "k1.1.share"}, d.Dependencies)
		}
	}
	assert.True(t, found)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"Missing Name", "nodes: [{id: a, kind: input}]"},
		{"No Nodes", "name: x"},
		{"Bad Kind", "name: x\nnodes: [{id: a, kind: magic}]"},
		{"Computed Without Op", "name: x\nnodes: [{id: a, kind: computed, deps: [b]}]"},
		{"Input With Deps", "name: x\nnodes: [{id: a, kind: input, deps: [b]}]"},
		{"Unknown Op", "name: x\nnodes: [{id: a, kind: computed, op: sqrt, deps: [b]}]"},
		{"Unknown Family", "name: x\nnodes: [{id: a, kind: input, family: w2}]"},
		{"Bad Filing Status", "name: x\nnodes: [{id: a, kind: input, scope: {filing_statuses: [complicated]}}]"},
		{"Bad Condition", "name: x\nnodes: [{id: a, kind: computed, op: sum, deps: [b], when: [{node: b, op: between}]}]"},
		{"Whitespace Id", "name: x\nnodes: [{id: 'a b', kind: input}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rules.Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, rules.ErrInvalidRuleFile)
		})
	}
}

func TestCompile_InvalidOps(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"Unknown Param", "name: x\nnodes: [{id: a, kind: input}, {id: b, kind: computed, op: scale, deps: [a], params: {factr: 2}}]"},
		{"Too Many Deps", "name: x\nnodes: [{id: a, kind: input}, {id: b, kind: computed, op: copy, deps: [a, a2]}]"},
		{"Unordered Brackets", "name: x\nnodes: [{id: a, kind: input}, {id: b, kind: computed, op: brackets, deps: [a], params: {brackets: [{up_to: 10, rate: 0.1}, {up_to: 5, rate: 0.2}]}}]"},
		{"Open Band Not Last", "name: x\nnodes: [{id: a, kind: input}, {id: b, kind: computed, op: brackets, deps: [a], params: {brackets: [{rate: 0.1}, {up_to: 5, rate: 0.2}]}}]"},
		{"Params On Sum", "name: x\nnodes: [{id: a, kind: input}, {id: b, kind: computed, op: sum, deps: [a], params: {x: 1}}]"},
		{"Non Numeric Condition", "name: x\nnodes: [{id: a, kind: input}, {id: b, kind: computed, op: sum, deps: [a], when: [{node: a, op: gt, value: lots}]}]"},
		{"Wildcard Unknown Family", "name: x\nnodes: [{id: b, kind: computed, op: sum, deps: [w2.*.wages]}]"},
		{"Bad Type", "name: x\nnodes: [{id: a, kind: input, type: money_market}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := rules.Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = f.Compile()
			assert.ErrorIs(t, err, rules.ErrInvalidRuleFile)
		})
	}
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"name": "json-catalog",
		"nodes": [
			{"id": "a", "kind": "input", "type": "number", "default": 2},
			{"id": "b", "kind": "computed", "op": "scale", "deps": ["a"], "params": {"factor": 3}}
		]
	}`), 0o644))

	eng := taxgraph.New()
	f, err := rules.LoadInto(eng, path)
	require.NoError(t, err)
	assert.Equal(t, "json-catalog", f.Name)

	res, err := eng.InitializeSession(domain.SessionParams{TaxYear: 2024, FilingStatus: domain.FilingSingle})
	require.NoError(t, err)
	assert.Equal(t, 6.0, res.State.Value("b"))
}

func TestOperators(t *testing.T) {
	assert.Contains(t, rules.Operators(), "brackets")
	assert.Contains(t, rules.Operators(), "filing_status")
}
