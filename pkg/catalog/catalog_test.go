package catalog_test

import (
	"errors"
	"testing"

	"github.com/paisatax/taxgraph/pkg/catalog"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func input(id string) domain.NodeDefinition {
	return domain.NodeDefinition{ID: id, Kind: domain.KindInput, Default: 0.0}
}

func computed(id string, deps ...string) domain.NodeDefinition {
	return domain.NodeDefinition{
		ID:           id,
		Kind:         domain.KindComputed,
		Dependencies: deps,
		Compute: func(ctx domain.EvalContext) (any, error) {
			sum := 0.0
			for _, d := range deps {
				sum += ctx.Number(d)
			}
			return sum, nil
		},
	}
}

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestRegister_DiamondOrder(t *testing.T) {
	c := catalog.New()
	// Registered dependents-first to prove order does not follow registration.
	err := c.Register(
		computed("D", "B", "C"),
		computed("B", "A"),
		computed("C", "A"),
		input("A"),
	)
	require.NoError(t, err)

	order := c.Graph().Order()
	require.Len(t, order, 4)
	assert.Less(t, indexOf(order, "A"), indexOf(order, "B"))
	assert.Less(t, indexOf(order, "A"), indexOf(order, "C"))
	assert.Less(t, indexOf(order, "B"), indexOf(order, "D"))
	assert.Less(t, indexOf(order, "C"), indexOf(order, "D"))
}

func TestRegister_TieBreakIsRegistrationOrder(t *testing.T) {
	c := catalog.New()
	require.NoError(t, c.Register(input("z"), input("a"), input("m"), computed("total", "m", "a", "z")))

	assert.Equal(t, []string{"z", "a", "m", "total"}, c.Graph().Order())

	// Identical registrations produce identical orders.
	c2 := catalog.New()
	require.NoError(t, c2.Register(input("z"), input("a"), input("m"), computed("total", "m", "a", "z")))
	assert.Equal(t, c.Graph().Order(), c2.Graph().Order())
}

func TestRegister_Cycles(t *testing.T) {
	tests := []struct {
		name string
		defs []domain.NodeDefinition
	}{
		{
			name: "Direct",
			defs: []domain.NodeDefinition{computed("X", "Y"), computed("Y", "X")},
		},
		{
			name: "Indirect",
			defs: []domain.NodeDefinition{input("in"), computed("A", "in", "C"), computed("B", "A"), computed("C", "B")},
		},
		{
			name: "Self Loop",
			defs: []domain.NodeDefinition{computed("S", "S")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := catalog.New()
			err := c.Register(tt.defs...)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrCycle)
			assert.ErrorIs(t, err, domain.ErrStructural)

			var se *catalog.StructuralError
			require.True(t, errors.As(err, &se))
			require.GreaterOrEqual(t, len(se.Path), 2)
			assert.Equal(t, se.Path[0], se.Path[len(se.Path)-1], "cycle path must close on itself")

			assert.Equal(t, 0, c.Graph().Len(), "failed batch must not be registered")
		})
	}
}

func TestRegister_CycleAcrossBatches(t *testing.T) {
	c := catalog.New()
	require.NoError(t, c.Register(input("a"), computed("b", "a")))

	// Redefinition is forbidden, so a later batch can only close a loop
	// through its own nodes.
	err := c.Register(computed("c", "b", "c"))
	assert.ErrorIs(t, err, domain.ErrCycle)
	assert.Equal(t, 2, c.Graph().Len())
}

func TestRegister_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		defs    []domain.NodeDefinition
		wantErr error
	}{
		{"Unknown Dependency", []domain.NodeDefinition{computed("c", "missing")}, domain.ErrUnknownDependency},
		{"Duplicate In Batch", []domain.NodeDefinition{input("a"), input("a")}, domain.ErrDuplicateNode},
		{"Empty ID", []domain.NodeDefinition{input("")}, domain.ErrEmptyNodeID},
		{"Computed Without Dependencies", []domain.NodeDefinition{computed("c")}, domain.ErrNoDependencies},
		{"Computed Without Rule", []domain.NodeDefinition{input("a"), {ID: "c", Kind: domain.KindComputed, Dependencies: []string{"a"}}}, domain.ErrMissingCompute},
		{"Input With Dependencies", []domain.NodeDefinition{input("a"), {ID: "b", Kind: domain.KindInput, Dependencies: []string{"a"}}}, domain.ErrInputDependencies},
		{"Unknown Kind", []domain.NodeDefinition{{ID: "a", Kind: "magic"}}, domain.ErrInvalidKind},
		{"Invalid Default", []domain.NodeDefinition{{ID: "a", Kind: domain.KindInput, Default: -1.0,
			Constraints: domain.Constraints{Type: domain.TypeNumber, NonNegative: true}}}, domain.ErrInvalidDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := catalog.New()
			err := c.Register(tt.defs...)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrStructural)
		})
	}
}

func TestRegister_Batches(t *testing.T) {
	c := catalog.New()
	require.NoError(t, c.Register(input("wages"), input("interest")))
	v1 := c.Graph()

	require.NoError(t, c.Register(computed("agi", "wages", "interest")))
	v2 := c.Graph()

	assert.Greater(t, v2.Version(), v1.Version())
	assert.Equal(t, 2, v1.Len(), "published snapshots are immutable")
	assert.Equal(t, 3, v2.Len())
	assert.Equal(t, []string{"agi"}, v2.Dependents("wages"))

	t.Run("Redefinition Rejected", func(t *testing.T) {
		err := c.Register(input("wages"))
		assert.ErrorIs(t, err, domain.ErrDuplicateNode)
	})

	t.Run("Failed Batch Is Atomic", func(t *testing.T) {
		err := c.Register(input("ok"), computed("bad", "nope"))
		assert.ErrorIs(t, err, domain.ErrUnknownDependency)
		assert.False(t, c.Graph().Has("ok"))
	})
}

func TestRegister_DuplicateDependenciesCollapsed(t *testing.T) {
	c := catalog.New()
	require.NoError(t, c.Register(input("a"), computed("b", "a", "a")))

	def, ok := c.Graph().Node("b")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, def.Dependencies)
	assert.Equal(t, []string{"b"}, c.Graph().Dependents("a"))
}

func TestGraph_Materialize(t *testing.T) {
	c := catalog.New()
	spouse := input("spouse_wages")
	spouse.Scope = domain.Scope{SecondFilerOnly: true}
	w2a := input("w2.0.wages")
	w2a.Scope = domain.Scope{Family: "w2", Index: 0}
	w2b := input("w2.1.wages")
	w2b.Scope = domain.Scope{Family: "w2", Index: 1}

	require.NoError(t, c.Register(input("wages"), spouse, w2a, w2b,
		computed("total", "wages", "spouse_wages", "w2.0.wages", "w2.1.wages")))

	single := domain.SessionParams{TaxYear: 2024, FilingStatus: domain.FilingSingle, Slots: map[string]int{"w2": 1}}
	assert.Equal(t, []string{"wages", "w2.0.wages", "total"}, c.Graph().Materialize(single))

	joint := domain.SessionParams{TaxYear: 2024, FilingStatus: domain.FilingMarriedJointly, HasSecondFiler: true, Slots: map[string]int{"w2": 2}}
	assert.Equal(t, []string{"wages", "spouse_wages", "w2.0.wages", "w2.1.wages", "total"}, c.Graph().Materialize(joint))
}

func TestStructuralError_Message(t *testing.T) {
	c := catalog.New()
	err := c.Register(computed("X", "Y"), computed("Y", "X"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "X -> Y -> X")
}
