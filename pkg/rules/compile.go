package rules

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/dsl"
	"github.com/paisatax/taxgraph/pkg/schema"
)

const indexPlaceholder = "{i}"

// Compile turns the file into node definitions in declaration order.
// Family templates expand to one definition per possible instance; which
// instances exist in a session is decided by SessionParams.Slots.
func (f *File) Compile() ([]domain.NodeDefinition, error) {
	b := dsl.New()
	for _, spec := range f.Nodes {
		if spec.Family == "" {
			if err := f.compileNode(b, spec, -1); err != nil {
				return nil, err
			}
			continue
		}
		for i := 0; i < f.Families[spec.Family].Max; i++ {
			if err := f.compileNode(b, spec, i); err != nil {
				return nil, err
			}
		}
	}
	return b.Build(), nil
}

// LoadInto loads path, compiles it and registers it as one batch.
func LoadInto(r dsl.Registrar, path string) (*File, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	defs, err := f.Compile()
	if err != nil {
		return nil, err
	}
	if err := r.Register(defs...); err != nil {
		return nil, fmt.Errorf("register %s: %w", f.Name, err)
	}
	return f, nil
}

// InstanceID returns the id of a family instance.
func InstanceID(family string, index int, id string) string {
	if strings.Contains(id, indexPlaceholder) {
		return strings.ReplaceAll(id, indexPlaceholder, strconv.Itoa(index))
	}
	return fmt.Sprintf("%s.%d.%s", family, index, id)
}

func (f *File) compileNode(b *dsl.Builder, spec NodeSpec, index int) error {
	id := spec.ID
	if index >= 0 {
		id = InstanceID(spec.Family, index, spec.ID)
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: node %q: %s", ErrInvalidRuleFile, id, fmt.Sprintf(format, args...))
	}

	vt, err := schema.ParseType(spec.Type)
	if err != nil {
		return fail("%v", err)
	}

	var nb *dsl.NodeBuilder
	switch spec.Kind {
	case "input":
		nb = b.Input(id).Default(normalizeDefault(vt, spec.Default))
	case "computed":
		deps, err := f.expandDeps(spec.Deps, index)
		if err != nil {
			return fail("%v", err)
		}
		fn, implied, err := compileOp(spec, deps)
		if err != nil {
			return fail("%v", err)
		}
		conds := make([]Condition, len(spec.When))
		for i, c := range spec.When {
			c.Node = substitute(c.Node, index)
			conds[i] = c
			implied = append(implied, c.Node)
		}
		applicable, err := compileConditions(conds)
		if err != nil {
			return fail("%v", err)
		}
		for _, dep := range implied {
			if !slices.Contains(deps, dep) {
				deps = append(deps, dep)
			}
		}
		nb = b.Computed(id, deps...).Compute(clamp(fn, spec.Floor, spec.Cap))
		if applicable != nil {
			nb.When(applicable)
		}
	default:
		return fail("unknown kind %q", spec.Kind)
	}

	nb.Describe(spec.Description)
	switch vt {
	case domain.TypeNumber:
		nb.Number()
	case domain.TypeInteger:
		nb.Integer()
	case domain.TypeText:
		nb.Text()
	case domain.TypeBoolean:
		nb.Boolean()
	}
	if spec.NonNegative {
		nb.NonNegative()
	}
	if spec.Min != nil {
		nb.Min(*spec.Min)
	}
	if spec.Max != nil {
		nb.Max(*spec.Max)
	}

	if spec.Scope.SecondFilerOnly {
		nb.SecondFilerOnly()
	}
	for _, s := range spec.Scope.FilingStatuses {
		nb.FilingStatuses(domain.FilingStatus(s))
	}
	nb.Years(spec.Scope.MinYear, spec.Scope.MaxYear)
	if index >= 0 {
		nb.Slot(spec.Family, index)
	}
	return nil
}

func compileOp(spec NodeSpec, deps []string) (domain.ComputeFunc, []string, error) {
	op, ok := operators[spec.Op]
	if !ok {
		return nil, nil, fmt.Errorf("unknown op %q", spec.Op)
	}

	var params any
	if op.params != nil {
		params = op.params()
		if err := decodeParams(spec.Params, params); err != nil {
			return nil, nil, fmt.Errorf("op %s: params: %w", spec.Op, err)
		}
	} else if len(spec.Params) > 0 {
		return nil, nil, fmt.Errorf("op %s takes no params", spec.Op)
	}

	if len(deps) < op.minDeps {
		return nil, nil, fmt.Errorf("op %s needs at least %d deps, got %d", spec.Op, op.minDeps, len(deps))
	}
	if op.maxDeps > 0 && len(deps) > op.maxDeps {
		return nil, nil, fmt.Errorf("op %s takes at most %d deps, got %d", spec.Op, op.maxDeps, len(deps))
	}

	var implied []string
	if op.implied != nil {
		implied = op.implied(params)
	}
	fn, err := op.build(deps, params)
	if err != nil {
		return nil, nil, err
	}
	return fn, implied, nil
}

// expandDeps resolves "{i}" placeholders and "family.*.name" wildcards.
func (f *File) expandDeps(deps []string, index int) ([]string, error) {
	out := make([]string, 0, len(deps))
	for _, dep := range deps {
		dep = substitute(dep, index)
		family, name, ok := splitWildcard(dep)
		if !ok {
			out = append(out, dep)
			continue
		}
		fam, known := f.Families[family]
		if !known {
			return nil, fmt.Errorf("wildcard %q: unknown family %q", dep, family)
		}
		for i := 0; i < fam.Max; i++ {
			out = append(out, InstanceID(family, i, name))
		}
	}
	return out, nil
}

func substitute(s string, index int) string {
	if index < 0 {
		return s
	}
	return strings.ReplaceAll(s, indexPlaceholder, strconv.Itoa(index))
}

func splitWildcard(dep string) (family, name string, ok bool) {
	family, rest, found := strings.Cut(dep, ".*.")
	if !found || family == "" || rest == "" {
		return "", "", false
	}
	return family, rest, true
}

// normalizeDefault stores YAML integers as float64 for number nodes.
func normalizeDefault(vt domain.ValueType, v any) any {
	if vt != domain.TypeNumber {
		return v
	}
	if n, ok := domain.AsNumber(v); ok {
		return n
	}
	return v
}
