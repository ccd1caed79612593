package rules

import (
	"fmt"
	"math"
	"sort"

	"github.com/mitchellh/mapstructure"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/dsl"
)

// operator compiles one "op" of a rule file into a compute rule.
type operator struct {
	minDeps int
	maxDeps int // 0 = unbounded
	params  func() any
	// implied returns dependencies derived from params.
	implied func(params any) []string
	build   func(deps []string, params any) (domain.ComputeFunc, error)
}

// Bracket is one band of a progressive schedule. A nil UpTo marks the top band.
type Bracket struct {
	UpTo *float64 `mapstructure:"up_to"`
	Rate float64  `mapstructure:"rate"`
}

// BracketParams configures the "brackets" op. ByStatus overrides Brackets
// for the listed filing statuses.
type BracketParams struct {
	Brackets []Bracket           `mapstructure:"brackets"`
	ByStatus map[string][]Bracket `mapstructure:"by_status"`
}

// PhaseOutParams configures the "phase_out" op: the first dependency is
// reduced by the excess of the second over the threshold.
type PhaseOutParams struct {
	Threshold  float64            `mapstructure:"threshold"`
	Thresholds map[string]float64 `mapstructure:"thresholds"`
	// Rate reduces continuously per unit of excess.
	Rate float64 `mapstructure:"rate"`
	// Step and PerStep reduce by PerStep for each started Step of excess.
	Step    float64 `mapstructure:"step"`
	PerStep float64 `mapstructure:"per_step"`
}

// ScaleParams configures the "scale" op.
type ScaleParams struct {
	Factor float64 `mapstructure:"factor"`
}

// SwitchParams configures the "filing_status" op, which copies the value of
// the node selected by the session's filing status.
type SwitchParams struct {
	Cases   map[string]string `mapstructure:"cases"`
	Default string            `mapstructure:"default"`
}

var operators = map[string]operator{
	"sum": {
		minDeps: 1,
		build: func(deps []string, _ any) (domain.ComputeFunc, error) {
			return dsl.SumOf(deps...), nil
		},
	},
	"difference": {
		minDeps: 1,
		build: func(deps []string, _ any) (domain.ComputeFunc, error) {
			return dsl.DifferenceOf(deps[0], deps[1:]...), nil
		},
	},
	"product": {
		minDeps: 1,
		build: func(deps []string, _ any) (domain.ComputeFunc, error) {
			return dsl.ProductOf(deps...), nil
		},
	},
	"min": {
		minDeps: 1,
		build: func(deps []string, _ any) (domain.ComputeFunc, error) {
			return dsl.MinOf(deps...), nil
		},
	},
	"max": {
		minDeps: 1,
		build: func(deps []string, _ any) (domain.ComputeFunc, error) {
			return dsl.MaxOf(deps...), nil
		},
	},
	"copy": {
		minDeps: 1,
		maxDeps: 1,
		build: func(deps []string, _ any) (domain.ComputeFunc, error) {
			src := deps[0]
			return func(ctx domain.EvalContext) (any, error) {
				v, _ := ctx.Value(src)
				return v, nil
			}, nil
		},
	},
	"scale": {
		minDeps: 1,
		maxDeps: 1,
		params:  func() any { return &ScaleParams{} },
		build: func(deps []string, p any) (domain.ComputeFunc, error) {
			return dsl.Scale(deps[0], p.(*ScaleParams).Factor), nil
		},
	},
	"brackets": {
		minDeps: 1,
		maxDeps: 1,
		params:  func() any { return &BracketParams{} },
		build:   buildBrackets,
	},
	"phase_out": {
		minDeps: 2,
		maxDeps: 2,
		params:  func() any { return &PhaseOutParams{} },
		build:   buildPhaseOut,
	},
	"filing_status": {
		params:  func() any { return &SwitchParams{} },
		implied: switchTargets,
		build:   buildSwitch,
	},
}

// Operators returns the names of the built-in ops, sorted.
func Operators() []string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodeParams(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

func checkSchedule(name string, bands []Bracket) error {
	if len(bands) == 0 {
		return fmt.Errorf("schedule %s is empty", name)
	}
	prev := math.Inf(-1)
	for i, b := range bands {
		last := i == len(bands)-1
		if b.UpTo == nil {
			if !last {
				return fmt.Errorf("schedule %s: only the last band may be open-ended", name)
			}
			continue
		}
		if *b.UpTo <= prev {
			return fmt.Errorf("schedule %s: band limits must increase", name)
		}
		prev = *b.UpTo
	}
	return nil
}

// progressiveTax applies bands to amount.
func progressiveTax(amount float64, bands []Bracket) float64 {
	tax, lower := 0.0, 0.0
	for _, b := range bands {
		if amount <= lower {
			break
		}
		upper := math.Inf(1)
		if b.UpTo != nil {
			upper = *b.UpTo
		}
		tax += (math.Min(amount, upper) - lower) * b.Rate
		lower = upper
	}
	return tax
}

func buildBrackets(deps []string, p any) (domain.ComputeFunc, error) {
	params := p.(*BracketParams)
	if len(params.Brackets) == 0 && len(params.ByStatus) == 0 {
		return nil, fmt.Errorf("brackets: no schedule given")
	}
	if len(params.Brackets) > 0 {
		if err := checkSchedule("default", params.Brackets); err != nil {
			return nil, err
		}
	}
	for status, bands := range params.ByStatus {
		if err := checkSchedule(status, bands); err != nil {
			return nil, err
		}
	}

	base := deps[0]
	return func(ctx domain.EvalContext) (any, error) {
		bands, ok := params.ByStatus[string(ctx.Params().FilingStatus)]
		if !ok {
			bands = params.Brackets
		}
		if len(bands) == 0 {
			return nil, fmt.Errorf("no bracket schedule for filing status %q", ctx.Params().FilingStatus)
		}
		return progressiveTax(math.Max(ctx.Number(base), 0), bands), nil
	}, nil
}

func buildPhaseOut(deps []string, p any) (domain.ComputeFunc, error) {
	params := p.(*PhaseOutParams)
	if params.Step < 0 || params.Rate < 0 || params.PerStep < 0 {
		return nil, fmt.Errorf("phase_out: rate, step and per_step must not be negative")
	}
	if params.Step > 0 && params.PerStep == 0 {
		return nil, fmt.Errorf("phase_out: step requires per_step")
	}

	amountID, incomeID := deps[0], deps[1]
	return func(ctx domain.EvalContext) (any, error) {
		threshold := params.Threshold
		if t, ok := params.Thresholds[string(ctx.Params().FilingStatus)]; ok {
			threshold = t
		}
		amount := ctx.Number(amountID)
		excess := ctx.Number(incomeID) - threshold
		if excess <= 0 {
			return amount, nil
		}
		var reduction float64
		if params.Step > 0 {
			reduction = math.Ceil(excess/params.Step) * params.PerStep
		} else {
			reduction = excess * params.Rate
		}
		return math.Max(amount-reduction, 0), nil
	}, nil
}

func switchTargets(p any) []string {
	params := p.(*SwitchParams)
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	statuses := make([]string, 0, len(params.Cases))
	for s := range params.Cases {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		add(params.Cases[s])
	}
	add(params.Default)
	return out
}

func buildSwitch(_ []string, p any) (domain.ComputeFunc, error) {
	params := p.(*SwitchParams)
	if len(params.Cases) == 0 && params.Default == "" {
		return nil, fmt.Errorf("filing_status: no cases given")
	}
	return func(ctx domain.EvalContext) (any, error) {
		target, ok := params.Cases[string(ctx.Params().FilingStatus)]
		if !ok {
			target = params.Default
		}
		if target == "" {
			return nil, domain.ErrNotApplicable
		}
		v, _ := ctx.Value(target)
		return v, nil
	}, nil
}

// clamp bounds the numeric result of fn.
func clamp(fn domain.ComputeFunc, floor, ceiling *float64) domain.ComputeFunc {
	if floor == nil && ceiling == nil {
		return fn
	}
	if floor != nil {
		fn = dsl.FloorAt(fn, *floor)
	}
	if ceiling == nil {
		return fn
	}
	limit := *ceiling
	return func(ctx domain.EvalContext) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return v, err
		}
		n, ok := domain.AsNumber(v)
		if !ok {
			return v, nil
		}
		return math.Min(n, limit), nil
	}
}
