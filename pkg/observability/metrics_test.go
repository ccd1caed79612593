package observability_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/paisatax/taxgraph"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/dsl"
	"github.com/paisatax/taxgraph/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, hooks domain.LifecycleHooks) *taxgraph.Engine {
	t.Helper()
	eng := taxgraph.New(taxgraph.WithLifecycleHooks(hooks))
	require.NoError(t, eng.Register(
		dsl.Input("wages").Number().NonNegative().Default(0.0).Build(),
		dsl.Sum("agi", "wages").Build(),
		dsl.Computed("ratio", "agi").Compute(func(ctx domain.EvalContext) (any, error) {
			if ctx.Number("agi") == 0 {
				return nil, errors.New("division by zero")
			}
			return 1 / ctx.Number("agi"), nil
		}).Build(),
	))
	return eng
}

var params = domain.SessionParams{TaxYear: 2024, FilingStatus: domain.FilingSingle, SessionKey: "m"}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	eng := newEngine(t, m.Hooks())

	res, err := eng.InitializeSession(params)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Passes.WithLabelValues("initialize")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodesEvaluated.WithLabelValues("clean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodesEvaluated.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeErrors.WithLabelValues("ratio")))

	res, err = eng.Process(domain.InputEvent{InstanceID: "wages", Value: 4.0}, res.State, params)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Passes.WithLabelValues("event")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.NodesEvaluated.WithLabelValues("clean")))

	_, err = eng.Process(domain.InputEvent{InstanceID: "agi", Value: 1.0}, res.State, params)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues(domain.CodeNodeIsComputed)))

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestNewMetrics_NilRegisterer(t *testing.T) {
	m := observability.NewMetrics(nil)
	m.Hooks().OnPassComplete(&domain.PassEvent{Initial: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Passes.WithLabelValues("initialize")))
}

func TestAggregate(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnPassComplete: func(*domain.PassEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnPassComplete:  func(*domain.PassEvent) { calls = append(calls, "b") },
		OnEventRejected: func(*domain.InputEvent, domain.ValidationResult) { calls = append(calls, "b-reject") },
	}

	h := observability.Aggregate(a, domain.LifecycleHooks{}, b)
	assert.Nil(t, h.OnNodeEvaluated)

	h.OnPassComplete(&domain.PassEvent{})
	h.OnEventRejected(&domain.InputEvent{}, domain.ValidationResult{})
	assert.Equal(t, []string{"a", "b", "b-reject"}, calls)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	eng := newEngine(t, observability.LogHooks(logger))

	res, err := eng.InitializeSession(params)
	require.NoError(t, err)
	_, err = eng.Process(domain.InputEvent{InstanceID: "nope", Value: 1.0}, res.State, params)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"pass_complete"`)
	assert.Contains(t, out, `"msg":"event_rejected"`)
	assert.Contains(t, out, domain.CodeNodeNotFound)
}
