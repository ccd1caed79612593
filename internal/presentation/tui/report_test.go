package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/paisatax/taxgraph/internal/presentation/tui"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestFrameReport(t *testing.T) {
	before := domain.NodeSnapshot{Value: 100.0, Status: domain.StatusClean}
	frame := &domain.TraceFrame{
		Trigger:    &domain.InputEvent{InstanceID: "agi", Value: 250.5, Source: domain.SourceOverride, OverrideNote: "per IRS notice"},
		VisitOrder: []string{"tax", "refund"},
		Changes: map[string]domain.Change{
			"agi":    {Before: &before, After: domain.NodeSnapshot{Value: 250.5, Status: domain.StatusOverride, OverrideNote: "per IRS notice"}},
			"refund": {Before: &before, After: domain.NodeSnapshot{Value: 100.0, Status: domain.StatusError, Error: "a|b"}},
			"tax":    {After: domain.NodeSnapshot{Value: 25.0, Status: domain.StatusClean}},
		},
		DurationMs: 0.25,
		Summary:    domain.Summary{TotalNodes: 3, CleanNodes: 1, OverrideNodes: 1, ErrorNodes: 1},
	}

	got := tui.FrameReport(frame)
	assert.Contains(t, got, "## override `agi` = 250.50")
	assert.Contains(t, got, "> per IRS notice")
	assert.Contains(t, got, "Recomputed: `tax` → `refund`")
	assert.Contains(t, got, "| `tax` | — | 25 | clean |")
	assert.Contains(t, got, `**error**: a\|b`)
	assert.Contains(t, got, "**3 nodes**: 1 clean, 0 skipped, 1 override, 1 error (0.25 ms)")

	// trigger first, then visit order
	assert.Less(t, strings.Index(got, "| `agi`"), strings.Index(got, "| `tax`"))
	assert.Less(t, strings.Index(got, "| `tax`"), strings.Index(got, "| `refund`"))
}

func TestFrameReport_Initialize(t *testing.T) {
	got := tui.FrameReport(&domain.TraceFrame{Changes: map[string]domain.Change{}})
	assert.Contains(t, got, "## Session initialized")
	assert.Contains(t, got, "_No changes._")
}

func TestStateReport(t *testing.T) {
	state := domain.NewState(map[string]domain.NodeSnapshot{
		"b": {Status: domain.StatusSkipped},
		"a": {Value: "single", Status: domain.StatusClean},
	})
	got := tui.StateReport(state)
	assert.Less(t, strings.Index(got, "`a`"), strings.Index(got, "`b`"))
	assert.Contains(t, got, "| `a` | single | clean |")
	assert.Contains(t, got, "| `b` | — | skipped |")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "—", tui.FormatValue(nil))
	assert.Equal(t, "42", tui.FormatValue(42))
	assert.Equal(t, "3.14", tui.FormatValue(3.14159))
	assert.Equal(t, "true", tui.FormatValue(true))
}

func TestNewRenderer_Plain(t *testing.T) {
	out, err := tui.NewRenderer(true, 0)("# Title")
	assert.NoError(t, err)
	assert.Equal(t, "# Title", out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
}
