package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/paisatax/taxgraph"
	"github.com/paisatax/taxgraph/pkg/adapters/memory"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/dsl"
	"github.com/paisatax/taxgraph/pkg/observability"
	"github.com/paisatax/taxgraph/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	eng := taxgraph.New(taxgraph.WithLifecycleHooks(metrics.Hooks()))
	require.NoError(t, eng.Register(
		dsl.Input("wages").Describe("W-2 box 1").Number().NonNegative().Default(0.0).Build(),
		dsl.Input("interest").Number().NonNegative().Default(0.0).Build(),
		dsl.Sum("agi", "wages", "interest").Build(),
	))

	srv := NewServer(eng, session.NewManager(memory.NewStore(), eng), WithMetrics(reg))
	return srv, srv.Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

var params = domain.SessionParams{TaxYear: 2024, FilingStatus: domain.FilingSingle, SessionKey: "abc"}

func TestSessionLifecycle(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, "POST", "/sessions", params)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[SessionResponse](t, w)
	assert.Equal(t, "abc", created.Key)
	assert.Equal(t, 1, created.Revision)
	assert.Equal(t, 3, created.Summary.TotalNodes)
	require.NotNil(t, created.Frame)
	assert.Nil(t, created.Frame.Trigger)

	w = do(t, h, "POST", "/sessions/abc/events", domain.InputEvent{InstanceID: "wages", Value: 50000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeBody[SessionResponse](t, w)
	assert.Equal(t, 2, updated.Revision)
	assert.Equal(t, 50000.0, updated.State.Value("agi"))
	assert.Contains(t, updated.Frame.Changes, "agi")
	assert.Equal(t, []string{"agi"}, updated.Frame.VisitOrder)

	w = do(t, h, "GET", "/sessions/abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[SessionResponse](t, w)
	assert.Equal(t, 2, got.Revision)
	assert.Nil(t, got.Frame)

	w = do(t, h, "GET", "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"abc"}, decodeBody[map[string][]string](t, w)["sessions"])

	w = do(t, h, "DELETE", "/sessions/abc", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, "GET", "/sessions/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSession_Errors(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, "POST", "/sessions", domain.SessionParams{TaxYear: 2024, FilingStatus: "complicated"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest("POST", "/sessions", strings.NewReader(`{"tax_year": "soon"`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/sessions", params).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, "POST", "/sessions", params).Code)
}

func TestProcessEvent_Rejected(t *testing.T) {
	_, h := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/sessions", params).Code)

	w := do(t, h, "POST", "/sessions/abc/events", domain.InputEvent{InstanceID: "wages", Value: -5})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeBody[ErrorResponse](t, w)
	require.NotNil(t, resp.Validation)
	assert.False(t, resp.Validation.Valid)
	assert.True(t, resp.Validation.HasCode(domain.CodeNegativeNotAllowed))

	w = do(t, h, "POST", "/sessions/missing/events", domain.InputEvent{InstanceID: "wages", Value: 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidateEvent(t *testing.T) {
	_, h := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/sessions", params).Code)

	w := do(t, h, "POST", "/sessions/abc/validate", domain.InputEvent{InstanceID: "agi", Value: 1})
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeBody[domain.ValidationResult](t, w)
	assert.False(t, res.Valid)
	assert.True(t, res.HasCode(domain.CodeNodeIsComputed))
}

func TestOverrideAndClear(t *testing.T) {
	_, h := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/sessions", params).Code)

	w := do(t, h, "POST", "/sessions/abc/events", domain.InputEvent{
		InstanceID: "agi", Value: 10, Source: domain.SourceOverride, OverrideNote: "IRS letter",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, "GET", "/sessions/abc/nodes/agi", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decodeBody[taxgraph.NodeInfo](t, w)
	assert.Equal(t, domain.StatusOverride, info.Snapshot.Status)
	assert.Equal(t, "IRS letter", info.Snapshot.OverrideNote)
	assert.Equal(t, []string{"wages", "interest"}, info.DependsOn)

	w = do(t, h, "DELETE", "/sessions/abc/overrides/agi", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cleared := decodeBody[SessionResponse](t, w)
	assert.Equal(t, 0.0, cleared.State.Value("agi"))
	assert.Equal(t, domain.StatusClean, cleared.State.Status("agi"))

	w = do(t, h, "DELETE", "/sessions/abc/overrides/agi", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, h, "GET", "/sessions/abc/nodes/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGraphInfoHealth(t *testing.T) {
	_, h := newTestServer(t)

	w := do(t, h, "GET", "/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	g := decodeBody[GraphResponse](t, w)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "agi", g.Nodes[2].ID)
	assert.Equal(t, "W-2 box 1", g.Nodes[0].Description)

	w = do(t, h, "GET", "/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, taxgraph.Version, decodeBody[map[string]any](t, w)["version"])

	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/health", nil).Code)

	w = do(t, h, "OPTIONS", "/sessions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/sessions", params).Code)

	w := do(t, h, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `taxgraph_passes_total{kind="initialize"} 1`)
}

func TestSubscribeEvents_Session(t *testing.T) {
	srv, h := newTestServer(t)
	ts := httptest.NewServer(h)
	defer ts.Close()

	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/sessions", params).Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/sessions/abc/stream?watch=agi", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	require.Eventually(t, func() bool { return srv.Streams.Subscribers("abc") == 1 }, time.Second, 10*time.Millisecond)

	w := do(t, h, "POST", "/sessions/abc/events", domain.InputEvent{InstanceID: "interest", Value: 12})
	require.Equal(t, http.StatusOK, w.Code)

	var data string
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: {") {
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}
	require.NotEmpty(t, data)

	var msg PassMessage
	require.NoError(t, json.Unmarshal([]byte(data), &msg))
	assert.Equal(t, 2, msg.Revision)
	assert.Equal(t, "interest", msg.Trigger.InstanceID)
	assert.Contains(t, msg.Changes, "agi")
}

func TestStreamManager_DropsWhenFull(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe("k")
	for i := 0; i < 20; i++ {
		sm.Broadcast("k", PassMessage{Revision: i})
	}
	assert.Len(t, ch, 10)

	cancel()
	assert.Equal(t, 0, sm.Subscribers("k"))
}

func TestPassMessage_Touches(t *testing.T) {
	msg := PassMessage{
		VisitOrder: []string{"agi", "tax"},
		Changes:    map[string]domain.Change{"wages": {}, "agi": {}},
	}
	assert.True(t, msg.touches(map[string]bool{"wages": true}), "changed input")
	assert.True(t, msg.touches(map[string]bool{"tax": true}), "recomputed without a change")
	assert.False(t, msg.touches(map[string]bool{"refund": true}))
}
