package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/paisatax/taxgraph/internal/logging"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogPath = "../../pkg/rules/testdata/1040.yaml"

const script = `
session:
  session_key: s1
  tax_year: 2024
  filing_status: single
  slots: {w2: 1}
events:
  - {instance_id: w2.0.wages, value: 50000}
  - {instance_id: interest, value: 1000, source: ocr}
  - {instance_id: agi, value: 1}
`

func writeScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))
	return path
}

func number(t *testing.T, v any) float64 {
	t.Helper()
	n, ok := domain.AsNumber(v)
	require.True(t, ok, "not a number: %#v", v)
	return n
}

func TestParseScript(t *testing.T) {
	s, err := ParseScript([]byte(script))
	require.NoError(t, err)
	assert.Equal(t, 2024, s.Session.TaxYear)
	assert.Equal(t, 1, s.Session.SlotCount("w2"))
	require.Len(t, s.Events, 3)
	assert.Equal(t, domain.SourcePreparer, s.Events[0].Source)
	assert.Equal(t, domain.SourceOCR, s.Events[1].Source)

	_, err = ParseScript([]byte("events:\n  - {value: 1}\n"))
	assert.ErrorContains(t, err, "missing instance_id")

	_, err = ParseScript([]byte("events: [unclosed"))
	assert.Error(t, err)
}

func TestCreateLogger(t *testing.T) {
	logger, err := CreateLogger(Options{})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = CreateLogger(Options{LogLevel: "loud"})
	assert.Error(t, err)

	_, err = CreateLogger(Options{LogLevel: "debug", LogFormat: "json"})
	assert.NoError(t, err)
}

func TestCreateEngine(t *testing.T) {
	engine, f, err := CreateEngine(catalogPath, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "form-1040-lite", f.Name)
	assert.True(t, engine.Catalog().Graph().Has("balance_due"))

	_, _, err = CreateEngine("", logging.NewNop())
	assert.Error(t, err)

	_, _, err = CreateEngine(filepath.Join(t.TempDir(), "missing.yaml"), logging.NewNop())
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	for _, kind := range []string{"", StoreFile, StoreMemory, StoreBolt} {
		t.Run("store "+kind, func(t *testing.T) {
			b, err := OpenStore(Options{Store: kind, StoreDir: dir})
			require.NoError(t, err)
			defer b.Close()
			assert.NotNil(t, b.Store)
			assert.Nil(t, b.Locker)
		})
	}

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		b, err := OpenStore(Options{Store: StoreRedis, RedisAddr: mr.Addr(), RedisTTL: time.Hour})
		require.NoError(t, err)
		defer b.Close()
		assert.NotNil(t, b.Locker)
	})

	_, err := OpenStore(Options{Store: StoreRedis})
	assert.ErrorContains(t, err, "--redis-addr")

	_, err = OpenStore(Options{Store: "s3"})
	assert.ErrorContains(t, err, "unknown store")
}

func TestOpenStore_Middleware(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	opts := Options{Store: StoreBolt, StoreDir: t.TempDir(), EncryptionKey: key, RedactPatterns: middleware.DefaultPIIPatterns}
	b, err := OpenStore(opts)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	sess := &domain.Session{State: domain.NewState(map[string]domain.NodeSnapshot{
		"taxpayer_ssn": {Value: "123-45-6789", Status: domain.StatusClean},
	})}
	require.NoError(t, b.Store.Save(ctx, "k", sess))
	loaded, err := b.Store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.State.Value("taxpayer_ssn"))

	_, err = OpenStore(Options{Store: StoreMemory, EncryptionKey: "not base64!"})
	assert.Error(t, err)
	_, err = OpenStore(Options{Store: StoreMemory, EncryptionKey: base64.StdEncoding.EncodeToString([]byte("short"))})
	assert.Error(t, err)
}

func TestRun_ScriptThenResume(t *testing.T) {
	ctx := context.Background()
	base := Options{CatalogPath: catalogPath, Store: StoreFile, StoreDir: t.TempDir()}

	var out bytes.Buffer
	report, err := Run(ctx, RunOptions{Options: base, ScriptPath: writeScript(t)}, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.True(t, report.Created)
	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, 3, report.Session.Revision)
	assert.Equal(t, 51000.0, number(t, report.Session.State.Value("agi")))
	assert.False(t, report.Session.State.Has("w2.1.wages"))
	assert.Contains(t, out.String(), ">>> Session 's1' created")
	assert.Contains(t, out.String(), "**Rejected** `agi`")

	out.Reset()
	report, err = Run(ctx, RunOptions{
		Options: base,
		Params:  domain.SessionParams{SessionKey: "s1"},
	}, strings.NewReader("interest = 2000\nquit\n"), &out)
	require.NoError(t, err)
	assert.False(t, report.Created)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 4, report.Session.Revision)
	assert.Equal(t, 52000.0, number(t, report.Session.State.Value("agi")))
	assert.Contains(t, out.String(), "resumed at revision 3")
}

func TestRun_StopOnReject(t *testing.T) {
	opts := RunOptions{
		Options:      Options{CatalogPath: catalogPath, Store: StoreMemory},
		ScriptPath:   writeScript(t),
		StopOnReject: true,
		JSON:         true,
	}
	var out bytes.Buffer
	report, err := Run(context.Background(), opts, strings.NewReader(""), &out)
	require.ErrorIs(t, err, domain.ErrInvalidEvent)
	assert.Equal(t, 2, report.Applied)
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 3)
}

func TestRun_FreshAndInvalidParams(t *testing.T) {
	base := Options{CatalogPath: catalogPath, StoreDir: t.TempDir()}
	ctx := context.Background()

	_, err := Run(ctx, RunOptions{Options: base, Params: domain.SessionParams{SessionKey: "x"}}, strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	params := domain.SessionParams{SessionKey: "x", TaxYear: 2024, FilingStatus: domain.FilingSingle}
	_, err = Run(ctx, RunOptions{Options: base, Params: params}, strings.NewReader("interest = 5\n"), &bytes.Buffer{})
	require.NoError(t, err)

	report, err := Run(ctx, RunOptions{Options: base, Params: params, Fresh: true}, strings.NewReader(""), &bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, report.Created)
	assert.Equal(t, 1, report.Session.Revision)
}

func TestWatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := WatchFile(ctx, path, logging.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("c"), 0o644))

	select {
	case got := <-ch:
		assert.Equal(t, path, got)
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	for range ch {
	}
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, HandleExecutionError(context.Canceled))
	assert.NoError(t, HandleExecutionError(nil))
	assert.Error(t, HandleExecutionError(domain.ErrSessionNotFound))
}
