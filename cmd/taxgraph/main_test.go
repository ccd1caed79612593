package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paisatax/taxgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = "../../pkg/rules/testdata/1040.yaml"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "taxgraph version "+taxgraph.Version+"\n", out)
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", testCatalog, "--tax-year", "2024", "--slot", "w2=2")
	require.NoError(t, err)
	assert.Contains(t, out, "Catalog 'form-1040-lite' 2024.1 is valid")
	assert.Contains(t, out, "A 2024 single session materializes")

	_, err = execute(t, "validate", filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestGraphCommand(t *testing.T) {
	out, err := execute(t, "graph", testCatalog)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph LR"))
	assert.Contains(t, out, "agi")
}

func TestSessionsCommands(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "sessions", "ls", "--store", "bolt", "--store-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No stored sessions found.")

	_, err = execute(t, "sessions", "rm", "--store", "bolt", "--store-dir", dir)
	assert.Error(t, err)

	_, err = execute(t, "sessions", "inspect", "ghost", "--store", "bolt", "--store-dir", dir)
	assert.Error(t, err)
}
