package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paisatax/taxgraph/pkg/adapters/file"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunStateStoreContract(t, store)
}

func TestFileStore_NoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	session := &domain.Session{
		Params: domain.SessionParams{TaxYear: 2024, FilingStatus: domain.FilingSingle},
		State:  domain.NewState(map[string]domain.NodeSnapshot{"wages": {Value: 1.0, Status: domain.StatusClean}}),
	}
	for i := 0; i < 3; i++ {
		session.Revision = i
		require.NoError(t, store.Save(ctx, "s1", session))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1.json", entries[0].Name())

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Revision)
}

func TestFileStore_RejectsPathKeys(t *testing.T) {
	dir := t.TempDir()
	store := file.New(filepath.Join(dir, "sessions"))
	ctx := context.Background()

	for _, key := range []string{"", "../escape", `a\b`, ".."} {
		err := store.Save(ctx, key, &domain.Session{State: domain.EmptyState()})
		assert.Error(t, err, "key %q", key)
	}
	_, err := os.Stat(filepath.Join(dir, "escape.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "nope"))
	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
