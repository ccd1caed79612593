package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paisatax/taxgraph/pkg/adapters/bolt"
	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltStore_Contract(t *testing.T) {
	store, err := bolt.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer store.Close()

	ports.RunStateStoreContract(t, store)
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	store, err := bolt.Open(path)
	require.NoError(t, err)
	session := &domain.Session{
		Params:   domain.SessionParams{TaxYear: 2023, FilingStatus: domain.FilingHeadOfHousehold},
		State:    domain.NewState(map[string]domain.NodeSnapshot{"a": {Value: 3.0, Status: domain.StatusClean}}),
		Revision: 5,
	}
	require.NoError(t, store.Save(ctx, "persisted", session))
	require.NoError(t, store.Close())

	store, err = bolt.Open(path)
	require.NoError(t, err)
	defer store.Close()

	loaded, err := store.Load(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Revision)
	assert.Equal(t, 3.0, loaded.State.Value("a"))
}
