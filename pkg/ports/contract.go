package ports

import (
	"context"
	"testing"
	"time"

	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractSession(key string) *domain.Session {
	return &domain.Session{
		Params: domain.SessionParams{
			TaxYear:      2024,
			FilingStatus: domain.FilingMarriedJointly,
			SessionKey:   key,
			Slots:        map[string]int{"w2": 2},
		},
		State: domain.NewState(map[string]domain.NodeSnapshot{
			"wages":       {Value: 52000.0, Status: domain.StatusClean},
			"child_bonus": {Value: nil, Status: domain.StatusSkipped},
			"agi":         {Value: 60000.0, Status: domain.StatusOverride, OverrideNote: "per IRS notice"},
			"tax":         {Value: 4100.5, Status: domain.StatusError, Error: "division by zero"},
			"filed":       {Value: true, Status: domain.StatusClean},
		}),
		Revision:  3,
		UpdatedAt: time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
	}
}

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	key := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := contractSession(key)

		err := store.Save(ctx, key, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")

		assert.Equal(t, session.Params, loaded.Params)
		assert.Equal(t, session.Revision, loaded.Revision)
		assert.True(t, session.UpdatedAt.Equal(loaded.UpdatedAt))
		// Values may come back as float64 after serialization; Diff compares numerically.
		assert.Nil(t, domain.Diff(session.State, loaded.State), "state must round-trip")

		snap, ok := loaded.State.Get("agi")
		require.True(t, ok)
		assert.Equal(t, "per IRS notice", snap.OverrideNote)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		session := contractSession(key)
		session.Revision = 4
		require.NoError(t, store.Save(ctx, key, session))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 4, loaded.Revision)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, key, contractSession(key))
		require.NoError(t, err)

		err = store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, key), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := key + "-1"
		id2 := key + "-2"
		require.NoError(t, store.Save(ctx, id1, contractSession(id1)))
		require.NoError(t, store.Save(ctx, id2, contractSession(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
