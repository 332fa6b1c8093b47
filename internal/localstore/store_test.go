package localstore

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tools.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_PutAndList(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put(domain.Tool{
		ID:             "local-1",
		Name:           "notes",
		SourceType:     domain.SourceUser,
		ApprovalStatus: domain.ApprovalDraft,
		OwnerID:        "u1",
	}))

	tools, err := store.Tools()
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "local-1", tools[0].ID)
	require.Equal(t, domain.SourceUser, tools[0].SourceType)
}

func TestStore_EmptyFileYieldsNoTools(t *testing.T) {
	store := openTestStore(t)
	tools, err := store.Tools()
	require.NoError(t, err)
	require.Empty(t, tools)
}

func TestStore_SkipsMalformedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.db")
	store, err := Open(path, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, store.Put(domain.Tool{ID: "good", Name: "good", SourceType: domain.SourceUser}))

	// Corrupt a second entry directly.
	require.NoError(t, store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUserTools).Put([]byte("bad"), []byte("{not json"))
	}))

	tools, err := store.Tools()
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "good", tools[0].ID)
	require.NoError(t, store.Close())
}

func TestStore_RejectsUseAfterClose(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.Tools()
	require.ErrorIs(t, err, ErrStoreClosed)
	require.ErrorIs(t, store.Put(domain.Tool{ID: "x"}), ErrStoreClosed)
}

func TestStore_FillsMissingIDFromKey(t *testing.T) {
	store := openTestStore(t)

	raw, err := json.Marshal(domain.Tool{Name: "keyed", SourceType: domain.SourceUser})
	require.NoError(t, err)
	require.NoError(t, store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUserTools).Put([]byte("from-key"), raw)
	}))

	tools, err := store.Tools()
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Equal(t, "from-key", tools[0].ID)
}
