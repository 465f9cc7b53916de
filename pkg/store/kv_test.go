package store

import (
	"context"
	"path/filepath"
	"testing"

	ds "github.com/ipfs/go-datastore"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultReadOnlyKVStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rootDir := t.TempDir()
	const dbPath = "db"
	const dbName = "test"

	writable, err := NewDefaultKVStore(rootDir, dbPath, dbName)
	require.NoError(t, err)
	require.NoError(t, writable.Put(ctx, ds.NewKey("/foo"), []byte("bar")))
	require.NoError(t, writable.Close())

	readOnly, err := NewDefaultReadOnlyKVStore(rootDir, dbPath, dbName)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = readOnly.Close()
	})

	val, err := readOnly.Get(ctx, ds.NewKey("/foo"))
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), val)

	err = readOnly.Put(ctx, ds.NewKey("/foo"), []byte("baz"))
	require.Error(t, err, "writing to a read-only store should fail")
}

func TestNewDefaultKVStore_AbsoluteDBPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	elsewhere := t.TempDir()

	db, err := NewDefaultKVStore(t.TempDir(), elsewhere, "abs")
	require.NoError(t, err)
	require.NoError(t, db.Put(ctx, ds.NewKey("/k"), []byte("v")))
	require.NoError(t, db.Close())

	require.DirExists(t, filepath.Join(elsewhere, "abs"))
}

func TestNewTestInMemoryKVStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := NewTestInMemoryKVStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Put(ctx, ds.NewKey("/state/a"), []byte("1")))
	val, err := db.Get(ctx, ds.NewKey("/state/a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), val)
}

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "/da/synced_height", GetSyncedHeightKey())
	require.Equal(t, "/a/b", GenerateKey([]string{"a", "b"}))
	require.Equal(t, "/a", GenerateKey([]string{"a", ""}))
}
