package store

import (
	"context"
	"path/filepath"
	"testing"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"
)

func newTestDaDB(t *testing.T) *DaDB {
	t.Helper()
	return NewDaDB(dssync.MutexWrap(ds.NewMapDatastore()))
}

func TestDaDB_InitializeIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDaDB(t)

	_, err := db.GetSyncedHeight(ctx)
	require.ErrorIs(t, err, ErrSyncedHeightNotInitialized)

	require.NoError(t, db.InitializeSyncedHeight(ctx, 100))
	require.NoError(t, db.InitializeSyncedHeight(ctx, 5))
	require.NoError(t, db.InitializeSyncedHeight(ctx, 500))

	h, err := db.GetSyncedHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(100), h)
}

func TestDaDB_SetSyncedHeightIsMonotonic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDaDB(t)
	require.NoError(t, db.InitializeSyncedHeight(ctx, 10))

	for _, h := range []uint64{11, 12, 15, 15} {
		require.NoError(t, db.SetSyncedHeight(ctx, h))
		got, err := db.GetSyncedHeight(ctx)
		require.NoError(t, err)
		require.Equal(t, h, got)
	}

	err := db.SetSyncedHeight(ctx, 14)
	require.ErrorIs(t, err, ErrHeightRegression)

	got, err := db.GetSyncedHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(15), got)

	// initialization after progress does not rewind
	require.NoError(t, db.InitializeSyncedHeight(ctx, 1))
	got, err = db.GetSyncedHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(15), got)
}

func TestDaDB_Encoding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	raw := dssync.MutexWrap(ds.NewMapDatastore())
	db := NewDaDB(raw)

	require.NoError(t, db.InitializeSyncedHeight(ctx, 0x0102))
	val, err := raw.Get(ctx, ds.NewKey("/da/synced_height"))
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0x01, 0x02}, val)

	require.NoError(t, raw.Put(ctx, ds.NewKey("/da/synced_height"), []byte{1, 2, 3}))
	_, err = db.GetSyncedHeight(ctx)
	require.Error(t, err)
}

func TestDaDB_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "da-db")

	db, err := OpenDaDB(path)
	require.NoError(t, err)
	require.NoError(t, db.InitializeSyncedHeight(ctx, 100))
	require.NoError(t, db.SetSyncedHeight(ctx, 103))
	require.NoError(t, db.Close())

	db, err = OpenDaDB(path)
	require.NoError(t, err)
	require.NoError(t, db.InitializeSyncedHeight(ctx, 100))
	h, err := db.GetSyncedHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(103), h)
	require.NoError(t, db.Close())

	ro, err := OpenReadOnlyDaDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ro.Close() })
	h, err = ro.GetSyncedHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(103), h)
}
