package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	ds "github.com/ipfs/go-datastore"
	badger4 "github.com/ipfs/go-ds-badger4"
)

var (
	// ErrSyncedHeightNotInitialized is returned when reading the synced height before InitializeSyncedHeight.
	ErrSyncedHeightNotInitialized = errors.New("synced height not initialized")

	// ErrHeightRegression is returned when a checkpoint would move the synced height backwards.
	ErrHeightRegression = errors.New("synced height must not decrease")
)

// SyncStore persists the DA height the node has durably processed.
type SyncStore interface {
	// InitializeSyncedHeight stores height as the synced height if none is present.
	InitializeSyncedHeight(ctx context.Context, height uint64) error
	// GetSyncedHeight returns the persisted synced height.
	GetSyncedHeight(ctx context.Context) (uint64, error)
	// SetSyncedHeight persists height as the new synced height.
	SetSyncedHeight(ctx context.Context, height uint64) error
	// Close releases the underlying datastore.
	Close() error
}

var _ SyncStore = (*DaDB)(nil)

// DaDB is the durable sync store of the node. It holds a single record, the synced DA height,
// encoded as 8 bytes big endian under /da/synced_height.
type DaDB struct {
	db  ds.Batching
	key ds.Key

	mu sync.Mutex
}

// OpenDaDB opens (or creates) the badger backed DaDB at path.
func OpenDaDB(path string) (*DaDB, error) {
	db, err := badger4.NewDatastore(filepath.Clean(path), BadgerOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open da db at %s: %w", path, err)
	}
	return NewDaDB(db), nil
}

// OpenReadOnlyDaDB opens an existing DaDB at path without write access.
func OpenReadOnlyDaDB(path string) (*DaDB, error) {
	db, err := NewDefaultReadOnlyKVStore(filepath.Dir(path), "", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open da db at %s: %w", path, err)
	}
	return NewDaDB(db), nil
}

// NewDaDB wraps an existing datastore.
func NewDaDB(db ds.Batching) *DaDB {
	return &DaDB{
		db:  db,
		key: ds.NewKey(GetSyncedHeightKey()),
	}
}

// InitializeSyncedHeight sets the synced height only if it has never been set.
// Calling it again, with any value, leaves the stored height unchanged.
func (d *DaDB) InitializeSyncedHeight(ctx context.Context, height uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	has, err := d.db.Has(ctx, d.key)
	if err != nil {
		return fmt.Errorf("failed to check synced height: %w", err)
	}
	if has {
		return nil
	}

	if err := d.db.Put(ctx, d.key, encodeHeight(height)); err != nil {
		return fmt.Errorf("failed to initialize synced height: %w", err)
	}
	return d.db.Sync(ctx, d.key)
}

// GetSyncedHeight returns the synced height.
func (d *DaDB) GetSyncedHeight(ctx context.Context) (uint64, error) {
	data, err := d.db.Get(ctx, d.key)
	if err != nil {
		if errors.Is(err, ds.ErrNotFound) {
			return 0, ErrSyncedHeightNotInitialized
		}
		return 0, fmt.Errorf("failed to load synced height: %w", err)
	}

	height, err := decodeHeight(data)
	if err != nil {
		return 0, fmt.Errorf("failed to decode synced height: %w", err)
	}
	return height, nil
}

// SetSyncedHeight persists height as the synced height and syncs it to disk before returning.
// A height lower than the stored one is rejected with ErrHeightRegression.
func (d *DaDB) SetSyncedHeight(ctx context.Context, height uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := d.GetSyncedHeight(ctx)
	switch {
	case errors.Is(err, ErrSyncedHeightNotInitialized):
	case err != nil:
		return err
	case height < current:
		return fmt.Errorf("%w: %d < %d", ErrHeightRegression, height, current)
	}

	if err := d.db.Put(ctx, d.key, encodeHeight(height)); err != nil {
		return fmt.Errorf("failed to save synced height: %w", err)
	}
	if err := d.db.Sync(ctx, d.key); err != nil {
		return fmt.Errorf("failed to sync synced height: %w", err)
	}
	return nil
}

// Close closes the underlying datastore.
func (d *DaDB) Close() error {
	return d.db.Close()
}
