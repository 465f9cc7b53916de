package store

import (
	"path"
	"path/filepath"
	"strings"

	ds "github.com/ipfs/go-datastore"
	badger4 "github.com/ipfs/go-ds-badger4"
)

// NewDefaultKVStore opens (or creates) the badger store named dbName under rootDir/dbPath.
// An absolute dbPath is used as is.
func NewDefaultKVStore(rootDir, dbPath, dbName string) (ds.Batching, error) {
	return badger4.NewDatastore(kvStorePath(rootDir, dbPath, dbName), BadgerOptions())
}

// NewDefaultReadOnlyKVStore opens an existing store without write access, for the tooling
// that inspects the databases of a stopped node.
func NewDefaultReadOnlyKVStore(rootDir, dbPath, dbName string) (ds.Batching, error) {
	opts := BadgerOptions()
	opts.Options = opts.WithReadOnly(true)
	return badger4.NewDatastore(kvStorePath(rootDir, dbPath, dbName), opts)
}

// NewTestInMemoryKVStore returns a badger store that never touches the disk.
func NewTestInMemoryKVStore() (ds.Batching, error) {
	return badger4.NewDatastore("", &badger4.Options{
		Options: badger4.DefaultOptions.WithInMemory(true),
	})
}

// GenerateKey joins fields into a clean, slash separated datastore key.
func GenerateKey(fields []string) string {
	return path.Clean("/" + strings.Join(fields, "/"))
}

func kvStorePath(rootDir, dbPath, dbName string) string {
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(rootDir, dbPath)
	}
	return filepath.Join(dbPath, dbName)
}
