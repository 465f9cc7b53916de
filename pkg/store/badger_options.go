package store

import (
	"runtime"

	badger4 "github.com/ipfs/go-ds-badger4"
)

// BadgerOptions returns Badger options tuned for the node workload.
// Both the sync store and the execution state are small, single-writer databases.
func BadgerOptions() *badger4.Options {
	opts := badger4.DefaultOptions

	// Every store has exactly one writer.
	opts.Options = opts.WithDetectConflicts(false)
	opts.Options = opts.WithNumLevelZeroTables(10)
	opts.Options = opts.WithNumLevelZeroTablesStall(20)
	opts.Options = opts.WithNumCompactors(compactorCount())

	return &opts
}

func compactorCount() int {
	count := runtime.NumCPU()
	if count < 2 {
		return 2
	}
	if count > 4 {
		return 4
	}
	return count
}
