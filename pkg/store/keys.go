package store

import (
	"encoding/binary"
	"fmt"
)

const (
	// DAPrefix groups the keys of the DA synchronization state.
	DAPrefix = "da"

	// SyncedHeightKey is the key used for persisting the DA height up to which
	// execution results are durably checkpointed.
	SyncedHeightKey = "synced_height"
)

// GetSyncedHeightKey returns the full datastore key of the synced DA height.
func GetSyncedHeightKey() string {
	return GenerateKey([]string{DAPrefix, SyncedHeightKey})
}

func encodeHeight(height uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, height)
	return buf
}

func decodeHeight(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("invalid height length: %d (expected 8)", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
