package common

import (
	"errors"
	"fmt"
)

// These errors are used by block components.
var (
	// ErrCommitmentStreamClosed is returned when the settlement event stream closes while the node is running.
	ErrCommitmentStreamClosed = errors.New("commitment event stream closed")
)

// IngestionError is returned by the transaction ingress when reading DA fails.
type IngestionError struct {
	DAHeight uint64
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("failed to ingest DA batch at height %d: %v", e.DAHeight, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// ExecutionError is returned when the executor fails a batch.
type ExecutionError struct {
	DAHeight uint64
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to execute DA batch at height %d: %v", e.DAHeight, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// CheckpointError is returned when the synced height cannot be persisted.
type CheckpointError struct {
	DAHeight uint64
	Err      error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("failed to checkpoint synced DA height %d: %v", e.DAHeight, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }
