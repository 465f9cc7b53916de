// Package settlement posts state commitments to a settlement layer and reports their outcome.
package settlement

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCommitmentRejected is returned by a Client when the settlement layer refuses a commitment.
	ErrCommitmentRejected = errors.New("settlement: commitment rejected")
	// ErrCommitmentMismatch reports an accepted commitment that differs from the one posted locally.
	ErrCommitmentMismatch = errors.New("settlement: accepted commitment differs from local commitment")
	// ErrQueueFull is returned when the manager cannot take another commitment.
	ErrQueueFull = errors.New("settlement: commitment queue full")
	// ErrManagerStopped is returned when posting to a stopped manager.
	ErrManagerStopped = errors.New("settlement: manager stopped")
	// ErrManagerStarted is returned when a manager is started twice.
	ErrManagerStarted = errors.New("settlement: manager already started")
)

// Commitment binds a contiguous range of DA heights to the resulting block and state.
type Commitment struct {
	FromHeight      uint64
	ToHeight        uint64
	BlockID         []byte
	StateCommitment []byte
}

// NewCommitment returns the commitment of a single height.
func NewCommitment(height uint64, blockID, stateCommitment []byte) Commitment {
	return Commitment{
		FromHeight:      height,
		ToHeight:        height,
		BlockID:         blockID,
		StateCommitment: stateCommitment,
	}
}

// Matches reports whether other commits to the same range, block and state.
func (c Commitment) Matches(other Commitment) bool {
	return c.FromHeight == other.FromHeight &&
		c.ToHeight == other.ToHeight &&
		bytes.Equal(c.BlockID, other.BlockID) &&
		bytes.Equal(c.StateCommitment, other.StateCommitment)
}

func (c Commitment) String() string {
	return fmt.Sprintf("commitment[%d..%d state=%x]", c.FromHeight, c.ToHeight, c.StateCommitment)
}

// EventKind is the outcome of a posted commitment.
type EventKind int

const (
	// EventAccepted means the settlement layer accepted the commitment.
	EventAccepted EventKind = iota
	// EventRejected means the settlement layer refused the commitment.
	EventRejected
	// EventFailed means the commitment could not be submitted.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventAccepted:
		return "accepted"
	case EventRejected:
		return "rejected"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports the outcome of a commitment.
type Event struct {
	Kind       EventKind
	Commitment Commitment
	Err        error
}

// EventStream delivers commitment events. It is closed by Manager.Stop.
type EventStream <-chan Event

// Client is the contract the manager consumes from a settlement layer.
type Client interface {
	// PostCommitment submits a commitment and returns once the settlement layer has taken it.
	// A commitment the settlement layer refuses is reported as ErrCommitmentRejected.
	PostCommitment(ctx context.Context, c Commitment) error

	// StreamAccepted streams the commitments accepted by the settlement layer from now on.
	// Both channels are closed when ctx is done. Errors on the error channel are not fatal.
	StreamAccepted(ctx context.Context) (<-chan Commitment, <-chan error, error)

	// Close releases the client resources.
	Close() error
}
