package da

import (
	"context"
)

// Batch is an ordered set of transactions sequenced by the DA layer at a single height.
type Batch struct {
	// DAHeight is the DA block height the batch was included at.
	DAHeight uint64
	// Transactions are the raw transactions, in sequencing order.
	Transactions [][]byte
}

// Len returns the number of transactions in the batch.
func (b Batch) Len() int {
	return len(b.Transactions)
}

// Stream is a lazily evaluated, ordered sequence of batches read from the DA layer.
//
// Next blocks until the next batch is available, the context is done or the stream ends.
// A finished stream returns io.EOF.
type Stream interface {
	Next(ctx context.Context) (Batch, error)
	Close() error
}

// Client is the contract the node core consumes from a DA light node.
//
// Implementations must be safe for concurrent use: the same handle is shared between the
// node construction path, the ingress task and the execution engine's batch producer.
type Client interface {
	// StreamReadFromHeight returns a stream of batches starting at (and including) the given DA height.
	StreamReadFromHeight(ctx context.Context, height uint64) (Stream, error)

	// SubmitBatch submits a locally produced batch and returns the DA height it was included at.
	SubmitBatch(ctx context.Context, batch Batch) (uint64, error)

	// Close releases the underlying connection.
	Close()
}
