package execution

import (
	"context"
	"errors"
	"sync"

	"github.com/inertialabsxyz/movement/core/da"
)

// ForwardingCapacity is the bound of the channel between the transaction ingress and the executor.
// The bound is the throttling contract between DA ingestion and execution.
const ForwardingCapacity = 16

// ErrConsumerDropped is returned by Send once the consumer side has been dropped.
var ErrConsumerDropped = errors.New("forwarding channel consumer dropped")

// BatchChannel is a bounded, single-producer single-consumer channel of DA batches.
// Unlike a bare channel, the producer can observe the consumer going away.
type BatchChannel struct {
	ch      chan da.Batch
	dropped chan struct{}

	closeOnce sync.Once
	dropOnce  sync.Once
}

// NewBatchChannel creates a forwarding channel with the given capacity.
func NewBatchChannel(capacity int) *BatchChannel {
	if capacity <= 0 {
		capacity = ForwardingCapacity
	}
	return &BatchChannel{
		ch:      make(chan da.Batch, capacity),
		dropped: make(chan struct{}),
	}
}

// Send forwards a batch, blocking while the channel is full.
// It returns ErrConsumerDropped if the consumer went away, or the context error.
func (c *BatchChannel) Send(ctx context.Context, batch da.Batch) error {
	select {
	case <-c.dropped:
		return ErrConsumerDropped
	default:
	}

	select {
	case c.ch <- batch:
		return nil
	case <-c.dropped:
		return ErrConsumerDropped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseSend closes the producer side. Buffered batches remain readable.
func (c *BatchChannel) CloseSend() {
	c.closeOnce.Do(func() { close(c.ch) })
}

// Receive returns the consumer side.
func (c *BatchChannel) Receive() <-chan da.Batch {
	return c.ch
}

// Drop marks the consumer as gone; pending and future sends fail with ErrConsumerDropped.
func (c *BatchChannel) Drop() {
	c.dropOnce.Do(func() { close(c.dropped) })
}

// Dropped is closed once the consumer has been dropped.
func (c *BatchChannel) Dropped() <-chan struct{} {
	return c.dropped
}

// Len returns the number of buffered batches.
func (c *BatchChannel) Len() int {
	return len(c.ch)
}

// Cap returns the channel bound.
func (c *BatchChannel) Cap() int {
	return cap(c.ch)
}
