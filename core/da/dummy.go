package da

import (
	"context"
	"io"
	"sync"
)

// DummyDA is an in-memory Client for testing. Heights without a batch are skipped by its
// streams, like heights without blobs on a light node.
type DummyDA struct {
	mu        sync.Mutex
	batches   map[uint64]Batch
	failures  map[uint64]error
	height    uint64
	ended     bool
	notify    chan struct{}
	submitted []Batch
	closed    bool
}

var _ Client = (*DummyDA)(nil)

// NewDummyDA creates a DummyDA whose head is at height.
func NewDummyDA(height uint64) *DummyDA {
	return &DummyDA{
		batches:  make(map[uint64]Batch),
		failures: make(map[uint64]error),
		height:   height,
		notify:   make(chan struct{}),
	}
}

// Publish makes batches readable at their DA heights.
func (d *DummyDA) Publish(batches ...Batch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range batches {
		d.batches[b.DAHeight] = b
		d.height = max(d.height, b.DAHeight)
	}
	d.broadcast()
}

// FailAt makes streams fail with err when they reach height.
func (d *DummyDA) FailAt(height uint64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[height] = err
	d.height = max(d.height, height)
	d.broadcast()
}

// EndStreams makes streams return io.EOF once they read past the head.
func (d *DummyDA) EndStreams() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ended = true
	d.broadcast()
}

// Submitted returns the batches passed to SubmitBatch.
func (d *DummyDA) Submitted() []Batch {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Batch, len(d.submitted))
	copy(out, d.submitted)
	return out
}

// SubmitBatch includes the batch at the next height.
func (d *DummyDA) SubmitBatch(_ context.Context, batch Batch) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrStreamClosed
	}
	d.height++
	batch.DAHeight = d.height
	d.batches[batch.DAHeight] = batch
	d.submitted = append(d.submitted, batch)
	d.broadcast()
	return batch.DAHeight, nil
}

// StreamReadFromHeight implements Client.
func (d *DummyDA) StreamReadFromHeight(_ context.Context, height uint64) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrStreamClosed
	}
	return &dummyStream{da: d, next: height, done: make(chan struct{})}, nil
}

// Close implements Client.
func (d *DummyDA) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

// broadcast wakes up waiting streams. Callers must hold d.mu.
func (d *DummyDA) broadcast() {
	close(d.notify)
	d.notify = make(chan struct{})
}

type dummyStream struct {
	da   *DummyDA
	next uint64

	closeOnce sync.Once
	done      chan struct{}
}

func (s *dummyStream) Next(ctx context.Context) (Batch, error) {
	for {
		select {
		case <-s.done:
			return Batch{}, io.EOF
		default:
		}

		s.da.mu.Lock()
		if err, ok := s.da.failures[s.next]; ok {
			s.da.mu.Unlock()
			return Batch{}, err
		}
		if b, ok := s.da.batches[s.next]; ok {
			s.next++
			s.da.mu.Unlock()
			return b, nil
		}
		if s.next <= s.da.height {
			s.next++
			s.da.mu.Unlock()
			continue
		}
		if s.da.ended {
			s.da.mu.Unlock()
			return Batch{}, io.EOF
		}
		wait := s.da.notify
		s.da.mu.Unlock()

		select {
		case <-ctx.Done():
			return Batch{}, ctx.Err()
		case <-s.done:
			return Batch{}, io.EOF
		case <-wait:
		}
	}
}

func (s *dummyStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
