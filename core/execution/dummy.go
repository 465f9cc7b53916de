package execution

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/inertialabsxyz/movement/core/da"
)

//---------------------
// DummyExecutor
//---------------------

// DummyExecutor is a dummy implementation of the Executor interface for testing.
// It keeps everything in memory and chains the state root with sha512.
type DummyExecutor struct {
	mu        sync.RWMutex // guards the fields below
	stateRoot []byte
	height    uint64
	daHeight  uint64
	executed  []da.Batch
	finalized map[uint64]bool
	acked     int
	kv        map[string][]byte
	mempool   [][]byte

	// FailAtDAHeight makes the batch at this DA height produce a failed Result.
	FailAtDAHeight uint64
	// BackgroundErr, when set, is returned by the background service after the batches are drained.
	BackgroundErr error

	started  bool
	results  chan Result
	halt     chan struct{}
	haltOnce sync.Once
	stopped  chan struct{}
	resume   chan struct{}
}

var _ Executor = (*DummyExecutor)(nil)

// NewDummyExecutor creates a new dummy DummyExecutor instance
func NewDummyExecutor() *DummyExecutor {
	return &DummyExecutor{
		stateRoot: []byte{1, 2, 3},
		finalized: make(map[uint64]bool),
		kv:        make(map[string][]byte),
		results:   make(chan Result),
		halt:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Stall makes the background service stop consuming batches until Resume is called.
func (e *DummyExecutor) Stall() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resume == nil {
		e.resume = make(chan struct{})
	}
}

// Resume releases a stalled background service.
func (e *DummyExecutor) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resume != nil {
		close(e.resume)
		e.resume = nil
	}
}

// Background implements Executor.
func (e *DummyExecutor) Background(batches *BatchChannel, acks <-chan []TxResult, cfg Config) (Context, BackgroundFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil, nil, ErrBackgroundStarted
	}
	e.started = true

	run := func(ctx context.Context) error {
		defer close(e.stopped)
		defer close(e.results)
		defer batches.Drop()

		for {
			if err := e.waitResume(ctx); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.halt:
				return nil
			case ack, ok := <-acks:
				if ok {
					e.mu.Lock()
					e.acked += len(ack)
					e.mu.Unlock()
				} else {
					acks = nil
				}
			case batch, ok := <-batches.Receive():
				if !ok {
					return e.BackgroundErr
				}
				res := e.execute(batch)
				select {
				case e.results <- res:
				case <-e.halt:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}

	return dummyContext{e}, run, nil
}

func (e *DummyExecutor) waitResume(ctx context.Context) error {
	e.mu.RLock()
	resume := e.resume
	e.mu.RUnlock()
	if resume == nil {
		return nil
	}
	select {
	case <-resume:
		return nil
	case <-e.halt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *DummyExecutor) execute(batch da.Batch) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.FailAtDAHeight != 0 && batch.DAHeight == e.FailAtDAHeight {
		return Result{DAHeight: batch.DAHeight, Err: fmt.Errorf("dummy execution failure at da height %d", batch.DAHeight)}
	}

	hash := sha512.New()
	hash.Write(e.stateRoot)
	txResults := make([]TxResult, 0, len(batch.Transactions))
	for _, tx := range batch.Transactions {
		hash.Write(tx)
		txHash := sha512.Sum512_256(tx)
		txResults = append(txResults, TxResult{Hash: txHash[:], Status: TxStatusCommitted})
	}
	e.stateRoot = hash.Sum(nil)
	e.height++
	e.daHeight = batch.DAHeight
	e.executed = append(e.executed, batch)

	id := make([]byte, 8)
	binary.BigEndian.PutUint64(id, e.height)

	return Result{
		DAHeight:    batch.DAHeight,
		BlockHeight: e.height,
		BlockID:     id,
		StateRoot:   e.stateRoot,
		TxResults:   txResults,
	}
}

// Results implements Executor.
func (e *DummyExecutor) Results() <-chan Result {
	return e.results
}

// SetFinal marks block at given height as finalized.
func (e *DummyExecutor) SetFinal(ctx context.Context, blockHeight uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if blockHeight == 0 || blockHeight > e.height {
		return fmt.Errorf("cannot set finalized block at height %d", blockHeight)
	}
	e.finalized[blockHeight] = true
	return nil
}

// Halt implements Executor.
func (e *DummyExecutor) Halt() {
	e.haltOnce.Do(func() { close(e.halt) })
}

// Executed returns a copy of the batches executed so far, in execution order.
func (e *DummyExecutor) Executed() []da.Batch {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]da.Batch, len(e.executed))
	copy(out, e.executed)
	return out
}

// IsFinal reports whether SetFinal was called for the height.
func (e *DummyExecutor) IsFinal(blockHeight uint64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finalized[blockHeight]
}

// Acked returns the number of acknowledged transactions drained by the background service.
func (e *DummyExecutor) Acked() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.acked
}

// GetStateRoot returns the current state root in a thread-safe manner
func (e *DummyExecutor) GetStateRoot() []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.stateRoot
}

type dummyContext struct{ e *DummyExecutor }

func (c dummyContext) Services() Services { return dummyServices(c) }

type dummyServices struct{ e *DummyExecutor }

func (s dummyServices) APIContext() APIContext { return dummyAPI(s) }

// Run serves until the background service stops.
func (s dummyServices) Run(ctx context.Context) error {
	select {
	case <-s.e.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type dummyAPI struct{ e *DummyExecutor }

func (a dummyAPI) Height() uint64 {
	a.e.mu.RLock()
	defer a.e.mu.RUnlock()
	return a.e.height
}

func (a dummyAPI) DAHeight() uint64 {
	a.e.mu.RLock()
	defer a.e.mu.RUnlock()
	return a.e.daHeight
}

func (a dummyAPI) StateRoot() []byte {
	return a.e.GetStateRoot()
}

func (a dummyAPI) Get(_ context.Context, key string) ([]byte, error) {
	a.e.mu.RLock()
	defer a.e.mu.RUnlock()
	v, ok := a.e.kv[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (a dummyAPI) SubmitTransaction(_ context.Context, tx []byte) error {
	a.e.mu.Lock()
	defer a.e.mu.Unlock()
	a.e.mempool = append(a.e.mempool, tx)
	return nil
}
