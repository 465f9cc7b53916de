// Package kv implements a key/value execution engine. Transactions have the form key=value
// and each DA batch executes as one block.
package kv

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"

	ds "github.com/ipfs/go-datastore"
	"github.com/rs/zerolog"

	coreda "github.com/inertialabsxyz/movement/core/da"
	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/pkg/store"
	"github.com/inertialabsxyz/movement/types"
)

var (
	heightKey    = ds.NewKey("/meta/height")
	daHeightKey  = ds.NewKey("/meta/da_height")
	stateRootKey = ds.NewKey("/meta/state_root")
	finalizedKey = ds.NewKey("/meta/finalized")
)

// ErrUnknownDAHeight is returned when a batch at or below the executed DA height has no
// committed block recorded for it.
var ErrUnknownDAHeight = errors.New("kv: no block committed for DA height")

// ErrInvalidTx is recorded for transactions that are not of the form key=value.
var ErrInvalidTx = errors.New("kv: invalid transaction")

// BatchSubmitter posts locally produced batches to the DA layer.
type BatchSubmitter interface {
	SubmitBatch(ctx context.Context, batch coreda.Batch) (uint64, error)
}

// Executor is the key/value execution engine.
type Executor struct {
	db        ds.Batching
	ownsDB    bool
	submitter BatchSubmitter
	ackSender chan<- []execution.TxResult
	logger    zerolog.Logger
	mempool   *Mempool

	mu        sync.RWMutex
	height    uint64
	daHeight  uint64
	finalized uint64
	stateRoot []byte
	cfg       execution.Config
	started   bool

	results  chan execution.Result
	halt     chan struct{}
	haltOnce sync.Once
	stopped  chan struct{}
}

var _ execution.Executor = (*Executor)(nil)

// NewExecutorFromConfig opens the execution state database under dbDir and creates an executor.
func NewExecutorFromConfig(dbDir string, cfg execution.Config, submitter BatchSubmitter, ackSender chan<- []execution.TxResult, logger zerolog.Logger) (*Executor, error) {
	db, err := store.NewDefaultKVStore(dbDir, "", cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to open execution state: %w", err)
	}

	e, err := NewExecutor(db, submitter, ackSender, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	e.ownsDB = true
	e.cfg = cfg
	e.mempool.SetLimit(cfg.LoadShedding.MaxTransactionsInFlight)
	return e, nil
}

// NewExecutor creates an executor over db, resuming from the state it holds.
// ackSender receives the transaction results of every executed block and may be nil.
func NewExecutor(db ds.Batching, submitter BatchSubmitter, ackSender chan<- []execution.TxResult, logger zerolog.Logger) (*Executor, error) {
	e := &Executor{
		db:        db,
		submitter: submitter,
		ackSender: ackSender,
		logger:    logger.With().Str("component", "kv_executor").Logger(),
		mempool:   NewMempool(0),
		stateRoot: make([]byte, sha256.Size),
		cfg:       execution.DefaultConfig(),
		results:   make(chan execution.Result),
		halt:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	if err := e.load(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load execution state: %w", err)
	}
	return e, nil
}

func (e *Executor) load(ctx context.Context) error {
	for key, dst := range map[ds.Key]*uint64{heightKey: &e.height, daHeightKey: &e.daHeight, finalizedKey: &e.finalized} {
		v, err := e.db.Get(ctx, key)
		if errors.Is(err, ds.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if len(v) != 8 {
			return fmt.Errorf("invalid value under %s", key)
		}
		*dst = binary.BigEndian.Uint64(v)
	}

	root, err := e.db.Get(ctx, stateRootKey)
	switch {
	case errors.Is(err, ds.ErrNotFound):
	case err != nil:
		return err
	default:
		e.stateRoot = root
	}
	return nil
}

// Background implements execution.Executor.
func (e *Executor) Background(batches *execution.BatchChannel, acks <-chan []execution.TxResult, cfg execution.Config) (execution.Context, execution.BackgroundFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil, nil, execution.ErrBackgroundStarted
	}
	e.started = true
	e.cfg = cfg
	e.mempool.SetLimit(cfg.LoadShedding.MaxTransactionsInFlight)

	run := func(ctx context.Context) error {
		defer close(e.stopped)
		defer close(e.results)
		defer batches.Drop()

		e.logger.Info().Uint64("height", e.Height()).Str("chain_id", cfg.ChainID).Msg("execution background started")

		var (
			unacked [][]execution.TxResult
			ackOut  chan<- []execution.TxResult
		)
		input := batches.Receive()
		for {
			ackOut = nil
			if len(unacked) > 0 && e.ackSender != nil {
				ackOut = e.ackSender
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.halt:
				e.logger.Info().Msg("execution halted")
				return nil
			case ackOut <- headOrNil(unacked):
				unacked = unacked[1:]
			case ack, ok := <-acks:
				if !ok {
					acks = nil
					continue
				}
				e.mempool.Remove(ack)
			case batch, ok := <-input:
				if !ok {
					e.logger.Info().Msg("forwarding channel closed, execution background stopping")
					return nil
				}
				res := e.executeBatch(ctx, batch)
				select {
				case e.results <- res:
				case <-e.halt:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
				if res.Err == nil && len(res.TxResults) > 0 {
					unacked = append(unacked, res.TxResults)
				}
			}
		}
	}

	return kvContext{e}, run, nil
}

func headOrNil(q [][]execution.TxResult) []execution.TxResult {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

// executeBatch applies a batch as the next block and commits it atomically.
// A batch the engine already committed is not applied again; its block is reported instead.
func (e *Executor) executeBatch(ctx context.Context, batch coreda.Batch) execution.Result {
	e.mu.RLock()
	height := e.height + 1
	prevRoot := e.stateRoot
	replay := e.height > 0 && batch.DAHeight <= e.daHeight
	e.mu.RUnlock()

	if replay {
		return e.committedResult(ctx, batch.DAHeight)
	}

	b, err := e.db.Batch(ctx)
	if err != nil {
		return execution.Result{DAHeight: batch.DAHeight, Err: fmt.Errorf("failed to create batch: %w", err)}
	}

	hasher := sha256.New()
	hasher.Write(prevRoot)
	txResults := make([]execution.TxResult, 0, len(batch.Transactions))
	for _, tx := range batch.Transactions {
		res := execution.TxResult{Hash: types.TxHash(tx), Status: execution.TxStatusCommitted}
		key, value, err := parseTx(tx)
		if err != nil {
			res.Status = execution.TxStatusInvalid
			res.Log = err.Error()
			txResults = append(txResults, res)
			continue
		}
		if err := b.Put(ctx, stateKey(key), value); err != nil {
			return execution.Result{DAHeight: batch.DAHeight, Err: fmt.Errorf("failed to stage tx: %w", err)}
		}
		hasher.Write(tx)
		txResults = append(txResults, res)
	}
	stateRoot := hasher.Sum(nil)
	blockID := blockID(height, stateRoot)

	puts := map[ds.Key][]byte{
		heightKey:                  encodeUint64(height),
		daHeightKey:                encodeUint64(batch.DAHeight),
		stateRootKey:               stateRoot,
		blockKey(height):           stateRoot,
		daBlockKey(batch.DAHeight): encodeUint64(height),
	}
	for k, v := range puts {
		if err := b.Put(ctx, k, v); err != nil {
			return execution.Result{DAHeight: batch.DAHeight, Err: fmt.Errorf("failed to stage block: %w", err)}
		}
	}
	if err := b.Commit(ctx); err != nil {
		return execution.Result{DAHeight: batch.DAHeight, Err: fmt.Errorf("failed to commit block %d: %w", height, err)}
	}

	e.mu.Lock()
	e.height = height
	e.daHeight = batch.DAHeight
	e.stateRoot = stateRoot
	e.mu.Unlock()

	e.logger.Debug().
		Uint64("height", height).
		Uint64("da_height", batch.DAHeight).
		Int("num_txs", len(batch.Transactions)).
		Hex("state_root", stateRoot).
		Msg("executed block")

	return execution.Result{
		DAHeight:    batch.DAHeight,
		BlockHeight: height,
		BlockID:     blockID,
		StateRoot:   stateRoot,
		TxResults:   txResults,
	}
}

// committedResult reports the block already committed for daHeight.
func (e *Executor) committedResult(ctx context.Context, daHeight uint64) execution.Result {
	v, err := e.db.Get(ctx, daBlockKey(daHeight))
	switch {
	case errors.Is(err, ds.ErrNotFound):
		return execution.Result{DAHeight: daHeight, Err: fmt.Errorf("%w %d", ErrUnknownDAHeight, daHeight)}
	case err != nil:
		return execution.Result{DAHeight: daHeight, Err: fmt.Errorf("failed to read block for DA height %d: %w", daHeight, err)}
	case len(v) != 8:
		return execution.Result{DAHeight: daHeight, Err: fmt.Errorf("invalid value under %s", daBlockKey(daHeight))}
	}
	height := binary.BigEndian.Uint64(v)

	stateRoot, err := e.db.Get(ctx, blockKey(height))
	if err != nil {
		return execution.Result{DAHeight: daHeight, Err: fmt.Errorf("failed to read block %d: %w", height, err)}
	}

	e.logger.Info().
		Uint64("height", height).
		Uint64("da_height", daHeight).
		Msg("batch already executed, reporting committed block")

	return execution.Result{
		DAHeight:    daHeight,
		BlockHeight: height,
		BlockID:     blockID(height, stateRoot),
		StateRoot:   stateRoot,
	}
}

// Results implements execution.Executor.
func (e *Executor) Results() <-chan execution.Result {
	return e.results
}

// SetFinal implements execution.Executor.
func (e *Executor) SetFinal(ctx context.Context, blockHeight uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if blockHeight == 0 {
		return fmt.Errorf("cannot finalize block at height 0")
	}
	if blockHeight > e.height {
		return fmt.Errorf("cannot finalize block %d above executed height %d", blockHeight, e.height)
	}
	if blockHeight <= e.finalized {
		return nil
	}
	if err := e.db.Put(ctx, finalizedKey, encodeUint64(blockHeight)); err != nil {
		return fmt.Errorf("failed to persist finalized height: %w", err)
	}
	e.finalized = blockHeight
	return nil
}

// Halt implements execution.Executor.
func (e *Executor) Halt() {
	e.haltOnce.Do(func() { close(e.halt) })
}

// Height returns the height of the last executed block.
func (e *Executor) Height() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.height
}

// FinalizedHeight returns the highest finalized block height.
func (e *Executor) FinalizedHeight() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finalized
}

// Mempool returns the executor mempool.
func (e *Executor) Mempool() *Mempool {
	return e.mempool
}

// Get returns the value stored under key.
func (e *Executor) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := e.db.Get(ctx, stateKey(key))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, execution.ErrNotFound
	}
	return v, err
}

// BlockStateRoot returns the state root of an executed block.
func (e *Executor) BlockStateRoot(ctx context.Context, height uint64) ([]byte, error) {
	v, err := e.db.Get(ctx, blockKey(height))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, execution.ErrNotFound
	}
	return v, err
}

// Close closes the state database when the executor opened it.
func (e *Executor) Close() error {
	if !e.ownsDB {
		return nil
	}
	return e.db.Close()
}

// parseTx splits a key=value transaction.
func parseTx(tx []byte) (string, []byte, error) {
	key, value, ok := bytes.Cut(tx, []byte("="))
	if !ok || len(key) == 0 {
		return "", nil, fmt.Errorf("%w: expected key=value", ErrInvalidTx)
	}
	if bytes.ContainsAny(key, "/ ") {
		return "", nil, fmt.Errorf("%w: key must not contain '/' or spaces", ErrInvalidTx)
	}
	if string(key) == "." || string(key) == ".." {
		return "", nil, fmt.Errorf("%w: reserved key %q", ErrInvalidTx, key)
	}
	return string(key), value, nil
}

func stateKey(key string) ds.Key {
	return ds.NewKey(store.GenerateKey([]string{"state", key}))
}

func blockKey(height uint64) ds.Key {
	return ds.NewKey(store.GenerateKey([]string{"blocks", strconv.FormatUint(height, 10)}))
}

func daBlockKey(daHeight uint64) ds.Key {
	return ds.NewKey(store.GenerateKey([]string{"da_blocks", strconv.FormatUint(daHeight, 10)}))
}

func blockID(height uint64, stateRoot []byte) []byte {
	h := sha256.New()
	h.Write(encodeUint64(height))
	h.Write(stateRoot)
	return h.Sum(nil)
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
