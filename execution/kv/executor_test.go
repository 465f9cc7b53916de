package kv

import (
	"context"
	"testing"
	"time"

	ds "github.com/ipfs/go-datastore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreda "github.com/inertialabsxyz/movement/core/da"
	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/pkg/store"
)

func newTestDB(t *testing.T) ds.Batching {
	t.Helper()
	db, err := store.NewTestInMemoryKVStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type testHarness struct {
	exec    *Executor
	ctx     execution.Context
	batches *execution.BatchChannel
	done    chan error
}

func startExecutor(t *testing.T, db ds.Batching, submitter BatchSubmitter, cfg execution.Config) *testHarness {
	t.Helper()
	acks := make(chan []execution.TxResult, 16)
	exec, err := NewExecutor(db, submitter, acks, zerolog.Nop())
	require.NoError(t, err)

	batches := execution.NewBatchChannel(4)
	ectx, run, err := exec.Background(batches, acks, cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- run(context.Background()) }()
	t.Cleanup(exec.Halt)
	return &testHarness{exec: exec, ctx: ectx, batches: batches, done: done}
}

func (h *testHarness) execute(t *testing.T, batch coreda.Batch) execution.Result {
	t.Helper()
	require.NoError(t, h.batches.Send(context.Background(), batch))
	select {
	case res := <-h.exec.Results():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return execution.Result{}
	}
}

func (h *testHarness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("background did not stop")
		return nil
	}
}

func TestExecutor_ExecutesBatchesInOrder(t *testing.T) {
	h := startExecutor(t, newTestDB(t), nil, execution.DefaultConfig())

	res1 := h.execute(t, coreda.Batch{DAHeight: 100, Transactions: [][]byte{[]byte("a=1"), []byte("b=2")}})
	require.NoError(t, res1.Err)
	assert.Equal(t, uint64(1), res1.BlockHeight)
	assert.Equal(t, uint64(100), res1.DAHeight)
	assert.Len(t, res1.StateRoot, 32)
	assert.Len(t, res1.BlockID, 32)
	require.Len(t, res1.TxResults, 2)

	res2 := h.execute(t, coreda.Batch{DAHeight: 101, Transactions: [][]byte{[]byte("a=3")}})
	require.NoError(t, res2.Err)
	assert.Equal(t, uint64(2), res2.BlockHeight)
	assert.NotEqual(t, res1.StateRoot, res2.StateRoot)

	api := h.ctx.Services().APIContext()
	assert.Equal(t, uint64(2), api.Height())
	assert.Equal(t, uint64(101), api.DAHeight())
	assert.Equal(t, res2.StateRoot, api.StateRoot())

	v, err := api.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)
	v, err = api.Get(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)

	_, err = api.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, execution.ErrNotFound)

	root, err := h.exec.BlockStateRoot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, res1.StateRoot, root)
}

func TestExecutor_InvalidTransactionsAreMarked(t *testing.T) {
	h := startExecutor(t, newTestDB(t), nil, execution.DefaultConfig())

	res := h.execute(t, coreda.Batch{DAHeight: 5, Transactions: [][]byte{[]byte("garbage"), []byte("k=v"), []byte("a/b=1")}})
	require.NoError(t, res.Err)
	require.Len(t, res.TxResults, 3)
	assert.Equal(t, execution.TxStatusInvalid, res.TxResults[0].Status)
	assert.Equal(t, execution.TxStatusCommitted, res.TxResults[1].Status)
	assert.Equal(t, execution.TxStatusInvalid, res.TxResults[2].Status)
	assert.NotEmpty(t, res.TxResults[0].Log)
}

func TestExecutor_EmptyBatchProducesBlock(t *testing.T) {
	h := startExecutor(t, newTestDB(t), nil, execution.DefaultConfig())

	res := h.execute(t, coreda.Batch{DAHeight: 7})
	require.NoError(t, res.Err)
	assert.Equal(t, uint64(1), res.BlockHeight)
	assert.Empty(t, res.TxResults)
}

func TestExecutor_Deterministic(t *testing.T) {
	batch := coreda.Batch{DAHeight: 9, Transactions: [][]byte{[]byte("x=1"), []byte("y=2")}}

	a := startExecutor(t, newTestDB(t), nil, execution.DefaultConfig()).execute(t, batch)
	b := startExecutor(t, newTestDB(t), nil, execution.DefaultConfig()).execute(t, batch)
	assert.Equal(t, a.StateRoot, b.StateRoot)
	assert.Equal(t, a.BlockID, b.BlockID)
}

func TestExecutor_ResumesFromPersistedState(t *testing.T) {
	db := newTestDB(t)

	h := startExecutor(t, db, nil, execution.DefaultConfig())
	h.execute(t, coreda.Batch{DAHeight: 10, Transactions: [][]byte{[]byte("a=1")}})
	last := h.execute(t, coreda.Batch{DAHeight: 11, Transactions: [][]byte{[]byte("a=2")}})
	require.NoError(t, h.exec.SetFinal(context.Background(), 1))

	h.batches.CloseSend()
	require.NoError(t, h.wait(t))

	_, ok := <-h.exec.Results()
	assert.False(t, ok, "results must be closed")
	select {
	case <-h.batches.Dropped():
	default:
		t.Fatal("consumer must be dropped")
	}

	exec, err := NewExecutor(db, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), exec.Height())
	assert.Equal(t, uint64(1), exec.FinalizedHeight())
	assert.Equal(t, last.StateRoot, apiContext{exec}.StateRoot())
	assert.Equal(t, uint64(11), apiContext{exec}.DAHeight())
}

func TestExecutor_ReportsCommittedBlockForExecutedDAHeight(t *testing.T) {
	db := newTestDB(t)
	batch := coreda.Batch{DAHeight: 5, Transactions: [][]byte{[]byte("a=1")}}

	first := startExecutor(t, db, nil, execution.DefaultConfig())
	committed := first.execute(t, batch)
	require.NoError(t, committed.Err)
	first.exec.Halt()
	require.NoError(t, first.wait(t))

	// the sync store did not checkpoint DA height 5, so the same batch arrives again
	second := startExecutor(t, db, nil, execution.DefaultConfig())
	again := second.execute(t, batch)
	require.NoError(t, again.Err)
	assert.Equal(t, committed.DAHeight, again.DAHeight)
	assert.Equal(t, committed.BlockHeight, again.BlockHeight)
	assert.Equal(t, committed.StateRoot, again.StateRoot)
	assert.Equal(t, committed.BlockID, again.BlockID)
	assert.Empty(t, again.TxResults)
	assert.Equal(t, uint64(1), second.exec.Height())

	next := second.execute(t, coreda.Batch{DAHeight: 6, Transactions: [][]byte{[]byte("a=2")}})
	require.NoError(t, next.Err)
	assert.Equal(t, uint64(2), next.BlockHeight)

	v, err := second.exec.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
}

func TestExecutor_UnknownExecutedDAHeight(t *testing.T) {
	h := startExecutor(t, newTestDB(t), nil, execution.DefaultConfig())
	require.NoError(t, h.execute(t, coreda.Batch{DAHeight: 10}).Err)

	res := h.execute(t, coreda.Batch{DAHeight: 7, Transactions: [][]byte{[]byte("a=1")}})
	require.ErrorIs(t, res.Err, ErrUnknownDAHeight)
	assert.Equal(t, uint64(1), h.exec.Height())
}

func TestExecutor_SetFinal(t *testing.T) {
	h := startExecutor(t, newTestDB(t), nil, execution.DefaultConfig())
	h.execute(t, coreda.Batch{DAHeight: 1})
	h.execute(t, coreda.Batch{DAHeight: 2})

	ctx := context.Background()
	require.Error(t, h.exec.SetFinal(ctx, 0))
	require.Error(t, h.exec.SetFinal(ctx, 3))

	require.NoError(t, h.exec.SetFinal(ctx, 2))
	require.NoError(t, h.exec.SetFinal(ctx, 2))
	require.NoError(t, h.exec.SetFinal(ctx, 1))
	assert.Equal(t, uint64(2), h.exec.FinalizedHeight())
}

func TestExecutor_HaltStopsBackground(t *testing.T) {
	h := startExecutor(t, newTestDB(t), nil, execution.DefaultConfig())
	h.exec.Halt()
	h.exec.Halt()

	require.NoError(t, h.wait(t))
	assert.ErrorIs(t, h.batches.Send(context.Background(), coreda.Batch{DAHeight: 1}), execution.ErrConsumerDropped)
}

func TestExecutor_BackgroundOnlyOnce(t *testing.T) {
	h := startExecutor(t, newTestDB(t), nil, execution.DefaultConfig())
	_, _, err := h.exec.Background(execution.NewBatchChannel(1), nil, execution.DefaultConfig())
	assert.ErrorIs(t, err, execution.ErrBackgroundStarted)
}

func TestExecutor_AcksReleaseMempool(t *testing.T) {
	h := startExecutor(t, newTestDB(t), nil, execution.DefaultConfig())
	api := h.ctx.Services().APIContext()

	require.NoError(t, api.SubmitTransaction(context.Background(), []byte("k=v")))
	assert.Equal(t, 1, h.exec.Mempool().InFlight())

	txs := h.exec.Mempool().Take()
	res := h.execute(t, coreda.Batch{DAHeight: 3, Transactions: txs})
	require.NoError(t, res.Err)

	require.Eventually(t, func() bool {
		return h.exec.Mempool().InFlight() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestParseTx(t *testing.T) {
	specs := map[string]struct {
		tx      string
		key     string
		value   string
		wantErr bool
	}{
		"simple":       {tx: "a=1", key: "a", value: "1"},
		"empty value":  {tx: "a=", key: "a", value: ""},
		"value with =": {tx: "a=b=c", key: "a", value: "b=c"},
		"no separator": {tx: "abc", wantErr: true},
		"empty key":    {tx: "=1", wantErr: true},
		"slash in key": {tx: "a/b=1", wantErr: true},
		"space in key": {tx: "a b=1", wantErr: true},
		"dot dot key":  {tx: "..=1", wantErr: true},
	}
	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			key, value, err := parseTx([]byte(spec.tx))
			if spec.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTx)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, spec.key, key)
			assert.Equal(t, spec.value, string(value))
		})
	}
}
