package execution_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inertialabsxyz/movement/core/da"
	"github.com/inertialabsxyz/movement/core/execution"
)

func startDummy(t *testing.T, exec *execution.DummyExecutor, batches *execution.BatchChannel) (execution.Context, <-chan error) {
	t.Helper()

	execCtx, run, err := exec.Background(batches, nil, execution.DefaultConfig())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- run(context.Background()) }()
	return execCtx, done
}

func TestDummyExecutor_ExecutesInOrder(t *testing.T) {
	exec := execution.NewDummyExecutor()
	batches := execution.NewBatchChannel(execution.ForwardingCapacity)
	execCtx, done := startDummy(t, exec, batches)

	ctx := context.Background()
	for h := uint64(100); h <= 102; h++ {
		require.NoError(t, batches.Send(ctx, da.Batch{DAHeight: h, Transactions: [][]byte{[]byte("a=b")}}))
	}
	batches.CloseSend()

	var heights []uint64
	prevRoot := exec.GetStateRoot()
	for res := range exec.Results() {
		require.NoError(t, res.Err)
		assert.NotEqual(t, prevRoot, res.StateRoot)
		prevRoot = res.StateRoot
		heights = append(heights, res.DAHeight)
	}
	require.NoError(t, <-done)

	assert.Equal(t, []uint64{100, 101, 102}, heights)
	assert.Len(t, exec.Executed(), 3)
	api := execCtx.Services().APIContext()
	assert.Equal(t, uint64(3), api.Height())
	assert.Equal(t, uint64(102), api.DAHeight())

	// services stop together with the background service
	require.NoError(t, execCtx.Services().Run(ctx))
	require.ErrorIs(t, batches.Send(ctx, da.Batch{DAHeight: 103}), execution.ErrConsumerDropped)
}

func TestDummyExecutor_FailedBatch(t *testing.T) {
	exec := execution.NewDummyExecutor()
	exec.FailAtDAHeight = 7
	batches := execution.NewBatchChannel(1)
	_, done := startDummy(t, exec, batches)

	require.NoError(t, batches.Send(context.Background(), da.Batch{DAHeight: 7}))
	res := <-exec.Results()
	require.Error(t, res.Err)
	assert.Equal(t, uint64(7), res.DAHeight)

	exec.Halt()
	exec.Halt()
	require.NoError(t, <-done)
}

func TestDummyExecutor_SetFinal(t *testing.T) {
	exec := execution.NewDummyExecutor()
	batches := execution.NewBatchChannel(1)
	_, done := startDummy(t, exec, batches)
	ctx := context.Background()

	require.Error(t, exec.SetFinal(ctx, 1))
	require.NoError(t, batches.Send(ctx, da.Batch{DAHeight: 1}))
	res := <-exec.Results()
	require.NoError(t, exec.SetFinal(ctx, res.BlockHeight))
	require.NoError(t, exec.SetFinal(ctx, res.BlockHeight))
	assert.True(t, exec.IsFinal(res.BlockHeight))

	batches.CloseSend()
	require.NoError(t, <-done)
}

func TestDummyExecutor_StallAndResume(t *testing.T) {
	exec := execution.NewDummyExecutor()
	exec.Stall()
	batches := execution.NewBatchChannel(2)
	_, done := startDummy(t, exec, batches)
	ctx := context.Background()

	require.NoError(t, batches.Send(ctx, da.Batch{DAHeight: 1}))
	select {
	case <-exec.Results():
		t.Fatal("stalled executor produced a result")
	case <-time.After(50 * time.Millisecond):
	}

	exec.Resume()
	res := <-exec.Results()
	assert.Equal(t, uint64(1), res.DAHeight)

	batches.CloseSend()
	require.NoError(t, <-done)
}

func TestDummyExecutor_BackgroundOnce(t *testing.T) {
	exec := execution.NewDummyExecutor()
	batches := execution.NewBatchChannel(1)
	_, _, err := exec.Background(batches, nil, execution.DefaultConfig())
	require.NoError(t, err)
	_, _, err = exec.Background(batches, nil, execution.DefaultConfig())
	require.ErrorIs(t, err, execution.ErrBackgroundStarted)
}
