package node

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inertialabsxyz/movement/block"
	coreda "github.com/inertialabsxyz/movement/core/da"
	"github.com/inertialabsxyz/movement/core/execution"
	rpcclient "github.com/inertialabsxyz/movement/pkg/rpc/client"
	rpcserver "github.com/inertialabsxyz/movement/pkg/rpc/server"
	"github.com/inertialabsxyz/movement/pkg/settlement"
	"github.com/inertialabsxyz/movement/pkg/settlement/mock"
	"github.com/inertialabsxyz/movement/pkg/store"
)

type harness struct {
	node *PartialNode
	exec *execution.DummyExecutor
	da   *coreda.DummyDA
	db   *store.DaDB
}

func newHarness(t *testing.T, synced uint64, settle *block.Settlement) (*harness, *PartialNode) {
	t.Helper()
	exec := execution.NewDummyExecutor()
	da := coreda.NewDummyDA(synced)
	db := newSyncStore(t, synced)

	n, err := New(testConfig(), Components{
		Executor:   exec,
		DA:         da,
		Settlement: settle,
		SyncStore:  db,
	}, zerolog.Nop())
	require.NoError(t, err)
	return &harness{node: n, exec: exec, da: da, db: db}, n
}

func TestPartialNode_ResumesFromSyncedHeight(t *testing.T) {
	h, n := newHarness(t, 100, nil)
	assert.False(t, n.Settles())

	publishRange(h.da, 90, 103)
	h.da.EndStreams()

	require.NoError(t, waitRun(t, runNode(context.Background(), n)))

	assert.Equal(t, []uint64{101, 102, 103}, executedHeights(h.exec))
	assert.Equal(t, uint64(103), syncedHeight(t, h.db))
}

func TestPartialNode_IngressFailureStopsAllUnits(t *testing.T) {
	h, n := newHarness(t, 0, nil)

	errDA := errors.New("light node unavailable")
	publishRange(h.da, 1, 1)
	h.da.FailAt(2, errDA)

	err := waitRun(t, runNode(context.Background(), n))

	var unitErr *UnitError
	require.ErrorAs(t, err, &unitErr)
	assert.Equal(t, UnitTransactionIngress, unitErr.Unit)
	require.ErrorIs(t, err, errDA)

	var ingestionErr *block.IngestionError
	require.ErrorAs(t, err, &ingestionErr)
	assert.Equal(t, uint64(2), ingestionErr.DAHeight)

	// the batch forwarded before the failure is still executed and checkpointed
	assert.Equal(t, []uint64{1}, executedHeights(h.exec))
	assert.Equal(t, uint64(1), syncedHeight(t, h.db))
}

func TestPartialNode_ExecutionFailureStopsIngress(t *testing.T) {
	h, n := newHarness(t, 0, nil)
	h.exec.FailAtDAHeight = 2

	// the stream is never ended: ingress only stops because execution went away
	publishRange(h.da, 1, 3)

	err := waitRun(t, runNode(context.Background(), n))

	var unitErr *UnitError
	require.ErrorAs(t, err, &unitErr)
	assert.Equal(t, UnitExecuteSettle, unitErr.Unit)

	var execErr *block.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, uint64(2), execErr.DAHeight)

	assert.Equal(t, uint64(1), syncedHeight(t, h.db))
}

func TestPartialNode_BackgroundFailure(t *testing.T) {
	h, n := newHarness(t, 0, nil)
	errBackground := errors.New("state corrupted")
	h.exec.BackgroundErr = errBackground

	publishRange(h.da, 1, 2)
	h.da.EndStreams()

	err := waitRun(t, runNode(context.Background(), n))

	var unitErr *UnitError
	require.ErrorAs(t, err, &unitErr)
	assert.Equal(t, UnitExecutionBackground, unitErr.Unit)
	assert.ErrorIs(t, err, errBackground)
}

func TestPartialNode_SettlesExecutedBlocks(t *testing.T) {
	cfg := testConfig()
	client := mock.NewClient()
	manager, events := settlement.NewManager(client, cfg.Settlement, zerolog.Nop())

	h, n := newHarness(t, 49, &block.Settlement{Manager: manager, Events: events})
	n.cfg.ExecutionExtension.FinalizeOnAccept = true
	assert.True(t, n.Settles())

	publishRange(h.da, 50, 50)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runNode(ctx, n)

	// the acceptance of the commitment finalizes the block
	require.Eventually(t, func() bool { return h.exec.IsFinal(1) }, runTimeout, 10*time.Millisecond)

	posted := client.Posted()
	require.Len(t, posted, 1)
	assert.Equal(t, uint64(50), posted[0].FromHeight)
	assert.Equal(t, uint64(50), posted[0].ToHeight)
	assert.Equal(t, h.exec.GetStateRoot(), posted[0].StateCommitment)

	cancel()
	err := waitRun(t, done)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, uint64(50), syncedHeight(t, h.db))
}

func TestPartialNode_WithoutSettlementPostsNothing(t *testing.T) {
	h, n := newHarness(t, 0, nil)
	publishRange(h.da, 1, 3)
	h.da.EndStreams()

	require.NoError(t, waitRun(t, runNode(context.Background(), n)))
	assert.Len(t, h.exec.Executed(), 3)
	assert.False(t, h.exec.IsFinal(1))
}

func TestPartialNode_CancelStopsAllUnits(t *testing.T) {
	_, n := newHarness(t, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := runNode(ctx, n)
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.ErrorIs(t, waitRun(t, done), context.Canceled)
}

func TestPartialNode_RunOnlyOnce(t *testing.T) {
	h, n := newHarness(t, 0, nil)
	h.da.EndStreams()

	require.NoError(t, waitRun(t, runNode(context.Background(), n)))
	require.ErrorIs(t, n.Run(context.Background(), nil), ErrNodeConsumed)
}

func TestPartialNode_BackgroundAlreadyStarted(t *testing.T) {
	h, n := newHarness(t, 0, nil)
	_, _, err := h.exec.Background(execution.NewBatchChannel(1), nil, execution.DefaultConfig())
	require.NoError(t, err)

	require.ErrorIs(t, n.Run(context.Background(), nil), execution.ErrBackgroundStarted)
}

func TestPartialNode_BindsAPIContext(t *testing.T) {
	exec := execution.NewDummyExecutor()
	da := coreda.NewDummyDA(0)
	api := rpcserver.NewServer(testConfig(), zerolog.Nop())
	n, err := New(testConfig(), Components{
		Executor:  exec,
		DA:        da,
		API:       api,
		SyncStore: newSyncStore(t, 0),
	}, zerolog.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(api.Handler())
	defer ts.Close()
	client := rpcclient.NewClient(ts.URL)

	ready, reason, err := client.IsReady(context.Background())
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Contains(t, reason, "execution not bound")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runNode(ctx, n)

	publishRange(da, 1, 2)
	require.Eventually(t, func() bool {
		ready, _, err := client.IsReady(context.Background())
		return err == nil && ready
	}, runTimeout, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		sync, err := client.GetSync(context.Background())
		return err == nil && sync.Height == 2 && sync.DAHeight == 2
	}, runTimeout, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, waitRun(t, done), context.Canceled)
}

func TestPartialNode_APIFailureHaltsExecution(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	cfg := testConfig()
	cfg.RPC.Address = lis.Addr().String()

	exec := execution.NewDummyExecutor()
	da := coreda.NewDummyDA(0)
	n, err := New(cfg, Components{
		Executor:  exec,
		DA:        da,
		SyncStore: newSyncStore(t, 0),
	}, zerolog.Nop())
	require.NoError(t, err)

	err = waitRun(t, runNode(context.Background(), n))

	var unitErr *UnitError
	require.ErrorAs(t, err, &unitErr)
	assert.Equal(t, UnitAPIServices, unitErr.Unit)
}

func TestNew_Validation(t *testing.T) {
	cfg := testConfig()
	manager, _ := settlement.NewManager(mock.NewClient(), cfg.Settlement, zerolog.Nop())

	_, err := New(cfg, Components{DA: coreda.NewDummyDA(0), SyncStore: newSyncStore(t, 0)}, zerolog.Nop())
	require.Error(t, err)

	_, err = New(cfg, Components{
		Executor:   execution.NewDummyExecutor(),
		DA:         coreda.NewDummyDA(0),
		SyncStore:  newSyncStore(t, 0),
		Settlement: &block.Settlement{Manager: manager},
	}, zerolog.Nop())
	require.Error(t, err)
}
