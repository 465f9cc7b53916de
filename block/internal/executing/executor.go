// Package executing drives the execution engine results into durable checkpoints and
// settlement commitments.
package executing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/inertialabsxyz/movement/block/internal/common"
	coreexecutor "github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/pkg/config"
	"github.com/inertialabsxyz/movement/pkg/settlement"
	"github.com/inertialabsxyz/movement/pkg/store"
)

// CommitmentManager submits commitments to the settlement layer.
type CommitmentManager interface {
	Start(ctx context.Context) error
	PostCommitment(ctx context.Context, c settlement.Commitment) error
	Stop() error
}

var _ CommitmentManager = (*settlement.Manager)(nil)

// Settlement pairs a commitment manager with the event stream it reports outcomes on.
// A node either settles with both or not at all.
type Settlement struct {
	Manager CommitmentManager
	Events  settlement.EventStream
}

// Task checkpoints execution results and, when settlement is enabled, turns them into
// commitments and reacts to their outcome.
type Task struct {
	exec       coreexecutor.Executor
	store      store.SyncStore
	settlement *Settlement
	extension  config.ExecutionExtensionConfig

	metrics *common.Metrics
	logger  zerolog.Logger

	state  atomic.Int32
	synced uint64
	// blocks maps the DA height of a posted commitment to its block height.
	blocks map[uint64]uint64
}

// NewTask creates the execute-settle task. settlement may be nil.
func NewTask(
	exec coreexecutor.Executor,
	syncStore store.SyncStore,
	settlement *Settlement,
	extension config.ExecutionExtensionConfig,
	metrics *common.Metrics,
	logger zerolog.Logger,
) *Task {
	if metrics == nil {
		metrics = common.NopMetrics()
	}
	return &Task{
		exec:       exec,
		store:      syncStore,
		settlement: settlement,
		extension:  extension,
		metrics:    metrics,
		logger:     logger.With().Str("component", "execute_settle").Logger(),
		blocks:     make(map[uint64]uint64),
	}
}

// State returns the current phase of the loop.
func (t *Task) State() State {
	return State(t.state.Load())
}

func (t *Task) setState(s State) {
	t.state.Store(int32(s))
}

// Run processes execution results until the results stream closes, a fatal error occurs or
// ctx is done. On return the settlement manager is stopped and the executor halted.
func (t *Task) Run(ctx context.Context) error {
	defer t.setState(StateIdle)
	defer t.exec.Halt()

	synced, err := t.store.GetSyncedHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to read synced height: %w", err)
	}
	t.synced = synced
	t.metrics.SyncedDAHeight.Set(float64(synced))

	var events settlement.EventStream
	if t.settlement != nil {
		if err := t.settlement.Manager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start settlement manager: %w", err)
		}
		defer func() {
			if err := t.settlement.Manager.Stop(); err != nil {
				t.logger.Warn().Err(err).Msg("failed to stop settlement manager")
			}
		}()
		events = t.settlement.Events
	}

	t.logger.Info().
		Uint64("synced_height", synced).
		Bool("settlement", t.settlement != nil).
		Msg("execute-settle task started")

	results := t.exec.Results()
	for {
		t.setState(StateAwaitingExecutionResult)

		select {
		case <-ctx.Done():
			return ctx.Err()

		case res, ok := <-results:
			if !ok {
				t.logger.Info().Uint64("synced_height", t.synced).Msg("execution results closed, execute-settle task stopping")
				return nil
			}
			if err := t.handleResult(ctx, res); err != nil {
				return err
			}

		case ev, ok := <-events:
			if !ok {
				return common.ErrCommitmentStreamClosed
			}
			if err := t.handleEvent(ctx, ev); err != nil {
				return err
			}
		}

		t.setState(StateIdle)
	}
}

// handleResult checkpoints a result and posts its commitment. The synced height is always
// persisted before the commitment is posted.
func (t *Task) handleResult(ctx context.Context, res coreexecutor.Result) error {
	if res.Err != nil {
		return &common.ExecutionError{DAHeight: res.DAHeight, Err: res.Err}
	}
	if res.DAHeight <= t.synced {
		t.logger.Debug().
			Uint64("da_height", res.DAHeight).
			Uint64("synced_height", t.synced).
			Msg("skipping result for already synced height")
		return nil
	}

	t.recordExecution(res)

	t.setState(StateCheckpointingHeight)
	start := time.Now()
	if err := t.store.SetSyncedHeight(ctx, res.DAHeight); err != nil {
		return &common.CheckpointError{DAHeight: res.DAHeight, Err: err}
	}
	t.metrics.OperationDuration[common.OperationCheckpoint].Observe(time.Since(start).Seconds())
	t.synced = res.DAHeight
	t.metrics.SyncedDAHeight.Set(float64(res.DAHeight))

	t.logger.Debug().
		Uint64("da_height", res.DAHeight).
		Uint64("block_height", res.BlockHeight).
		Msg("checkpointed synced height")

	if t.settlement == nil {
		return nil
	}

	t.setState(StateSettlingIfEnabled)
	start = time.Now()
	com := settlement.NewCommitment(res.DAHeight, res.BlockID, res.StateRoot)
	if err := t.settlement.Manager.PostCommitment(ctx, com); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.metrics.SettlementEnqueueErrors.Add(1)
		t.logger.Error().Err(err).Uint64("da_height", res.DAHeight).Msg("settlement error: failed to post commitment")
		return nil
	}
	t.metrics.OperationDuration[common.OperationSettlement].Observe(time.Since(start).Seconds())
	t.metrics.CommitmentsPosted.Add(1)
	t.blocks[res.DAHeight] = res.BlockHeight
	return nil
}

func (t *Task) recordExecution(res coreexecutor.Result) {
	invalid := 0
	for _, tx := range res.TxResults {
		if tx.Status == coreexecutor.TxStatusInvalid {
			invalid++
		}
	}
	t.metrics.Height.Set(float64(res.BlockHeight))
	t.metrics.NumTxs.Set(float64(len(res.TxResults)))
	t.metrics.TxsPerBlock.Observe(float64(len(res.TxResults)))
	if invalid > 0 {
		t.metrics.InvalidTxs.Add(float64(invalid))
	}
}

// handleEvent reacts to a settlement outcome. Rejections and failures are not fatal.
func (t *Task) handleEvent(ctx context.Context, ev settlement.Event) error {
	com := ev.Commitment
	defer t.forget(com)

	switch ev.Kind {
	case settlement.EventAccepted:
		t.metrics.CommitmentEvents[common.CommitmentEventAccepted].Add(1)
		t.metrics.LastAcceptedCommitment.Set(float64(com.ToHeight))
		t.logger.Info().Stringer("commitment", com).Msg("commitment accepted")

		if !t.extension.FinalizeOnAccept {
			return nil
		}
		blockHeight, ok := t.blocks[com.ToHeight]
		if !ok {
			t.logger.Warn().Stringer("commitment", com).Msg("accepted commitment has no known block, not finalizing")
			return nil
		}
		if err := t.exec.SetFinal(ctx, blockHeight); err != nil {
			return &common.ExecutionError{DAHeight: com.ToHeight, Err: fmt.Errorf("failed to finalize block %d: %w", blockHeight, err)}
		}
		t.metrics.FinalizedHeight.Set(float64(blockHeight))

	case settlement.EventRejected:
		t.metrics.CommitmentEvents[common.CommitmentEventRejected].Add(1)
		t.logger.Warn().Err(ev.Err).Stringer("commitment", com).Msg("settlement error: commitment rejected")

	case settlement.EventFailed:
		t.metrics.CommitmentEvents[common.CommitmentEventFailed].Add(1)
		t.logger.Error().Err(ev.Err).Stringer("commitment", com).Msg("settlement error: commitment submission failed")

	default:
		return fmt.Errorf("unknown commitment event kind %d", ev.Kind)
	}
	return nil
}

func (t *Task) forget(com settlement.Commitment) {
	for h := com.FromHeight; h <= com.ToHeight; h++ {
		delete(t.blocks, h)
	}
}
