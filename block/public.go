// Package block exposes the long-running tasks of the partial node.
package block

import (
	"github.com/rs/zerolog"

	"github.com/inertialabsxyz/movement/block/internal/common"
	"github.com/inertialabsxyz/movement/block/internal/executing"
	"github.com/inertialabsxyz/movement/block/internal/ingress"
	coreda "github.com/inertialabsxyz/movement/core/da"
	coreexecutor "github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/pkg/config"
	"github.com/inertialabsxyz/movement/pkg/store"
)

// Expose Metrics for constructor
type Metrics = common.Metrics

// PrometheusMetrics creates a new PrometheusMetrics instance with the given namespace and labelsAndValues.
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	return common.PrometheusMetrics(namespace, labelsAndValues...)
}

// NopMetrics creates a new NopMetrics instance.
func NopMetrics() *Metrics {
	return common.NopMetrics()
}

// Errors returned by the tasks.
type (
	IngestionError  = common.IngestionError
	ExecutionError  = common.ExecutionError
	CheckpointError = common.CheckpointError
)

// ErrCommitmentStreamClosed is returned when the settlement event stream closes while the node runs.
var ErrCommitmentStreamClosed = common.ErrCommitmentStreamClosed

// Ingress forwards DA batches to the execution engine.
type Ingress = ingress.Ingress

// NewIngress creates the transaction ingress task reading DA from startHeight.
func NewIngress(
	da coreda.Client,
	batches *coreexecutor.BatchChannel,
	startHeight uint64,
	metrics *Metrics,
	logger zerolog.Logger,
) *Ingress {
	return ingress.NewIngress(da, batches, startHeight, metrics, logger)
}

// ExecuteSettleTask checkpoints execution results and settles them.
type ExecuteSettleTask = executing.Task

// ExecuteSettleState is the phase of the execute-settle loop.
type ExecuteSettleState = executing.State

// Settlement pairs a commitment manager with its event stream.
type Settlement = executing.Settlement

// CommitmentManager submits commitments to the settlement layer.
type CommitmentManager = executing.CommitmentManager

// NewExecuteSettleTask creates the execute-settle task. settlement may be nil.
func NewExecuteSettleTask(
	exec coreexecutor.Executor,
	syncStore store.SyncStore,
	settlement *Settlement,
	extension config.ExecutionExtensionConfig,
	metrics *Metrics,
	logger zerolog.Logger,
) *ExecuteSettleTask {
	return executing.NewTask(exec, syncStore, settlement, extension, metrics, logger)
}
