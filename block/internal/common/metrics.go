package common

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "partial_node"
)

// Operation names of the OperationDuration histograms.
const (
	OperationExecution  = "execution"
	OperationCheckpoint = "checkpoint"
	OperationSettlement = "settlement"
)

// CommitmentEventKind is the label of a settlement event counter.
type CommitmentEventKind string

const (
	CommitmentEventAccepted CommitmentEventKind = "accepted"
	CommitmentEventRejected CommitmentEventKind = "rejected"
	CommitmentEventFailed   CommitmentEventKind = "failed"
)

// AllCommitmentEventKinds returns all possible settlement event kinds
func AllCommitmentEventKinds() []CommitmentEventKind {
	return []CommitmentEventKind{
		CommitmentEventAccepted,
		CommitmentEventRejected,
		CommitmentEventFailed,
	}
}

func operations() []string {
	return []string{OperationExecution, OperationCheckpoint, OperationSettlement}
}

// Metrics contains all metrics exposed by this package.
type Metrics struct {
	// Ingress metrics
	BatchesForwarded      metrics.Counter // Number of DA batches forwarded to execution
	TxsForwarded          metrics.Counter // Number of transactions forwarded to execution
	LastForwardedDAHeight metrics.Gauge   // DA height of the last forwarded batch
	ForwardingQueueLength metrics.Gauge   // Batches buffered between ingress and execution
	DARetrievalFailures   metrics.Counter

	// Execution metrics
	Height          metrics.Gauge // Height of the last executed block
	SyncedDAHeight  metrics.Gauge `metrics_name:"synced_da_height"` // The checkpointed DA height
	NumTxs          metrics.Gauge // Number of transactions in the latest block
	InvalidTxs      metrics.Counter
	TxsPerBlock     metrics.Histogram
	FinalizedHeight metrics.Gauge

	// Performance metrics
	OperationDuration map[string]metrics.Histogram

	// Settlement metrics
	CommitmentsPosted       metrics.Counter
	CommitmentEvents        map[CommitmentEventKind]metrics.Counter // Counter with kind label
	LastAcceptedCommitment  metrics.Gauge
	SettlementEnqueueErrors metrics.Counter
}

// PrometheusMetrics returns Metrics built using Prometheus client library
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}

	m := &Metrics{
		OperationDuration: make(map[string]metrics.Histogram),
		CommitmentEvents:  make(map[CommitmentEventKind]metrics.Counter),
	}

	counter := func(name, help string) metrics.Counter {
		return prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      name,
			Help:      help,
		}, labels).With(labelsAndValues...)
	}
	gauge := func(name, help string) metrics.Gauge {
		return prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      name,
			Help:      help,
		}, labels).With(labelsAndValues...)
	}

	// Ingress metrics
	m.BatchesForwarded = counter("batches_forwarded_total", "Total number of DA batches forwarded to execution.")
	m.TxsForwarded = counter("txs_forwarded_total", "Total number of transactions forwarded to execution.")
	m.LastForwardedDAHeight = gauge("last_forwarded_da_height", "DA height of the last forwarded batch.")
	m.ForwardingQueueLength = gauge("forwarding_queue_length", "Number of batches buffered between ingress and execution.")
	m.DARetrievalFailures = counter("da_retrieval_failures_total", "Total number of failed DA retrievals")

	// Execution metrics
	m.Height = gauge("height", "Height of the last executed block.")
	m.SyncedDAHeight = gauge("synced_da_height", "The checkpointed DA height.")
	m.NumTxs = gauge("num_txs", "Number of transactions in the latest block.")
	m.InvalidTxs = counter("invalid_txs_total", "Total number of transactions rejected by the execution engine.")
	m.FinalizedHeight = gauge("finalized_height", "Height of the last finalized block.")

	m.TxsPerBlock = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: MetricsSubsystem,
		Name:      "txs_per_block",
		Help:      "Number of transactions per block",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, labels).With(labelsAndValues...)

	for _, op := range operations() {
		m.OperationDuration[op] = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			ConstLabels: map[string]string{
				"operation": op,
			},
		}, labels).With(labelsAndValues...)
	}

	// Settlement metrics
	m.CommitmentsPosted = counter("commitments_posted_total", "Total number of block commitments queued for settlement.")
	m.LastAcceptedCommitment = gauge("last_accepted_commitment_height", "Height of the last commitment accepted by the settlement layer.")
	m.SettlementEnqueueErrors = counter("settlement_enqueue_errors_total", "Total number of commitments that could not be queued for settlement.")

	for _, kind := range AllCommitmentEventKinds() {
		m.CommitmentEvents[kind] = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "commitment_events_total",
			Help:      "Total number of settlement events by kind",
			ConstLabels: map[string]string{
				"kind": string(kind),
			},
		}, labels).With(labelsAndValues...)
	}

	return m
}

// NopMetrics returns no-op Metrics
func NopMetrics() *Metrics {
	m := &Metrics{
		BatchesForwarded:      discard.NewCounter(),
		TxsForwarded:          discard.NewCounter(),
		LastForwardedDAHeight: discard.NewGauge(),
		ForwardingQueueLength: discard.NewGauge(),
		DARetrievalFailures:   discard.NewCounter(),

		Height:          discard.NewGauge(),
		SyncedDAHeight:  discard.NewGauge(),
		NumTxs:          discard.NewGauge(),
		InvalidTxs:      discard.NewCounter(),
		TxsPerBlock:     discard.NewHistogram(),
		FinalizedHeight: discard.NewGauge(),

		OperationDuration: make(map[string]metrics.Histogram),

		CommitmentsPosted:       discard.NewCounter(),
		CommitmentEvents:        make(map[CommitmentEventKind]metrics.Counter),
		LastAcceptedCommitment:  discard.NewGauge(),
		SettlementEnqueueErrors: discard.NewCounter(),
	}

	for _, op := range operations() {
		m.OperationDuration[op] = discard.NewHistogram()
	}
	for _, kind := range AllCommitmentEventKinds() {
		m.CommitmentEvents[kind] = discard.NewCounter()
	}

	return m
}
