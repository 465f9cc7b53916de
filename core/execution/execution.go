package execution

import (
	"context"
	"errors"
	"time"
)

// Executor defines the capability set the node requires from an execution engine.
// The node owns exactly one Executor; after Background is called the executor's
// processing happens inside the returned BackgroundFunc, and the node only observes
// its results.
//
// Note: if you are modifying this interface, ensure that all implementations are compatible (kv, dummy).
type Executor interface {
	// Background wires the executor to its inputs and returns the execution context
	// together with the long-running background service.
	// Requirements:
	// - Must consume batches from the consumer side of the forwarding channel, in order
	// - Must mark the forwarding channel's consumer as dropped when the background service returns
	// - Must drain acks to release any resources held for committed transactions
	// - Must not start processing before the BackgroundFunc is invoked
	//
	// Parameters:
	// - batches: forwarding channel from the transaction ingress
	// - acks: upstream acknowledgements of executed transactions
	// - cfg: execution configuration
	//
	// Returns:
	// - Context: handle to the execution services
	// - BackgroundFunc: the background service
	// - err: any wiring error
	Background(batches *BatchChannel, acks <-chan []TxResult, cfg Config) (Context, BackgroundFunc, error)

	// Results returns the stream of execution results, one per executed batch, in execution order.
	// A result is only published once its effects are committed to the executor's durable state.
	// The stream is closed when the background service stops.
	Results() <-chan Result

	// SetFinal marks the block at the given height as finalized.
	// Requirements:
	// - Must be idempotent
	// - Must fail for blocks that were never executed
	SetFinal(ctx context.Context, blockHeight uint64) error

	// Halt requests the background service to stop processing. Safe to call multiple times.
	Halt()
}

// BackgroundFunc is the executor's long-running background service.
type BackgroundFunc func(ctx context.Context) error

// Context is the handle the node uses to reach the execution services.
type Context interface {
	Services() Services
}

// Services is the request/response surface of a running executor.
type Services interface {
	// APIContext returns a live, read-mostly view of the execution state.
	APIContext() APIContext

	// Run serves the API services until ctx is done or the executor stops.
	Run(ctx context.Context) error
}

// APIContext is the query context API surfaces are bound to.
type APIContext interface {
	// Height returns the height of the last executed block.
	Height() uint64
	// DAHeight returns the DA height of the last executed batch.
	DAHeight() uint64
	// StateRoot returns the state root after the last executed block.
	StateRoot() []byte
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// SubmitTransaction accepts a transaction into the mempool.
	SubmitTransaction(ctx context.Context, tx []byte) error
}

// Config holds execution engine parameters.
type Config struct {
	ChainID      string             `mapstructure:"chain_id" yaml:"chain_id" comment:"Chain identifier of the execution engine"`
	DBName       string             `mapstructure:"db_name" yaml:"db_name" comment:"Name of the execution state database inside db_path"`
	APIAddress   string             `mapstructure:"api_address" yaml:"api_address" comment:"Address the execution API services listen on (host:port). Empty disables the listener."`
	LoadShedding LoadSheddingConfig `mapstructure:"load_shedding" yaml:"load_shedding"`
}

// LoadSheddingConfig holds the limits applied to locally submitted transactions.
type LoadSheddingConfig struct {
	// MaxTransactionsInFlight is the maximum number of transactions permitted to be in flight
	// before new transactions are rejected. 0 disables the limit.
	MaxTransactionsInFlight uint64 `mapstructure:"max_transactions_in_flight" yaml:"max_transactions_in_flight" comment:"Maximum number of transactions in flight before new ones are rejected (0 = unlimited)"`
	// BatchProductionTime is the time between two batch productions.
	BatchProductionTime time.Duration `mapstructure:"batch_production_time" yaml:"batch_production_time" comment:"Time between two batch productions"`
}

// DefaultConfig returns the default execution configuration.
func DefaultConfig() Config {
	return Config{
		ChainID:    "movement",
		DBName:     "execution",
		APIAddress: "127.0.0.1:30731",
		LoadShedding: LoadSheddingConfig{
			MaxTransactionsInFlight: 12000,
			BatchProductionTime:     time.Second,
		},
	}
}

// TxStatus is the outcome of a single transaction.
type TxStatus int

const (
	// TxStatusCommitted indicates the transaction was applied to state.
	TxStatusCommitted TxStatus = iota
	// TxStatusInvalid indicates the transaction was rejected by the state machine.
	TxStatusInvalid
)

func (s TxStatus) String() string {
	switch s {
	case TxStatusCommitted:
		return "committed"
	case TxStatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// TxResult is the outcome of one transaction of an executed batch.
type TxResult struct {
	Hash   []byte
	Status TxStatus
	Log    string
}

// Result is produced by the executor for one processed batch.
type Result struct {
	DAHeight    uint64
	BlockHeight uint64
	BlockID     []byte
	StateRoot   []byte
	TxResults   []TxResult
	// Err is set when the batch could not be executed.
	Err error
}

var (
	// ErrNotFound is returned by APIContext.Get for unknown keys.
	ErrNotFound = errors.New("execution: key not found")
	// ErrMempoolFull is returned when load shedding rejects a transaction.
	ErrMempoolFull = errors.New("execution: too many transactions in flight")
	// ErrHalted is returned by an executor that was halted.
	ErrHalted = errors.New("execution: executor halted")
	// ErrBackgroundStarted is returned when Background is called more than once.
	ErrBackgroundStarted = errors.New("execution: background already started")
)
