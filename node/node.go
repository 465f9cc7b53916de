// Package node assembles the partial node: it builds the DA client, the execution engine, the
// optional settlement subsystem and the API surface, and runs them as a set of units that stop
// together.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/inertialabsxyz/movement/block"
	coreda "github.com/inertialabsxyz/movement/core/da"
	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/pkg/config"
	rpcserver "github.com/inertialabsxyz/movement/pkg/rpc/server"
	"github.com/inertialabsxyz/movement/pkg/store"
)

// Unit names, as reported by UnitError.
const (
	UnitExecuteSettle       = "execute_settle"
	UnitTransactionIngress  = "transaction_ingress"
	UnitExecutionBackground = "execution_background"
	UnitAPIServices         = "api_services"
)

// ErrNodeConsumed is returned when Run is called on a node that already ran.
var ErrNodeConsumed = errors.New("partial node already consumed")

// Components are the parts a PartialNode is made of.
type Components struct {
	Executor execution.Executor
	DA       coreda.Client
	// Settlement is nil when the node does not settle.
	Settlement *block.Settlement
	API        *rpcserver.Server
	SyncStore  store.SyncStore
	Metrics    *block.Metrics
}

// PartialNode follows the DA layer, executes the batches it reads and, optionally, settles
// the resulting state.
type PartialNode struct {
	cfg        config.Config
	exec       execution.Executor
	da         coreda.Client
	settlement *block.Settlement
	api        *rpcserver.Server
	syncStore  store.SyncStore
	metrics    *block.Metrics
	logger     zerolog.Logger

	// closers release the resources the node opened itself, in order.
	closers []func() error

	consumed atomic.Bool
}

// New creates a node from already built components. The caller keeps ownership of them.
func New(cfg config.Config, c Components, logger zerolog.Logger) (*PartialNode, error) {
	if c.Executor == nil || c.DA == nil || c.SyncStore == nil {
		return nil, errors.New("executor, DA client and sync store are required")
	}
	if c.Settlement != nil && (c.Settlement.Manager == nil || c.Settlement.Events == nil) {
		return nil, errors.New("settlement requires both a manager and its event stream")
	}
	if c.API == nil {
		c.API = rpcserver.NewServer(cfg, logger)
	}
	if c.Metrics == nil {
		c.Metrics = block.NopMetrics()
	}

	return &PartialNode{
		cfg:        cfg,
		exec:       c.Executor,
		da:         c.DA,
		settlement: c.Settlement,
		api:        c.API,
		syncStore:  c.SyncStore,
		metrics:    c.Metrics,
		logger:     logger.With().Str("component", "node").Logger(),
	}, nil
}

// Settles reports whether the node runs the settlement subsystem.
func (n *PartialNode) Settles() bool {
	return n.settlement != nil
}

// Run runs the node until all of its units have stopped and returns the first unit error.
// A node can only be run once.
func (n *PartialNode) Run(ctx context.Context, acks <-chan []execution.TxResult) (multiErr error) {
	if !n.consumed.CompareAndSwap(false, true) {
		return ErrNodeConsumed
	}
	defer func() {
		if err := n.close(); err != nil {
			multiErr = errors.Join(multiErr, err)
		}
	}()

	synced, err := n.syncStore.GetSyncedHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to read synced height: %w", err)
	}

	batches := execution.NewBatchChannel(execution.ForwardingCapacity)
	execCtx, background, err := n.exec.Background(batches, acks, n.cfg.Execution)
	if err != nil {
		return fmt.Errorf("failed to start the execution background: %w", err)
	}
	services := execCtx.Services()
	n.api.SetContext(services.APIContext())

	executeSettle := block.NewExecuteSettleTask(
		n.exec,
		n.syncStore,
		n.settlement,
		n.cfg.ExecutionExtension,
		n.metrics,
		n.logger,
	)
	ingress := block.NewIngress(n.da, batches, synced+1, n.metrics, n.logger)

	servers := n.startInstrumentation()
	defer func() {
		if err := servers.shutdown(); err != nil {
			multiErr = errors.Join(multiErr, err)
		}
	}()

	n.logger.Info().
		Uint64("synced_height", synced).
		Bool("settlement", n.Settles()).
		Msg("starting partial node")

	return join(ctx, n.logger,
		unit{name: UnitExecuteSettle, run: executeSettle.Run},
		unit{name: UnitTransactionIngress, run: ingress.Run},
		unit{name: UnitExecutionBackground, run: background},
		unit{name: UnitAPIServices, run: func(ctx context.Context) error {
			return n.runAPIServices(ctx, services)
		}},
	)
}

// runAPIServices serves the execution services and the REST surface until the execution
// services end. A failure halts the executor so the other units wind down.
func (n *PartialNode) runAPIServices(ctx context.Context, services execution.Services) error {
	g, gctx := errgroup.WithContext(ctx)
	servicesCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error {
		defer stopServer()
		return services.Run(gctx)
	})
	g.Go(func() error {
		return n.api.Run(servicesCtx)
	})

	err := g.Wait()
	if err != nil {
		n.exec.Halt()
	}
	return err
}

func (n *PartialNode) close() error {
	var multiErr error
	for _, c := range n.closers {
		if err := c(); err != nil {
			multiErr = errors.Join(multiErr, err)
		}
	}
	n.closers = nil
	return multiErr
}
