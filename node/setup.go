package node

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/inertialabsxyz/movement/block"
	coreda "github.com/inertialabsxyz/movement/core/da"
	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/execution/kv"
	"github.com/inertialabsxyz/movement/pkg/config"
	pkgda "github.com/inertialabsxyz/movement/pkg/da"
	rpcserver "github.com/inertialabsxyz/movement/pkg/rpc/server"
	"github.com/inertialabsxyz/movement/pkg/settlement"
	"github.com/inertialabsxyz/movement/pkg/settlement/eth"
	"github.com/inertialabsxyz/movement/pkg/settlement/mock"
	"github.com/inertialabsxyz/movement/pkg/store"
	"github.com/inertialabsxyz/movement/pkg/telemetry"
)

// Subsystems reported by ConstructionError.
const (
	SubsystemDA         = "da"
	SubsystemExecution  = "execution"
	SubsystemSettlement = "settlement"
	SubsystemDaDB       = "da_db"
	SubsystemNode       = "node"
)

// ConstructionError is returned when the node cannot be built from its configuration.
type ConstructionError struct {
	Subsystem string
	Err       error
}

func (e *ConstructionError) Error() string {
	return e.Err.Error()
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

func constructionErr(subsystem, msg string, err error) error {
	return &ConstructionError{Subsystem: subsystem, Err: fmt.Errorf("%s: %w", msg, err)}
}

// TryFromConfig builds every subsystem of the node from cfg, in dependency order. ackSender
// receives the results of executed transactions and may be nil. On failure the subsystems
// built so far are released.
func TryFromConfig(
	ctx context.Context,
	cfg config.Config,
	ackSender chan<- []execution.TxResult,
	logger zerolog.Logger,
) (_ *PartialNode, err error) {
	var closers []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				logger.Warn().Err(cerr).Msg("failed to release subsystem after construction error")
			}
		}
	}()

	tracing := cfg.Instrumentation.IsTracingEnabled()

	// DA
	lightNode, err := pkgda.NewClientFromConfig(ctx, cfg.DA.LightNode, cfg.Execution.ChainID, logger)
	if err != nil {
		return nil, constructionErr(SubsystemDA, "failed to connect to light node", err)
	}
	closers = append(closers, func() error {
		lightNode.Close()
		return nil
	})
	var daClient coreda.Client = lightNode
	if tracing {
		daClient = pkgda.WithTracingClient(daClient)
	}

	// Execution
	kvExec, err := kv.NewExecutorFromConfig(cfg.DBDir(), cfg.Execution, daClient, ackSender, logger)
	if err != nil {
		return nil, constructionErr(SubsystemExecution, "failed to create the inner executor", err)
	}
	closers = append(closers, kvExec.Close)
	var exec execution.Executor = kvExec
	if tracing {
		exec = telemetry.WithTracingExecutor(exec)
	}

	// Settlement
	var pairing *block.Settlement
	if cfg.Settlement.ShouldSettle() {
		client, err := buildSettlementClient(ctx, cfg.Settlement, logger)
		if err != nil {
			return nil, constructionErr(SubsystemSettlement, "failed to build settlement client with config", err)
		}
		// the manager owns the client and closes it once on Stop
		manager, events := settlement.NewManager(client, cfg.Settlement, logger)
		closers = append(closers, manager.Stop)
		pairing = &block.Settlement{Manager: manager, Events: events}
	}

	// API
	api := rpcserver.NewServer(cfg, logger)

	// DaDB
	daDB, err := store.OpenDaDB(cfg.DaDBPath())
	if err != nil {
		return nil, constructionErr(SubsystemDaDB, "failed to create or get DA DB", err)
	}
	closers = append(closers, daDB.Close)
	if err := daDB.InitializeSyncedHeight(ctx, cfg.DA.LightNode.InitialHeight); err != nil {
		return nil, constructionErr(SubsystemDaDB, "failed to create or get DA DB", err)
	}
	var syncStore store.SyncStore = daDB
	if tracing {
		syncStore = store.WithTracingSyncStore(syncStore)
	}

	n, err := assemble(cfg, Components{
		Executor:   exec,
		DA:         daClient,
		Settlement: pairing,
		API:        api,
		SyncStore:  syncStore,
		Metrics:    DefaultMetricsProvider(cfg.Instrumentation)(cfg.Execution.ChainID),
	}, logger)
	if err != nil {
		return nil, err
	}

	// released in reverse construction order once the node stops
	slices.Reverse(closers)
	n.closers = closers
	return n, nil
}

func assemble(cfg config.Config, c Components, logger zerolog.Logger) (*PartialNode, error) {
	n, err := New(cfg, c, logger)
	if err != nil {
		return nil, constructionErr(SubsystemNode, "failed to assemble the node", err)
	}
	return n, nil
}

func buildSettlementClient(ctx context.Context, cfg config.SettlementConfig, logger zerolog.Logger) (settlement.Client, error) {
	switch cfg.ClientType {
	case config.SettlementClientMock:
		return mock.NewClient(), nil
	case config.SettlementClientEth:
		client, err := eth.BuildWithConfig(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, errors.New("unknown settlement client type " + cfg.ClientType)
	}
}
