package node

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreda "github.com/inertialabsxyz/movement/core/da"
	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/pkg/config"
	pkgda "github.com/inertialabsxyz/movement/pkg/da"
	"github.com/inertialabsxyz/movement/pkg/da/lightnode"
	"github.com/inertialabsxyz/movement/pkg/store"
)

// localLightNodeConfig starts an in-memory light node and returns a configuration pointing at it.
func localLightNodeConfig(t *testing.T) config.Config {
	t.Helper()
	local := lightnode.NewLocalDA(zerolog.Nop(), lightnode.WithBlockTime(0))
	srv := httptest.NewServer(local.Handler(true))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.ParseUint(u.Port(), 10, 16)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.RootDir = t.TempDir()
	cfg.DA.LightNode.Protocol = u.Scheme
	cfg.DA.LightNode.Host = u.Hostname()
	cfg.DA.LightNode.Port = uint16(port)
	cfg.DA.LightNode.BlockTime = config.DurationWrapper{Duration: 10 * time.Millisecond}
	cfg.DA.LightNode.RequestTimeout = config.DurationWrapper{Duration: 2 * time.Second}
	return cfg
}

func TestTryFromConfig_UnreachableLightNode(t *testing.T) {
	cfg := testConfig()
	cfg.RootDir = t.TempDir()
	cfg.DA.LightNode.Port = 1
	cfg.DA.LightNode.RequestTimeout = config.DurationWrapper{Duration: time.Second}

	_, err := TryFromConfig(context.Background(), cfg, nil, zerolog.Nop())

	var constructionErr *ConstructionError
	require.ErrorAs(t, err, &constructionErr)
	assert.Equal(t, SubsystemDA, constructionErr.Subsystem)
	assert.Contains(t, err.Error(), "failed to connect to light node")
}

func TestTryFromConfig_InvalidNamespace(t *testing.T) {
	cfg := localLightNodeConfig(t)
	cfg.DA.LightNode.Namespace = ""

	_, err := TryFromConfig(context.Background(), cfg, nil, zerolog.Nop())

	var constructionErr *ConstructionError
	require.ErrorAs(t, err, &constructionErr)
	assert.Equal(t, SubsystemDA, constructionErr.Subsystem)
}

func TestTryFromConfig_SettlementFailureReleasesResources(t *testing.T) {
	cfg := localLightNodeConfig(t)
	cfg.Settlement.Enabled = true
	cfg.Settlement.ClientType = "unknown"

	_, err := TryFromConfig(context.Background(), cfg, nil, zerolog.Nop())

	var constructionErr *ConstructionError
	require.ErrorAs(t, err, &constructionErr)
	assert.Equal(t, SubsystemSettlement, constructionErr.Subsystem)
	assert.Contains(t, err.Error(), "failed to build settlement client with config")

	// the execution state was closed, so it can be opened again
	cfg.Settlement.Enabled = false
	n, err := TryFromConfig(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, n.close())
}

func TestAssemble_ReportsNodeSubsystem(t *testing.T) {
	_, err := assemble(testConfig(), Components{DA: coreda.NewDummyDA(0)}, zerolog.Nop())
	require.Error(t, err)

	var constructionErr *ConstructionError
	require.ErrorAs(t, err, &constructionErr)
	assert.Equal(t, SubsystemNode, constructionErr.Subsystem)
	assert.ErrorContains(t, err, "failed to assemble the node")
}

func TestTryFromConfig_SettlementGating(t *testing.T) {
	cfg := localLightNodeConfig(t)

	n, err := TryFromConfig(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, n.Settles())
	require.NoError(t, n.close())

	cfg.Settlement.Enabled = true
	cfg.Settlement.ClientType = config.SettlementClientMock
	n, err = TryFromConfig(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, n.Settles())
	require.NoError(t, n.close())
}

func TestTryFromConfig_FollowsLightNode(t *testing.T) {
	ctx := context.Background()
	cfg := localLightNodeConfig(t)
	cfg.DA.LightNode.InitialHeight = 0

	acks := make(chan []execution.TxResult, 16)
	n, err := TryFromConfig(ctx, cfg, acks, zerolog.Nop())
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- n.Run(runCtx, nil) }()

	// another writer posts a batch to the namespace the node follows
	writer, err := pkgda.NewClientFromConfig(ctx, cfg.DA.LightNode, cfg.Execution.ChainID, zerolog.Nop())
	require.NoError(t, err)
	defer writer.Close()

	height, err := writer.SubmitBatch(ctx, coreda.Batch{Transactions: [][]byte{[]byte("greeting=hello")}})
	require.NoError(t, err)

	select {
	case results := <-acks:
		require.Len(t, results, 1)
		assert.Equal(t, execution.TxStatusCommitted, results[0].Status)
	case <-time.After(runTimeout):
		t.Fatal("transaction was not executed")
	}

	require.Eventually(t, func() bool {
		synced, err := n.syncStore.GetSyncedHeight(ctx)
		return err == nil && synced == height
	}, runTimeout, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, waitRun(t, done), context.Canceled)

	// the node released its databases on exit
	daDB, err := store.OpenDaDB(cfg.DaDBPath())
	require.NoError(t, err)
	defer daDB.Close()
	synced, err := daDB.GetSyncedHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, height, synced)
}
