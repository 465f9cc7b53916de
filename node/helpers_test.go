package node

import (
	"context"
	"testing"
	"time"

	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"

	coreda "github.com/inertialabsxyz/movement/core/da"
	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/pkg/config"
	"github.com/inertialabsxyz/movement/pkg/store"
)

const runTimeout = 5 * time.Second

// testConfig returns a configuration that binds no listener.
func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.RPC.Address = ""
	cfg.Execution.APIAddress = ""
	cfg.Instrumentation = config.DefaultInstrumentationConfig()
	cfg.Settlement.PollInterval = config.DurationWrapper{Duration: 10 * time.Millisecond}
	return cfg
}

func newSyncStore(t *testing.T, synced uint64) *store.DaDB {
	t.Helper()
	db := store.NewDaDB(dssync.MutexWrap(ds.NewMapDatastore()))
	require.NoError(t, db.InitializeSyncedHeight(context.Background(), synced))
	return db
}

func syncedHeight(t *testing.T, s store.SyncStore) uint64 {
	t.Helper()
	h, err := s.GetSyncedHeight(context.Background())
	require.NoError(t, err)
	return h
}

func publishRange(d *coreda.DummyDA, from, to uint64) {
	for h := from; h <= to; h++ {
		d.Publish(coreda.Batch{DAHeight: h, Transactions: [][]byte{{byte(h)}}})
	}
}

func executedHeights(e *execution.DummyExecutor) []uint64 {
	var out []uint64
	for _, b := range e.Executed() {
		out = append(out, b.DAHeight)
	}
	return out
}

func runNode(ctx context.Context, n *PartialNode) <-chan error {
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx, nil) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(runTimeout):
		t.Fatal("node did not stop")
		return nil
	}
}
