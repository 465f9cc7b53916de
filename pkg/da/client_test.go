package da

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/celestiaorg/go-square/v3/share"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreda "github.com/inertialabsxyz/movement/core/da"
	"github.com/inertialabsxyz/movement/pkg/da/lightnode"
)

var testNamespace = share.MustNewV0Namespace([]byte("movement"))

func newLocalLightNode(t *testing.T) (*lightnode.LocalDA, string) {
	t.Helper()
	local := lightnode.NewLocalDA(zerolog.Nop(), lightnode.WithBlockTime(0))
	srv := httptest.NewServer(local.Handler(true))
	t.Cleanup(srv.Close)
	return local, srv.URL
}

func testConfig(url string) Config {
	return Config{
		URL:            url,
		Namespace:      testNamespace,
		ChainID:        "movement-test",
		BlockTime:      10 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
		Logger:         zerolog.Nop(),
	}
}

func TestLightNodeClient_SubmitAndStream(t *testing.T) {
	for _, http1 := range []bool{true, false} {
		name := "http2"
		if http1 {
			name = "http1"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			local, url := newLocalLightNode(t)

			client, err := NewClient(ctx, testConfig(url), http1)
			require.NoError(t, err)
			t.Cleanup(client.Close)
			assert.Equal(t, name, client.Transport().String())

			// empty heights are skipped by the stream
			local.AdvanceHeight()
			local.AdvanceHeight()

			txs := [][]byte{[]byte("tx-1"), []byte("tx-2")}
			height, err := client.SubmitBatch(ctx, coreda.Batch{Transactions: txs})
			require.NoError(t, err)
			require.Equal(t, uint64(3), height)

			stream, err := client.StreamReadFromHeight(ctx, 1)
			require.NoError(t, err)
			t.Cleanup(func() { _ = stream.Close() })

			batch, err := stream.Next(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(3), batch.DAHeight)
			assert.Equal(t, txs, batch.Transactions)
		})
	}
}

func TestLightNodeClient_SkipsForeignAndMalformedBlobs(t *testing.T) {
	ctx := context.Background()
	_, url := newLocalLightNode(t)

	other := testConfig(url)
	other.ChainID = "another-chain"
	foreign, err := TryHTTP1(ctx, other)
	require.NoError(t, err)
	t.Cleanup(foreign.Close)

	client, err := TryHTTP1(ctx, testConfig(url))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	_, err = foreign.SubmitBatch(ctx, coreda.Batch{Transactions: [][]byte{[]byte("foreign")}})
	require.NoError(t, err)

	raw, err := lightnode.NewClient(ctx, url, "", lightnode.TransportHTTP1, time.Second)
	require.NoError(t, err)
	t.Cleanup(raw.Close)
	junk, err := lightnode.NewBlobV0(testNamespace, []byte{0xff, 0x01})
	require.NoError(t, err)
	_, err = raw.Blob.Submit(ctx, []*lightnode.Blob{junk}, nil)
	require.NoError(t, err)

	height, err := client.SubmitBatch(ctx, coreda.Batch{Transactions: [][]byte{[]byte("ours")}})
	require.NoError(t, err)
	require.Equal(t, uint64(3), height)

	stream, err := client.StreamReadFromHeight(ctx, 1)
	require.NoError(t, err)
	defer stream.Close()

	batch, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), batch.DAHeight)
	assert.Equal(t, [][]byte{[]byte("ours")}, batch.Transactions)
}

func TestLightNodeClient_StreamWaitsForFutureHeights(t *testing.T) {
	ctx := context.Background()
	_, url := newLocalLightNode(t)

	client, err := TryHTTP2(ctx, testConfig(url))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	stream, err := client.StreamReadFromHeight(ctx, 1)
	require.NoError(t, err)
	defer stream.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = client.SubmitBatch(ctx, coreda.Batch{Transactions: [][]byte{[]byte("late")}})
	}()

	nextCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	batch, err := stream.Next(nextCtx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), batch.DAHeight)
}

func TestLightNodeClient_StreamContextDone(t *testing.T) {
	ctx := context.Background()
	_, url := newLocalLightNode(t)

	client, err := TryHTTP1(ctx, testConfig(url))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	stream, err := client.StreamReadFromHeight(ctx, 1)
	require.NoError(t, err)
	defer stream.Close()

	nextCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = stream.Next(nextCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLightNodeClient_StreamClose(t *testing.T) {
	ctx := context.Background()
	_, url := newLocalLightNode(t)

	client, err := TryHTTP1(ctx, testConfig(url))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	stream, err := client.StreamReadFromHeight(ctx, 1)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := stream.Next(ctx)
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}

	_, err = stream.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestLightNodeClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	cfg := testConfig(url)
	cfg.RequestTimeout = 500 * time.Millisecond

	_, err := TryHTTP1(context.Background(), cfg)
	require.Error(t, err)
	_, err = TryHTTP2(context.Background(), cfg)
	require.Error(t, err)
}

func TestLightNodeClient_SubmitOverLimit(t *testing.T) {
	cfg := testConfig("")
	cfg.MaxBlobSize = 8
	client := NewLightNodeClient(&fakeBlobAPI{}, cfg)

	_, err := client.SubmitBatch(context.Background(), coreda.Batch{Transactions: [][]byte{make([]byte, 64)}})
	require.ErrorIs(t, err, coreda.ErrBlobSizeOverLimit)
}

type fakeBlobAPI struct {
	calls  atomic.Int32
	getErr error
}

func (f *fakeBlobAPI) Submit(context.Context, []*lightnode.Blob, *lightnode.SubmitOptions) (uint64, error) {
	return 1, nil
}

func (f *fakeBlobAPI) GetAll(context.Context, uint64, []share.Namespace) ([]*lightnode.Blob, error) {
	f.calls.Add(1)
	return nil, f.getErr
}

func TestBlobStream_GivesUpAfterRepeatedFailures(t *testing.T) {
	api := &fakeBlobAPI{getErr: errors.New("connection reset")}
	client := NewLightNodeClient(api, testConfig(""))

	stream, err := client.StreamReadFromHeight(context.Background(), 7)
	require.NoError(t, err)

	_, err = stream.Next(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")
	assert.ErrorContains(t, err, "height 7")
	assert.Equal(t, int32(maxFetchAttempts), api.calls.Load())
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"not found", errors.New("RPC error: " + coreda.ErrBlobNotFound.Error()), coreda.ErrBlobNotFound},
		{"future", errors.New("RPC error: " + coreda.ErrHeightFromFuture.Error()), coreda.ErrHeightFromFuture},
		{"size", errors.New(coreda.ErrBlobSizeOverLimit.Error()), coreda.ErrBlobSizeOverLimit},
		{"canceled", context.Canceled, context.Canceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, mapError(tc.err), tc.want)
		})
	}
	require.NoError(t, mapError(nil))
}
