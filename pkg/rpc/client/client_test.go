package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/pkg/config"
	"github.com/inertialabsxyz/movement/pkg/rpc/server"
)

type stubAPI struct{ height uint64 }

func (s stubAPI) Height() uint64    { return s.height }
func (s stubAPI) DAHeight() uint64  { return 100 + s.height }
func (s stubAPI) StateRoot() []byte { return []byte{0x01} }
func (s stubAPI) Get(context.Context, string) ([]byte, error) {
	return nil, execution.ErrNotFound
}
func (s stubAPI) SubmitTransaction(context.Context, []byte) error { return nil }

func setupTestServer(t *testing.T) (*server.Server, *Client) {
	t.Helper()
	srv := server.NewServer(config.DefaultConfig(), zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, NewClient(ts.URL)
}

func TestClient_Health(t *testing.T) {
	_, c := setupTestServer(t)

	status, err := c.GetHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, HealthStatus_PASS, status)
	assert.Equal(t, "PASS", status.String())
}

func TestClient_ReadinessAndSync(t *testing.T) {
	srv, c := setupTestServer(t)
	ctx := context.Background()

	ready, reason, err := c.IsReady(ctx)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Contains(t, reason, "UNREADY")

	_, err = c.GetSync(ctx)
	require.Error(t, err)

	srv.SetContext(stubAPI{height: 3})

	ready, _, err = c.IsReady(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	sync, err := c.GetSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, &server.SyncResponse{Height: 3, DAHeight: 103, StateRoot: "01"}, sync)
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient("127.0.0.1:1")
	_, err := c.GetHealth(context.Background())
	require.Error(t, err)
}

func TestNewClient_NormalizesURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:30832", NewClient("127.0.0.1:30832").baseURL)
	assert.Equal(t, "https://node.example", NewClient("https://node.example/").baseURL)
}

func TestNewClient_WithHTTPClient(t *testing.T) {
	custom := &http.Client{}
	assert.Same(t, custom, NewClient("127.0.0.1:30832", WithHTTPClient(custom)).httpClient)
	assert.NotNil(t, NewClient("127.0.0.1:30832", WithHTTPClient(nil)).httpClient)
}
