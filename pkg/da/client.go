// Package da connects the node to a DA light node. It implements the core DA client contract on
// top of the light node JSON-RPC API.
package da

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/celestiaorg/go-square/v3/share"
	"github.com/rs/zerolog"

	coreda "github.com/inertialabsxyz/movement/core/da"
	"github.com/inertialabsxyz/movement/pkg/config"
	"github.com/inertialabsxyz/movement/pkg/da/lightnode"
	"github.com/inertialabsxyz/movement/pkg/namespace"
	"github.com/inertialabsxyz/movement/types"
)

const (
	// maxFetchAttempts is the number of consecutive failed reads of a height before the stream gives up.
	maxFetchAttempts = 3

	defaultBlockTime      = 6 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Config contains configuration for the light node client.
type Config struct {
	// URL is the light node RPC endpoint (protocol://host:port).
	URL       string
	AuthToken string
	// Namespace is the namespace batches are read from and submitted to.
	Namespace share.Namespace
	// ChainID is stamped on submitted batches; batches of other chains are skipped on read.
	ChainID string
	// BlockTime is the average DA block time, used to wait for heights from the future.
	BlockTime time.Duration
	// RequestTimeout bounds every RPC call.
	RequestTimeout time.Duration
	MaxBlobSize    uint64
	Logger         zerolog.Logger
}

// BlobAPI captures the subset of lightnode.BlobAPI used by LightNodeClient.
type BlobAPI interface {
	Submit(ctx context.Context, blobs []*lightnode.Blob, opts *lightnode.SubmitOptions) (uint64, error)
	GetAll(ctx context.Context, height uint64, namespaces []share.Namespace) ([]*lightnode.Blob, error)
}

// LightNodeClient implements the DA client contract over a light node connection.
type LightNodeClient struct {
	blobAPI   BlobAPI
	closer    func()
	transport lightnode.Transport

	namespace      share.Namespace
	chainID        string
	blockTime      time.Duration
	requestTimeout time.Duration
	maxBlobSize    uint64
	logger         zerolog.Logger
}

var _ coreda.Client = (*LightNodeClient)(nil)

// TryHTTP1 connects to the light node over HTTP/1.1 and checks it is reachable.
func TryHTTP1(ctx context.Context, cfg Config) (*LightNodeClient, error) {
	return dial(ctx, cfg, lightnode.TransportHTTP1)
}

// TryHTTP2 connects to the light node over cleartext HTTP/2 and checks it is reachable.
func TryHTTP2(ctx context.Context, cfg Config) (*LightNodeClient, error) {
	return dial(ctx, cfg, lightnode.TransportHTTP2)
}

// NewClient selects the wire variant: HTTP/1.1 when http1 is set, HTTP/2 otherwise.
func NewClient(ctx context.Context, cfg Config, http1 bool) (*LightNodeClient, error) {
	if http1 {
		return TryHTTP1(ctx, cfg)
	}
	return TryHTTP2(ctx, cfg)
}

// NewClientFromConfig connects to the light node described by cfg. Batches carry chainID.
func NewClientFromConfig(ctx context.Context, cfg config.LightNodeConfig, chainID string, logger zerolog.Logger) (*LightNodeClient, error) {
	ns, err := namespace.Resolve(cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("invalid namespace: %w", err)
	}
	return NewClient(ctx, Config{
		URL:            cfg.URL(),
		AuthToken:      cfg.AuthToken,
		Namespace:      ns,
		ChainID:        chainID,
		BlockTime:      cfg.BlockTime.Duration,
		RequestTimeout: cfg.RequestTimeout.Duration,
		Logger:         logger,
	}, cfg.HTTP1)
}

func dial(ctx context.Context, cfg Config, transport lightnode.Transport) (*LightNodeClient, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	rpc, err := lightnode.NewClient(ctx, cfg.URL, cfg.AuthToken, transport, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	head, err := rpc.Header.NetworkHead(pingCtx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("light node at %s unreachable over %s: %w", cfg.URL, transport, err)
	}

	c := NewLightNodeClient(&rpc.Blob, cfg)
	c.closer = rpc.Close
	c.transport = transport
	c.logger.Info().
		Str("url", cfg.URL).
		Str("transport", transport.String()).
		Uint64("network_head", head.Height).
		Msg("connected to light node")
	return c, nil
}

// NewLightNodeClient wraps an already connected blob API.
func NewLightNodeClient(api BlobAPI, cfg Config) *LightNodeClient {
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = defaultBlockTime
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxBlobSize == 0 {
		cfg.MaxBlobSize = lightnode.DefaultMaxBlobSize
	}

	return &LightNodeClient{
		blobAPI:        api,
		closer:         func() {},
		namespace:      cfg.Namespace,
		chainID:        cfg.ChainID,
		blockTime:      cfg.BlockTime,
		requestTimeout: cfg.RequestTimeout,
		maxBlobSize:    cfg.MaxBlobSize,
		logger:         cfg.Logger.With().Str("component", "da_client").Logger(),
	}
}

// Transport returns the wire variant of the connection.
func (c *LightNodeClient) Transport() lightnode.Transport {
	return c.transport
}

// Namespace returns the namespace batches are read from and submitted to.
func (c *LightNodeClient) Namespace() share.Namespace {
	return c.namespace
}

// SubmitBatch encodes the batch into a single blob and submits it.
func (c *LightNodeClient) SubmitBatch(ctx context.Context, batch coreda.Batch) (uint64, error) {
	data, err := types.MarshalBatch(types.BatchPayload{ChainID: c.chainID, Transactions: batch.Transactions})
	if err != nil {
		return 0, fmt.Errorf("failed to encode batch: %w", err)
	}
	if uint64(len(data)) > c.maxBlobSize {
		return 0, fmt.Errorf("%w: %d > %d", coreda.ErrBlobSizeOverLimit, len(data), c.maxBlobSize)
	}

	blob, err := lightnode.NewBlobV0(c.namespace, data)
	if err != nil {
		return 0, fmt.Errorf("failed to build blob: %w", err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	height, err := c.blobAPI.Submit(submitCtx, []*lightnode.Blob{blob}, &lightnode.SubmitOptions{})
	if err != nil {
		err = mapError(err)
		c.logger.Error().Err(err).Int("num_txs", batch.Len()).Msg("DA submission failed")
		return 0, fmt.Errorf("failed to submit blob: %w", err)
	}

	c.logger.Debug().Uint64("da_height", height).Int("num_txs", batch.Len()).Int("blob_size", len(data)).Msg("batch submitted")
	return height, nil
}

// StreamReadFromHeight returns a stream of the batches posted at height and above.
func (c *LightNodeClient) StreamReadFromHeight(_ context.Context, height uint64) (coreda.Stream, error) {
	return newBlobStream(c, height), nil
}

// Close closes the light node connection.
func (c *LightNodeClient) Close() {
	c.closer()
}

// getAll reads and decodes the batches posted at height.
// Foreign or malformed blobs in the namespace are skipped.
func (c *LightNodeClient) getAll(ctx context.Context, height uint64) ([][]byte, bool, error) {
	getCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	blobs, err := c.blobAPI.GetAll(getCtx, height, []share.Namespace{c.namespace})
	if err != nil {
		return nil, false, mapError(err)
	}

	var (
		txs   [][]byte
		found bool
	)
	for i, b := range blobs {
		payload, err := types.UnmarshalBatch(b.Data())
		if err != nil {
			c.logger.Warn().Err(err).Uint64("da_height", height).Int("blob", i).Msg("skipping malformed blob")
			continue
		}
		if c.chainID != "" && payload.ChainID != c.chainID {
			c.logger.Debug().Str("chain_id", payload.ChainID).Uint64("da_height", height).Msg("skipping blob of another chain")
			continue
		}
		found = true
		txs = append(txs, payload.Transactions...)
	}
	return txs, found, nil
}

// mapError recovers the sentinel behind an RPC error.
// Known errors are matched by substring because the RPC layer flattens them into strings.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, coreda.ErrBlobNotFound), strings.Contains(err.Error(), coreda.ErrBlobNotFound.Error()):
		return fmt.Errorf("%w: %v", coreda.ErrBlobNotFound, err)
	case errors.Is(err, coreda.ErrHeightFromFuture), strings.Contains(err.Error(), coreda.ErrHeightFromFuture.Error()):
		return fmt.Errorf("%w: %v", coreda.ErrHeightFromFuture, err)
	case errors.Is(err, coreda.ErrBlobSizeOverLimit), strings.Contains(err.Error(), coreda.ErrBlobSizeOverLimit.Error()):
		return fmt.Errorf("%w: %v", coreda.ErrBlobSizeOverLimit, err)
	}
	return err
}
