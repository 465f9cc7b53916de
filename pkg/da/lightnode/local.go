package lightnode

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	libshare "github.com/celestiaorg/go-square/v3/share"
	"github.com/filecoin-project/go-jsonrpc"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	coreda "github.com/inertialabsxyz/movement/core/da"
)

// DefaultBlockTime is the default interval between empty blocks of a LocalDA.
const DefaultBlockTime = time.Second

// LocalDA is an in-memory light node. Not production ready! Intended only for development and testing!
//
// Every Submit call seals a new height. When started, empty heights are produced every block time.
type LocalDA struct {
	mu          sync.Mutex // protects the fields below
	blobs       map[uint64][]*Blob
	timestamps  map[uint64]time.Time
	height      uint64
	maxBlobSize uint64
	blockTime   time.Duration

	logger zerolog.Logger
}

// LocalOption configures a LocalDA.
type LocalOption func(*LocalDA)

// WithMaxBlobSize sets the max blob size of LocalDA.
func WithMaxBlobSize(maxBlobSize uint64) LocalOption {
	return func(d *LocalDA) {
		d.maxBlobSize = maxBlobSize
	}
}

// WithBlockTime sets the interval between empty blocks.
func WithBlockTime(blockTime time.Duration) LocalOption {
	return func(d *LocalDA) {
		d.blockTime = blockTime
	}
}

// WithStartHeight sets the current height of the LocalDA.
func WithStartHeight(height uint64) LocalOption {
	return func(d *LocalDA) {
		d.height = height
	}
}

// NewLocalDA creates a new in-memory light node.
func NewLocalDA(logger zerolog.Logger, opts ...LocalOption) *LocalDA {
	d := &LocalDA{
		blobs:       make(map[uint64][]*Blob),
		timestamps:  make(map[uint64]time.Time),
		maxBlobSize: DefaultMaxBlobSize,
		blockTime:   DefaultBlockTime,
		logger:      logger.With().Str("component", "local_da").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start produces an empty block every block time until ctx is done.
func (d *LocalDA) Start(ctx context.Context) {
	if d.blockTime <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(d.blockTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.AdvanceHeight()
			}
		}
	}()
}

// AdvanceHeight seals an empty block and returns its height.
func (d *LocalDA) AdvanceHeight() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.height++
	d.timestamps[d.height] = time.Now()
	return d.height
}

// Height returns the current height.
func (d *LocalDA) Height() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.height
}

// Handler returns the JSON-RPC handler serving the blob and header namespaces.
// With useH2C the handler also accepts cleartext HTTP/2.
func (d *LocalDA) Handler(useH2C bool) http.Handler {
	rpc := jsonrpc.NewServer()
	rpc.Register("blob", &blobServer{da: d})
	rpc.Register("header", &headerServer{da: d})

	if !useH2C {
		return rpc
	}
	return h2c.NewHandler(rpc, &http2.Server{})
}

// blobServer exposes a minimal light node blob RPC surface backed by LocalDA.
type blobServer struct {
	da *LocalDA
}

// Submit stores blobs and returns the height they were included at.
func (s *blobServer) Submit(_ context.Context, blobs []*Blob, _ *SubmitOptions) (uint64, error) {
	stored := make([]*Blob, len(blobs))
	for i, b := range blobs {
		if uint64(len(b.Data())) > s.da.maxBlobSize {
			return 0, coreda.ErrBlobSizeOverLimit
		}
		// stored blobs carry their position in the block as index
		blob, err := newBlob(b.ShareVersion(), b.Namespace(), b.Data(), b.Signer(), i)
		if err != nil {
			return 0, err
		}
		stored[i] = blob
	}

	s.da.mu.Lock()
	defer s.da.mu.Unlock()

	s.da.height++
	height := s.da.height
	s.da.timestamps[height] = time.Now()
	s.da.blobs[height] = append(s.da.blobs[height], stored...)

	s.da.logger.Debug().Int("num_blobs", len(blobs)).Uint64("height", height).Msg("blobs submitted")
	return height, nil
}

// Get returns a blob by height/namespace/commitment.
func (s *blobServer) Get(_ context.Context, height uint64, namespace libshare.Namespace, commitment Commitment) (*Blob, error) {
	s.da.mu.Lock()
	defer s.da.mu.Unlock()

	if height > s.da.height {
		return nil, coreda.ErrHeightFromFuture
	}
	for _, b := range s.da.blobs[height] {
		if b.Namespace().Equals(namespace) && b.EqualCommitment(commitment) {
			return b, nil
		}
	}
	return nil, coreda.ErrBlobNotFound
}

// GetAll returns blobs matching any of the provided namespaces at the given height.
func (s *blobServer) GetAll(_ context.Context, height uint64, namespaces []libshare.Namespace) ([]*Blob, error) {
	s.da.mu.Lock()
	defer s.da.mu.Unlock()

	if height > s.da.height {
		return nil, coreda.ErrHeightFromFuture
	}

	blobs, ok := s.da.blobs[height]
	if !ok {
		return nil, coreda.ErrBlobNotFound
	}
	if len(namespaces) == 0 {
		return blobs, nil
	}

	out := make([]*Blob, 0, len(blobs))
	for _, b := range blobs {
		for _, ns := range namespaces {
			if b.Namespace().Equals(ns) {
				out = append(out, b)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, coreda.ErrBlobNotFound
	}
	return out, nil
}

// headerServer exposes a minimal header RPC surface backed by LocalDA.
type headerServer struct {
	da *LocalDA
}

// NetworkHead returns the header of the current height.
func (s *headerServer) NetworkHead(_ context.Context) (*Header, error) {
	s.da.mu.Lock()
	defer s.da.mu.Unlock()

	return &Header{
		Height:    s.da.height,
		BlockTime: s.da.timestamps[s.da.height],
	}, nil
}

// GetByHeight returns the header for a specific height.
func (s *headerServer) GetByHeight(_ context.Context, height uint64) (*Header, error) {
	s.da.mu.Lock()
	defer s.da.mu.Unlock()

	if height > s.da.height {
		return nil, coreda.ErrHeightFromFuture
	}
	return &Header{
		Height:    height,
		BlockTime: s.da.timestamps[height],
	}, nil
}

// Server serves a LocalDA over HTTP.
type Server struct {
	logger   zerolog.Logger
	srv      *http.Server
	listener net.Listener

	started atomic.Bool
}

// NewServer creates a server for da listening on addr. With useH2C the server also
// accepts cleartext HTTP/2 connections.
func NewServer(logger zerolog.Logger, addr string, da *LocalDA, useH2C bool) *Server {
	return &Server{
		logger: logger.With().Str("component", "local_da_server").Logger(),
		srv: &http.Server{
			Addr:              addr,
			Handler:           da.Handler(useH2C),
			ReadHeaderTimeout: 2 * time.Second,
		},
	}
}

// Start starts the server. Once started, subsequent calls are a no-op.
func (s *Server) Start(context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("cannot start server: already started")
		return nil
	}
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		s.started.Store(false)
		return err
	}
	s.listener = listener
	s.logger.Info().Str("listening_on", listener.Addr().String()).Msg("server started")

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("local DA server failed")
		}
	}()
	return nil
}

// Addr returns the address the server listens on, once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.srv.Addr
	}
	return s.listener.Addr().String()
}

// Stop stops the server. Once stopped, subsequent calls are a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.started.CompareAndSwap(true, false) {
		s.logger.Warn().Msg("cannot stop server: already stopped")
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	s.listener = nil
	s.logger.Info().Msg("server stopped")
	return nil
}
