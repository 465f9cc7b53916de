package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/inertialabsxyz/movement/core/execution"
	"github.com/inertialabsxyz/movement/pkg/config"
	"github.com/inertialabsxyz/movement/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

// Server is the REST surface of the node. It serves nothing but health until SetContext
// binds it to the execution state.
type Server struct {
	address string
	tracing bool
	logger  zerolog.Logger

	api atomic.Pointer[apiBinding]
}

type apiBinding struct {
	ctx execution.APIContext
}

// NewServer creates the REST server listening on cfg.RPC.Address.
func NewServer(cfg config.Config, logger zerolog.Logger) *Server {
	return &Server{
		address: cfg.RPC.Address,
		tracing: cfg.Instrumentation != nil && cfg.Instrumentation.IsTracingEnabled(),
		logger:  logger.With().Str("component", "rpc").Logger(),
	}
}

// SetContext binds the server to the execution query context.
func (s *Server) SetContext(api execution.APIContext) {
	s.api.Store(&apiBinding{ctx: api})
}

// boundContext returns the bound execution context, or nil.
func (s *Server) boundContext() execution.APIContext {
	if b := s.api.Load(); b != nil {
		return b.ctx
	}
	return nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	RegisterCustomHTTPEndpoints(mux, s.boundContext, s.logger)

	var handler http.Handler = mux
	if s.tracing {
		handler = telemetry.ExtractTraceContext(WithTracingHandler(handler))
	}

	// Use h2c to support HTTP/2 without TLS
	return h2c.NewHandler(handler, &http2.Server{
		IdleTimeout:          120 * time.Second,
		MaxConcurrentStreams: 100,
		ReadIdleTimeout:      30 * time.Second,
		PingTimeout:          15 * time.Second,
	})
}

// Run serves until ctx is done. An empty address disables the server.
func (s *Server) Run(ctx context.Context) error {
	if s.address == "" {
		<-ctx.Done()
		return nil
	}

	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", lis.Addr().String()).Msg("started RPC server")
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("RPC server stopped")
	return nil
}
