package kv

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/inertialabsxyz/movement/core/execution"
)

type kvContext struct{ e *Executor }

func (c kvContext) Services() execution.Services { return &kvServices{e: c.e} }

// kvServices runs the API server and the batch producer while the background service is alive.
type kvServices struct {
	e *Executor
}

func (s *kvServices) APIContext() execution.APIContext { return apiContext(*s) }

// Run serves until the background service stops or ctx is done.
func (s *kvServices) Run(ctx context.Context) error {
	s.e.mu.RLock()
	cfg := s.e.cfg
	s.e.mu.RUnlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-s.e.stopped:
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	producer := &batchProducer{
		mempool:   s.e.mempool,
		submitter: s.e.submitter,
		interval:  cfg.LoadShedding.BatchProductionTime,
		logger:    s.e.logger.With().Str("component", "batch_producer").Logger(),
	}
	if producer.interval <= 0 {
		producer.interval = execution.DefaultConfig().LoadShedding.BatchProductionTime
	}
	g.Go(func() error { return producer.run(gctx) })

	if cfg.APIAddress != "" {
		lis, err := net.Listen("tcp", cfg.APIAddress)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		srv := &http.Server{
			Handler:           h2c.NewHandler(NewHandler(s.APIContext()), &http2.Server{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.e.logger.Info().Str("address", lis.Addr().String()).Msg("execution API listening")

		g.Go(func() error {
			if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// apiContext is the read-mostly view the API surfaces are bound to.
type apiContext struct {
	e *Executor
}

var _ execution.APIContext = apiContext{}

func (a apiContext) Height() uint64 { return a.e.Height() }

func (a apiContext) DAHeight() uint64 {
	a.e.mu.RLock()
	defer a.e.mu.RUnlock()
	return a.e.daHeight
}

func (a apiContext) StateRoot() []byte {
	a.e.mu.RLock()
	defer a.e.mu.RUnlock()
	return append([]byte(nil), a.e.stateRoot...)
}

func (a apiContext) Get(ctx context.Context, key string) ([]byte, error) {
	return a.e.Get(ctx, key)
}

func (a apiContext) SubmitTransaction(_ context.Context, tx []byte) error {
	if _, _, err := parseTx(tx); err != nil {
		return err
	}
	return a.e.mempool.Add(tx)
}
