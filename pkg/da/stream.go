package da

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	coreda "github.com/inertialabsxyz/movement/core/da"
)

// blobStream polls the light node height by height.
// Heights without a batch for the namespace are skipped.
type blobStream struct {
	client *LightNodeClient

	mu     sync.Mutex
	next   uint64
	closed chan struct{}
	once   sync.Once
}

var _ coreda.Stream = (*blobStream)(nil)

func newBlobStream(c *LightNodeClient, from uint64) *blobStream {
	return &blobStream{
		client: c,
		next:   from,
		closed: make(chan struct{}),
	}
}

// Next returns the next batch, waiting for the DA layer to produce it when needed.
func (s *blobStream) Next(ctx context.Context) (coreda.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := 0
	for {
		select {
		case <-s.closed:
			return coreda.Batch{}, io.EOF
		case <-ctx.Done():
			return coreda.Batch{}, ctx.Err()
		default:
		}

		height := s.next
		txs, found, err := s.client.getAll(ctx, height)
		switch {
		case err == nil:
			attempts = 0
			s.next++
			if !found {
				continue
			}
			return coreda.Batch{DAHeight: height, Transactions: txs}, nil

		case errors.Is(err, coreda.ErrBlobNotFound):
			attempts = 0
			s.next++
			continue

		case errors.Is(err, coreda.ErrHeightFromFuture):
			attempts = 0
			if err := s.wait(ctx, s.client.blockTime); err != nil {
				return coreda.Batch{}, err
			}
			continue

		case ctx.Err() != nil:
			return coreda.Batch{}, ctx.Err()
		}

		attempts++
		s.client.logger.Warn().Err(err).Uint64("da_height", height).Int("attempt", attempts).Msg("failed to read DA height")
		if attempts >= maxFetchAttempts {
			return coreda.Batch{}, fmt.Errorf("failed to read DA height %d after %d attempts: %w", height, attempts, err)
		}
		if err := s.wait(ctx, s.client.blockTime); err != nil {
			return coreda.Batch{}, err
		}
	}
}

func (s *blobStream) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-s.closed:
		return io.EOF
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream. Pending and later calls to Next return io.EOF.
func (s *blobStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
