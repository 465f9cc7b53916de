// Package ingress forwards DA batches into the execution engine.
package ingress

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/inertialabsxyz/movement/block/internal/common"
	coreda "github.com/inertialabsxyz/movement/core/da"
	"github.com/inertialabsxyz/movement/core/execution"
)

// Ingress pulls batches from the DA client and forwards them, in order, into the
// forwarding channel. A full channel suspends the DA reads.
type Ingress struct {
	da      coreda.Client
	batches *execution.BatchChannel
	start   uint64
	metrics *common.Metrics
	logger  zerolog.Logger
}

// NewIngress creates the ingress task reading DA from startHeight.
func NewIngress(
	da coreda.Client,
	batches *execution.BatchChannel,
	startHeight uint64,
	metrics *common.Metrics,
	logger zerolog.Logger,
) *Ingress {
	if metrics == nil {
		metrics = common.NopMetrics()
	}
	return &Ingress{
		da:      da,
		batches: batches,
		start:   startHeight,
		metrics: metrics,
		logger:  logger.With().Str("component", "ingress").Logger(),
	}
}

// Run forwards batches until the DA stream ends, the consumer is dropped or reading DA fails.
// The producer side of the forwarding channel is closed on return.
func (i *Ingress) Run(ctx context.Context) error {
	defer i.batches.CloseSend()

	// reads waiting on DA are abandoned once the consumer goes away
	parent := ctx
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	go func() {
		select {
		case <-i.batches.Dropped():
			cancel(execution.ErrConsumerDropped)
		case <-ctx.Done():
		}
	}()

	stream, err := i.da.StreamReadFromHeight(ctx, i.start)
	if err != nil {
		if ctx.Err() != nil {
			return i.interrupted(parent, i.start)
		}
		i.metrics.DARetrievalFailures.Add(1)
		return &common.IngestionError{DAHeight: i.start, Err: err}
	}
	defer func() {
		if err := stream.Close(); err != nil {
			i.logger.Warn().Err(err).Msg("failed to close DA stream")
		}
	}()

	i.logger.Info().Uint64("start_height", i.start).Msg("transaction ingress started")

	next := i.start
	for {
		batch, err := stream.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			i.logger.Info().Uint64("next_height", next).Msg("DA stream ended")
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return i.interrupted(parent, next)
			}
			i.metrics.DARetrievalFailures.Add(1)
			return &common.IngestionError{DAHeight: next, Err: err}
		}

		if err := i.batches.Send(ctx, batch); err != nil {
			if errors.Is(err, execution.ErrConsumerDropped) || ctx.Err() != nil {
				return i.interrupted(parent, batch.DAHeight)
			}
			return err
		}

		i.metrics.BatchesForwarded.Add(1)
		i.metrics.TxsForwarded.Add(float64(batch.Len()))
		i.metrics.LastForwardedDAHeight.Set(float64(batch.DAHeight))
		i.metrics.ForwardingQueueLength.Set(float64(i.batches.Len()))

		i.logger.Debug().
			Uint64("da_height", batch.DAHeight).
			Int("num_txs", batch.Len()).
			Msg("forwarded batch")
		next = batch.DAHeight + 1
	}
}

// interrupted reports why the loop stopped early: the parent context error, or nil when the
// consumer was dropped.
func (i *Ingress) interrupted(parent context.Context, height uint64) error {
	if err := parent.Err(); err != nil {
		return err
	}
	i.logger.Info().Uint64("da_height", height).Msg("execution stopped consuming, ingress stopping")
	return nil
}
